package permissions

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// CredentialIssuer emite el código opaco de un solo uso que respalda el
// QR de un permiso aprobado. La unicidad global la garantiza la
// restricción de unicidad del almacenamiento, no el emisor: una colisión
// se trata como reintento, no como imposibilidad.
type CredentialIssuer interface {
	Issue(subjectID string, validFrom, validTo time.Time) string
}

type qrIssuer struct{}

func NewQRIssuer() CredentialIssuer {
	return qrIssuer{}
}

func (qrIssuer) Issue(string, time.Time, time.Time) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
