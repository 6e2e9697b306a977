package permissions

import (
	"strings"
	"time"

	"school-admin/internal/domain/workflow"
)

// Kind es el tipo de permiso de acceso solicitado.
type Kind string

const (
	KindAccess    Kind = "ACCESO"
	KindEvent     Kind = "EVENTO"
	KindEmergency Kind = "EMERGENCIA"
	KindRecurring Kind = "RECURRENTE"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToUpper(strings.TrimSpace(s))) {
	case KindAccess:
		return KindAccess, nil
	case KindEvent:
		return KindEvent, nil
	case KindEmergency:
		return KindEmergency, nil
	case KindRecurring:
		return KindRecurring, nil
	default:
		return "", workflow.ErrInvalidInput
	}
}

// Permission es la autorización con ventana de tiempo para que un padre
// acceda o asista en nombre de un estudiante. StudentID es opcional: un
// permiso puede apuntar a "cualquier hijo de este padre en este curso".
// A diferencia de roles y vinculaciones, nunca se reabre: cada nueva
// solicitud es una fila nueva.
type Permission struct {
	ID        string
	ParentID  string
	CourseID  string
	StudentID string // opcional

	Kind        Kind
	WindowStart time.Time
	WindowEnd   time.Time

	// CredentialToken (código QR) se setea solo al aprobar y solo lo
	// genera el emisor de credenciales, nunca el llamador. Tras
	// UTILIZADO o VENCIDO deja de tener valor.
	CredentialToken string

	workflow.Ticket

	CreatedAt time.Time
	UpdatedAt time.Time
}

// InWindow indica si el instante cae dentro de la ventana de validez.
func (p Permission) InWindow(at time.Time) bool {
	return !at.Before(p.WindowStart) && !at.After(p.WindowEnd)
}
