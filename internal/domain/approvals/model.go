package approvals

import (
	"time"

	"school-admin/internal/domain/workflow"
)

// RoleGrant es la asociación pendiente/aprobada/rechazada de un usuario
// con un rol. Única por (UserID, RoleID): re-solicitar tras un rechazo
// reabre la misma fila, nunca inserta otra.
type RoleGrant struct {
	UserID string
	RoleID string

	workflow.Ticket

	CreatedAt time.Time
	UpdatedAt time.Time
}

// GuardianLink es el reclamo de que un adulto es apoderado de un
// estudiante. Única por (ParentID, StudentID). Las funciones que
// dependen del vínculo (permisos de acceso, dashboards) solo lo
// consideran válido en estado APROBADO.
type GuardianLink struct {
	ParentID         string
	StudentID        string
	IsRepresentative bool

	workflow.Ticket

	CreatedAt time.Time
	UpdatedAt time.Time
}
