package permissions

import (
	"context"
	"time"

	"school-admin/internal/domain/workflow"
)

// Repository persiste permisos de acceso.
//
// Resolve y Transition son compare-and-set sobre el estado: la escritura
// solo procede si la fila sigue en el estado esperado, de modo que bajo
// resoluciones o canjes concurrentes gana exactamente uno y el resto
// observa workflow.ErrInvalidState.
//
// Resolve debe devolver workflow.ErrDuplicateToken si el token de
// credencial choca con la restricción de unicidad; el servicio reintenta
// con un token nuevo.
type Repository interface {
	Create(ctx context.Context, p Permission) error
	GetByID(ctx context.Context, id string) (Permission, error)
	GetByToken(ctx context.Context, token string) (Permission, error)

	Resolve(ctx context.Context, id string, t workflow.Ticket, token string) (Permission, error)
	Transition(ctx context.Context, id string, from, to workflow.Status, at time.Time) (Permission, error)

	ListPending(ctx context.Context) ([]Permission, error)
	ListPendingByCourses(ctx context.Context, courseIDs []string) ([]Permission, error)
	ListApprovedEndingBefore(ctx context.Context, cutoff time.Time) ([]Permission, error)
}
