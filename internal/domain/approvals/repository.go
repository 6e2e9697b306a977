package approvals

import (
	"context"
	"time"

	"school-admin/internal/domain/workflow"
)

// Repository persiste role grants y vinculaciones.
//
// Resolve* y Reopen* son compare-and-set: la escritura está condicionada
// al estado actual de la fila (PENDIENTE y RECHAZADO respectivamente).
// Si la fila existe pero ya no está en ese estado devuelven
// workflow.ErrInvalidState; si no existe, workflow.ErrNotFound. Con dos
// aprobadores compitiendo, exactamente uno gana.
type Repository interface {
	CreateRoleGrant(ctx context.Context, g RoleGrant) error
	GetRoleGrant(ctx context.Context, userID, roleID string) (RoleGrant, error)
	ResolveRoleGrant(ctx context.Context, userID, roleID string, t workflow.Ticket) (RoleGrant, error)
	ReopenRoleGrant(ctx context.Context, userID, roleID string, at time.Time) (RoleGrant, error)
	ListPendingRoleGrants(ctx context.Context) ([]RoleGrant, error)
	ListApprovedRoleGrants(ctx context.Context, userID string) ([]RoleGrant, error)

	CreateLink(ctx context.Context, l GuardianLink) error
	GetLink(ctx context.Context, parentID, studentID string) (GuardianLink, error)
	ResolveLink(ctx context.Context, parentID, studentID string, t workflow.Ticket) (GuardianLink, error)
	ReopenLink(ctx context.Context, parentID, studentID string, isRepresentative bool, at time.Time) (GuardianLink, error)
	ListPendingLinks(ctx context.Context) ([]GuardianLink, error)
	ListLinksByParent(ctx context.Context, parentID string) ([]GuardianLink, error)
}
