package memory

import (
	"context"
	"sync"
	"time"

	"school-admin/internal/domain/approvals"
	"school-admin/internal/domain/workflow"
)

type pairKey struct {
	a string
	b string
}

// ApprovalsRepo guarda role grants y vinculaciones en memoria. Las
// transiciones condicionales (resolver, reabrir) se hacen bajo el mutex,
// así que el compare-and-set es atómico igual que el UPDATE condicional
// de Postgres: con resoluciones concurrentes gana exactamente una.
type ApprovalsRepo struct {
	mu     sync.RWMutex
	grants map[pairKey]approvals.RoleGrant    // (usuario, rol)
	links  map[pairKey]approvals.GuardianLink // (padre, estudiante)
}

func NewApprovalsRepo() *ApprovalsRepo {
	return &ApprovalsRepo{
		grants: make(map[pairKey]approvals.RoleGrant),
		links:  make(map[pairKey]approvals.GuardianLink),
	}
}

// -------------------------
// Role grants
// -------------------------

func (r *ApprovalsRepo) CreateRoleGrant(_ context.Context, g approvals.RoleGrant) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey{g.UserID, g.RoleID}
	if _, exists := r.grants[key]; exists {
		return workflow.ErrInvalidState
	}
	r.grants[key] = g
	return nil
}

func (r *ApprovalsRepo) GetRoleGrant(_ context.Context, userID, roleID string) (approvals.RoleGrant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.grants[pairKey{userID, roleID}]
	if !ok {
		return approvals.RoleGrant{}, workflow.ErrNotFound
	}
	return g, nil
}

func (r *ApprovalsRepo) ResolveRoleGrant(_ context.Context, userID, roleID string, t workflow.Ticket) (approvals.RoleGrant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey{userID, roleID}
	g, ok := r.grants[key]
	if !ok {
		return approvals.RoleGrant{}, workflow.ErrNotFound
	}
	if g.Status != workflow.StatusPending {
		return approvals.RoleGrant{}, workflow.ErrInvalidState
	}

	g.Ticket = t
	if t.ResolvedAt != nil {
		g.UpdatedAt = *t.ResolvedAt
	}
	r.grants[key] = g
	return g, nil
}

func (r *ApprovalsRepo) ReopenRoleGrant(_ context.Context, userID, roleID string, at time.Time) (approvals.RoleGrant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey{userID, roleID}
	g, ok := r.grants[key]
	if !ok {
		return approvals.RoleGrant{}, workflow.ErrNotFound
	}
	if err := g.Reopen(); err != nil {
		return approvals.RoleGrant{}, err
	}
	g.UpdatedAt = at
	r.grants[key] = g
	return g, nil
}

func (r *ApprovalsRepo) ListPendingRoleGrants(_ context.Context) ([]approvals.RoleGrant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]approvals.RoleGrant, 0)
	for _, g := range r.grants {
		if g.Status == workflow.StatusPending {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *ApprovalsRepo) ListApprovedRoleGrants(_ context.Context, userID string) ([]approvals.RoleGrant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]approvals.RoleGrant, 0)
	for _, g := range r.grants {
		if g.UserID == userID && g.Status == workflow.StatusApproved {
			out = append(out, g)
		}
	}
	return out, nil
}

// -------------------------
// Guardian links
// -------------------------

func (r *ApprovalsRepo) CreateLink(_ context.Context, l approvals.GuardianLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey{l.ParentID, l.StudentID}
	if _, exists := r.links[key]; exists {
		return workflow.ErrInvalidState
	}
	r.links[key] = l
	return nil
}

func (r *ApprovalsRepo) GetLink(_ context.Context, parentID, studentID string) (approvals.GuardianLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.links[pairKey{parentID, studentID}]
	if !ok {
		return approvals.GuardianLink{}, workflow.ErrNotFound
	}
	return l, nil
}

func (r *ApprovalsRepo) ResolveLink(_ context.Context, parentID, studentID string, t workflow.Ticket) (approvals.GuardianLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey{parentID, studentID}
	l, ok := r.links[key]
	if !ok {
		return approvals.GuardianLink{}, workflow.ErrNotFound
	}
	if l.Status != workflow.StatusPending {
		return approvals.GuardianLink{}, workflow.ErrInvalidState
	}

	l.Ticket = t
	if t.ResolvedAt != nil {
		l.UpdatedAt = *t.ResolvedAt
	}
	r.links[key] = l
	return l, nil
}

func (r *ApprovalsRepo) ReopenLink(_ context.Context, parentID, studentID string, isRepresentative bool, at time.Time) (approvals.GuardianLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey{parentID, studentID}
	l, ok := r.links[key]
	if !ok {
		return approvals.GuardianLink{}, workflow.ErrNotFound
	}
	if err := l.Reopen(); err != nil {
		return approvals.GuardianLink{}, err
	}
	l.IsRepresentative = isRepresentative
	l.UpdatedAt = at
	r.links[key] = l
	return l, nil
}

func (r *ApprovalsRepo) ListPendingLinks(_ context.Context) ([]approvals.GuardianLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]approvals.GuardianLink, 0)
	for _, l := range r.links {
		if l.Status == workflow.StatusPending {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *ApprovalsRepo) ListLinksByParent(_ context.Context, parentID string) ([]approvals.GuardianLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]approvals.GuardianLink, 0)
	for _, l := range r.links {
		if l.ParentID == parentID {
			out = append(out, l)
		}
	}
	return out, nil
}
