package memory

import (
	"context"
	"sync"
	"time"

	"school-admin/internal/domain/permissions"
	"school-admin/internal/domain/workflow"
)

// PermissionsRepo guarda permisos de acceso en memoria. El índice por
// token replica la restricción de unicidad de codigo_qr: una colisión
// devuelve workflow.ErrDuplicateToken para que el servicio reintente.
type PermissionsRepo struct {
	mu      sync.RWMutex
	byID    map[string]permissions.Permission
	byToken map[string]string // token -> id
}

func NewPermissionsRepo() *PermissionsRepo {
	return &PermissionsRepo{
		byID:    make(map[string]permissions.Permission),
		byToken: make(map[string]string),
	}
}

func (r *PermissionsRepo) Create(_ context.Context, p permissions.Permission) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == "" {
		return workflow.ErrInvalidInput
	}
	if _, exists := r.byID[p.ID]; exists {
		return workflow.ErrInvalidState
	}
	r.byID[p.ID] = p
	return nil
}

func (r *PermissionsRepo) GetByID(_ context.Context, id string) (permissions.Permission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return permissions.Permission{}, workflow.ErrNotFound
	}
	return p, nil
}

func (r *PermissionsRepo) GetByToken(_ context.Context, token string) (permissions.Permission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byToken[token]
	if !ok {
		return permissions.Permission{}, workflow.ErrNotFound
	}
	return r.byID[id], nil
}

func (r *PermissionsRepo) Resolve(_ context.Context, id string, t workflow.Ticket, token string) (permissions.Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return permissions.Permission{}, workflow.ErrNotFound
	}
	if p.Status != workflow.StatusPending {
		return permissions.Permission{}, workflow.ErrInvalidState
	}
	if token != "" {
		if _, taken := r.byToken[token]; taken {
			return permissions.Permission{}, workflow.ErrDuplicateToken
		}
	}

	p.Ticket = t
	p.CredentialToken = token
	if t.ResolvedAt != nil {
		p.UpdatedAt = *t.ResolvedAt
	}
	r.byID[id] = p
	if token != "" {
		r.byToken[token] = id
	}
	return p, nil
}

func (r *PermissionsRepo) Transition(_ context.Context, id string, from, to workflow.Status, at time.Time) (permissions.Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return permissions.Permission{}, workflow.ErrNotFound
	}
	if p.Status != from {
		return permissions.Permission{}, workflow.ErrInvalidState
	}

	p.Status = to
	p.UpdatedAt = at
	r.byID[id] = p
	return p, nil
}

func (r *PermissionsRepo) ListPending(_ context.Context) ([]permissions.Permission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]permissions.Permission, 0)
	for _, p := range r.byID {
		if p.Status == workflow.StatusPending {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *PermissionsRepo) ListPendingByCourses(_ context.Context, courseIDs []string) ([]permissions.Permission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	allowed := make(map[string]struct{}, len(courseIDs))
	for _, c := range courseIDs {
		allowed[c] = struct{}{}
	}

	out := make([]permissions.Permission, 0)
	for _, p := range r.byID {
		if p.Status != workflow.StatusPending {
			continue
		}
		if _, ok := allowed[p.CourseID]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *PermissionsRepo) ListApprovedEndingBefore(_ context.Context, cutoff time.Time) ([]permissions.Permission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]permissions.Permission, 0)
	for _, p := range r.byID {
		if p.Status == workflow.StatusApproved && p.WindowEnd.Before(cutoff) {
			out = append(out, p)
		}
	}
	return out, nil
}
