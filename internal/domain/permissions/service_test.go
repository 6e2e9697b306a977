package permissions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"school-admin/internal/domain/authz"
	"school-admin/internal/domain/workflow"
	"school-admin/internal/platform/logger"
	"school-admin/internal/ports/directory"
	"school-admin/internal/ports/notify"
)

// -------------------------
// Test repo (in-memory)
// -------------------------

type testRepo struct {
	mu      sync.Mutex
	byID    map[string]Permission
	byToken map[string]string // token -> id
}

func newTestRepo() *testRepo {
	return &testRepo{
		byID:    map[string]Permission{},
		byToken: map[string]string{},
	}
}

func (r *testRepo) Create(_ context.Context, p Permission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[p.ID] = p
	if p.CredentialToken != "" {
		r.byToken[p.CredentialToken] = p.ID
	}
	return nil
}

func (r *testRepo) GetByID(_ context.Context, id string) (Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return Permission{}, workflow.ErrNotFound
	}
	return p, nil
}

func (r *testRepo) GetByToken(_ context.Context, token string) (Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byToken[token]
	if !ok {
		return Permission{}, workflow.ErrNotFound
	}
	return r.byID[id], nil
}

func (r *testRepo) Resolve(_ context.Context, id string, t workflow.Ticket, token string) (Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return Permission{}, workflow.ErrNotFound
	}
	if !p.IsPending() {
		return Permission{}, workflow.ErrInvalidState
	}
	if token != "" {
		if other, taken := r.byToken[token]; taken && other != id {
			return Permission{}, workflow.ErrDuplicateToken
		}
		r.byToken[token] = id
	}
	p.Ticket = t
	p.CredentialToken = token
	p.UpdatedAt = *t.ResolvedAt
	r.byID[id] = p
	return p, nil
}

func (r *testRepo) Transition(_ context.Context, id string, from, to workflow.Status, at time.Time) (Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return Permission{}, workflow.ErrNotFound
	}
	if p.Status != from {
		return Permission{}, workflow.ErrInvalidState
	}
	p.Status = to
	p.UpdatedAt = at
	r.byID[id] = p
	return p, nil
}

func (r *testRepo) ListPending(_ context.Context) ([]Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Permission, 0)
	for _, p := range r.byID {
		if p.IsPending() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *testRepo) ListPendingByCourses(_ context.Context, courseIDs []string) ([]Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := map[string]struct{}{}
	for _, c := range courseIDs {
		set[c] = struct{}{}
	}
	out := make([]Permission, 0)
	for _, p := range r.byID {
		if _, ok := set[p.CourseID]; ok && p.IsPending() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *testRepo) ListApprovedEndingBefore(_ context.Context, cutoff time.Time) ([]Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Permission, 0)
	for _, p := range r.byID {
		if p.IsApproved() && p.WindowEnd.Before(cutoff) {
			out = append(out, p)
		}
	}
	return out, nil
}

// -------------------------
// Test directory / guardians / resolver sources
// -------------------------

type testDir struct {
	users    map[string]struct{}
	courses  map[string]struct{}
	enrolled map[string]string
	tutors   map[string][]string
}

func newTestDir() *testDir {
	return &testDir{
		users: map[string]struct{}{
			"admin-1": {}, "profe-1": {}, "padre-1": {}, "est-1": {}, "otro-1": {},
		},
		courses:  map[string]struct{}{"curso-1a": {}, "curso-2b": {}},
		enrolled: map[string]string{"est-1": "curso-1a"},
		tutors:   map[string][]string{"profe-1": {"curso-1a"}},
	}
}

func (d *testDir) UserExists(_ context.Context, id string) (bool, error) {
	_, ok := d.users[id]
	return ok, nil
}

func (d *testDir) RoleByID(_ context.Context, id string) (directory.Role, error) {
	return directory.Role{}, workflow.ErrNotFound
}

func (d *testDir) CourseExists(_ context.Context, id string) (bool, error) {
	_, ok := d.courses[id]
	return ok, nil
}

func (d *testDir) CourseOfStudent(_ context.Context, studentID string) (string, error) {
	return d.enrolled[studentID], nil
}

func (d *testDir) TutorCourses(_ context.Context, userID string) ([]string, error) {
	return d.tutors[userID], nil
}

type testGrants struct {
	kinds map[string][]directory.RoleKind
}

func (g testGrants) ApprovedRoleKinds(_ context.Context, userID string) ([]directory.RoleKind, error) {
	return g.kinds[userID], nil
}

type testLinks struct{}

func (testLinks) LinkedStudents(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

type testGuardians struct {
	approved map[string][]string
}

func (g testGuardians) IsApprovedGuardian(_ context.Context, parentID, studentID string) (bool, error) {
	for _, st := range g.approved[parentID] {
		if st == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (g testGuardians) ApprovedStudents(_ context.Context, parentID string) ([]string, error) {
	return g.approved[parentID], nil
}

// testIssuer entrega tokens de una lista fija, para forzar colisiones.
type testIssuer struct {
	tokens []string
	i      int
}

func (t *testIssuer) Issue(string, time.Time, time.Time) string {
	if t.i < len(t.tokens) {
		tok := t.tokens[t.i]
		t.i++
		return tok
	}
	return NewQRIssuer().Issue("", time.Time{}, time.Time{})
}

// -------------------------
// Helpers
// -------------------------

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(_ context.Context, _ notify.Notification) error { return nil }

func newTestService(t *testing.T, issuer CredentialIssuer) (*Service, *testRepo) {
	t.Helper()

	repo := newTestRepo()
	dir := newTestDir()
	guardians := testGuardians{approved: map[string][]string{"padre-1": {"est-1"}}}
	grants := testGrants{kinds: map[string][]directory.RoleKind{
		"admin-1": {directory.RoleKindAdmin},
		"profe-1": {directory.RoleKindTeacher},
	}}
	resolver := authz.NewResolver(dir, grants, testLinks{})
	log := logger.New(logger.Options{Level: logger.Error})

	if issuer == nil {
		issuer = NewQRIssuer()
	}
	return NewService(repo, dir, guardians, resolver, issuer, nopDispatcher{}, log), repo
}

func window(base time.Time) (time.Time, time.Time) {
	return base, base.Add(time.Hour)
}

// -------------------------
// Create
// -------------------------

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	start, end := window(time.Now())

	cases := []struct {
		name string
		in   CreateInput
		want error
	}{
		{"unknown kind", CreateInput{ParentID: "padre-1", CourseID: "curso-1a", Kind: "VISITA", WindowStart: start, WindowEnd: end}, workflow.ErrInvalidInput},
		{"inverted window", CreateInput{ParentID: "padre-1", CourseID: "curso-1a", Kind: "ACCESO", WindowStart: end, WindowEnd: start}, workflow.ErrInvalidInput},
		{"unknown parent", CreateInput{ParentID: "nadie", CourseID: "curso-1a", Kind: "ACCESO", WindowStart: start, WindowEnd: end}, workflow.ErrNotFound},
		{"unknown course", CreateInput{ParentID: "padre-1", CourseID: "curso-x", Kind: "ACCESO", WindowStart: start, WindowEnd: end}, workflow.ErrNotFound},
		{"student not in course", CreateInput{ParentID: "padre-1", CourseID: "curso-2b", StudentID: "est-1", Kind: "ACCESO", WindowStart: start, WindowEnd: end}, workflow.ErrInvalidInput},
		{"not a guardian", CreateInput{ParentID: "otro-1", CourseID: "curso-1a", StudentID: "est-1", Kind: "ACCESO", WindowStart: start, WindowEnd: end}, workflow.ErrInvalidInput},
		{"no child in course", CreateInput{ParentID: "padre-1", CourseID: "curso-2b", Kind: "ACCESO", WindowStart: start, WindowEnd: end}, workflow.ErrInvalidInput},
	}
	for _, tc := range cases {
		if _, err := svc.Create(ctx, tc.in); !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}

	p, err := svc.Create(ctx, CreateInput{
		ParentID: "padre-1", CourseID: "curso-1a", StudentID: "est-1",
		Kind: "acceso", WindowStart: start, WindowEnd: end,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !p.IsPending() || p.Kind != KindAccess || p.CredentialToken != "" {
		t.Fatalf("unexpected permission: %+v", p)
	}
}

// -------------------------
// Resolve
// -------------------------

func TestResolve_ApproveIssuesCredential(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	start, end := window(time.Now())

	p, err := svc.Create(ctx, CreateInput{ParentID: "padre-1", CourseID: "curso-1a", StudentID: "est-1", Kind: "ACCESO", WindowStart: start, WindowEnd: end})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// el padre no puede aprobar su propio permiso
	if _, err := svc.Resolve(ctx, p.ID, "padre-1", workflow.DecisionApprove, ""); !errors.Is(err, workflow.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	approved, err := svc.Resolve(ctx, p.ID, "profe-1", workflow.DecisionApprove, "ok")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !approved.IsApproved() || approved.CredentialToken == "" {
		t.Fatalf("expected APROBADO with token, got %+v", approved)
	}

	// segunda resolución pierde el CAS
	if _, err := svc.Resolve(ctx, p.ID, "admin-1", workflow.DecisionApprove, ""); !errors.Is(err, workflow.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestResolve_RejectHasNoCredential(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	start, end := window(time.Now())

	p, _ := svc.Create(ctx, CreateInput{ParentID: "padre-1", CourseID: "curso-1a", StudentID: "est-1", Kind: "ACCESO", WindowStart: start, WindowEnd: end})
	rejected, err := svc.Resolve(ctx, p.ID, "admin-1", workflow.DecisionReject, "no procede")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rejected.Status != workflow.StatusRejected || rejected.CredentialToken != "" {
		t.Fatalf("expected RECHAZADO sin token, got %+v", rejected)
	}
}

func TestResolve_RetriesOnDuplicateToken(t *testing.T) {
	issuer := &testIssuer{tokens: []string{"dup", "dup", "fresh"}}
	svc, repo := newTestService(t, issuer)
	ctx := context.Background()
	start, end := window(time.Now())

	// ocupa el token "dup" con otro permiso ya aprobado
	now := time.Now()
	approver := "seed"
	_ = repo.Create(ctx, Permission{
		ID: "perm-0", ParentID: "padre-1", CourseID: "curso-1a",
		Kind: KindAccess, WindowStart: start, WindowEnd: end,
		CredentialToken: "dup",
		Ticket: workflow.Ticket{
			Status:     workflow.StatusApproved,
			ApproverID: &approver,
			ResolvedAt: &now,
		},
		CreatedAt: now, UpdatedAt: now,
	})

	p, err := svc.Create(ctx, CreateInput{ParentID: "padre-1", CourseID: "curso-1a", StudentID: "est-1", Kind: "ACCESO", WindowStart: start, WindowEnd: end})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	approved, err := svc.Resolve(ctx, p.ID, "profe-1", workflow.DecisionApprove, "")
	if err != nil {
		t.Fatalf("Resolve with colliding tokens: %v", err)
	}
	if approved.CredentialToken != "fresh" {
		t.Fatalf("expected retried token fresh, got %q", approved.CredentialToken)
	}
}

// -------------------------
// Redeem
// -------------------------

func TestRedeem_WindowAndOneShot(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	start := base.Add(30 * time.Minute)
	end := base.Add(90 * time.Minute)
	p, err := svc.Create(ctx, CreateInput{ParentID: "padre-1", CourseID: "curso-1a", StudentID: "est-1", Kind: "ACCESO", WindowStart: start, WindowEnd: end})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	approved, err := svc.Resolve(ctx, p.ID, "profe-1", workflow.DecisionApprove, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	token := approved.CredentialToken

	// antes de la ventana: falla sin cambiar el estado
	if _, err := svc.Redeem(ctx, token); !errors.Is(err, workflow.ErrNotYetValid) {
		t.Fatalf("expected ErrNotYetValid, got %v", err)
	}
	got, _ := svc.repo.GetByID(ctx, p.ID)
	if !got.IsApproved() {
		t.Fatalf("early redeem must not change state, got %s", got.Status)
	}

	// dentro de la ventana: canje único
	svc.now = func() time.Time { return base.Add(60 * time.Minute) }
	used, err := svc.Redeem(ctx, token)
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if used.Status != workflow.StatusConsumed {
		t.Fatalf("expected UTILIZADO, got %s", used.Status)
	}
	if _, err := svc.Redeem(ctx, token); !errors.Is(err, workflow.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on second redeem, got %v", err)
	}

	// token desconocido
	if _, err := svc.Redeem(ctx, "nope"); !errors.Is(err, workflow.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedeem_AfterWindowMarksExpired(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	p, err := svc.Create(ctx, CreateInput{ParentID: "padre-1", CourseID: "curso-1a", StudentID: "est-1", Kind: "ACCESO", WindowStart: base, WindowEnd: base.Add(time.Hour)})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	approved, err := svc.Resolve(ctx, p.ID, "profe-1", workflow.DecisionApprove, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	svc.now = func() time.Time { return base.Add(2 * time.Hour) }
	if _, err := svc.Redeem(ctx, approved.CredentialToken); !errors.Is(err, workflow.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	got, _ := svc.repo.GetByID(ctx, p.ID)
	if got.Status != workflow.StatusExpired {
		t.Fatalf("expected VENCIDO after late redeem, got %s", got.Status)
	}
}

// -------------------------
// ExpireOverdue
// -------------------------

func TestExpireOverdue(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	mk := func(start, end time.Time) Permission {
		p, err := svc.Create(ctx, CreateInput{ParentID: "padre-1", CourseID: "curso-1a", StudentID: "est-1", Kind: "ACCESO", WindowStart: start, WindowEnd: end})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		approved, err := svc.Resolve(ctx, p.ID, "admin-1", workflow.DecisionApprove, "")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		return approved
	}

	stale1 := mk(base, base.Add(time.Hour))
	stale2 := mk(base, base.Add(2*time.Hour))
	alive := mk(base, base.Add(10*time.Hour))

	svc.now = func() time.Time { return base.Add(3 * time.Hour) }
	n, err := svc.ExpireOverdue(ctx)
	if err != nil {
		t.Fatalf("ExpireOverdue: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 expired, got %d", n)
	}

	for _, id := range []string{stale1.ID, stale2.ID} {
		got, _ := svc.repo.GetByID(ctx, id)
		if got.Status != workflow.StatusExpired {
			t.Fatalf("expected VENCIDO for %s, got %s", id, got.Status)
		}
	}
	got, _ := svc.repo.GetByID(ctx, alive.ID)
	if !got.IsApproved() {
		t.Fatalf("in-window permission must stay APROBADO, got %s", got.Status)
	}
}

// -------------------------
// FindApprovable / Get
// -------------------------

func TestFindApprovable_ByCourseSet(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	start, end := window(time.Now())

	if _, err := svc.Create(ctx, CreateInput{ParentID: "padre-1", CourseID: "curso-1a", StudentID: "est-1", Kind: "ACCESO", WindowStart: start, WindowEnd: end}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	for approver, want := range map[string]int{
		"admin-1": 1,
		"profe-1": 1,
		"otro-1":  0,
	} {
		got, err := svc.FindApprovable(ctx, approver)
		if err != nil {
			t.Fatalf("FindApprovable(%s): %v", approver, err)
		}
		if len(got) != want {
			t.Fatalf("FindApprovable(%s) = %d, want %d", approver, len(got), want)
		}
	}
}

func TestGet_Access(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	start, end := window(time.Now())

	p, err := svc.Create(ctx, CreateInput{ParentID: "padre-1", CourseID: "curso-1a", StudentID: "est-1", Kind: "ACCESO", WindowStart: start, WindowEnd: end})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for _, caller := range []string{"padre-1", "profe-1", "admin-1"} {
		if _, err := svc.Get(ctx, p.ID, caller); err != nil {
			t.Fatalf("Get by %s: %v", caller, err)
		}
	}
	if _, err := svc.Get(ctx, p.ID, "otro-1"); !errors.Is(err, workflow.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for stranger, got %v", err)
	}
}
