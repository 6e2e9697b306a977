package approvals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"school-admin/internal/domain/authz"
	"school-admin/internal/domain/workflow"
	"school-admin/internal/platform/logger"
	"school-admin/internal/ports/directory"
	"school-admin/internal/ports/notify"
)

// Service orquesta el ciclo de vida de role grants y vinculaciones:
// chequeos referenciales al crear, re-apertura idempotente tras rechazo,
// y resolver -> transición CAS -> notificación al resolver. No contiene
// lógica de autorización propia; eso es del resolver.
type Service struct {
	repo     Repository
	dir      directory.Directory
	resolver *authz.Resolver
	notifier notify.Dispatcher
	log      logger.Logger
	now      func() time.Time
}

func NewService(repo Repository, dir directory.Directory, resolver *authz.Resolver, notifier notify.Dispatcher, log logger.Logger) *Service {
	return &Service{
		repo:     repo,
		dir:      dir,
		resolver: resolver,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
}

// -------------------------
// Role grants
// -------------------------

// RequestRole crea una solicitud de rol, o reabre la existente si fue
// rechazada. Una solicitud ya pendiente o aprobada no se vuelve a crear.
func (s *Service) RequestRole(ctx context.Context, userID, roleID string) (RoleGrant, error) {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	if userID == "" || roleID == "" {
		return RoleGrant{}, workflow.ErrInvalidInput
	}

	ok, err := s.dir.UserExists(ctx, userID)
	if err != nil {
		return RoleGrant{}, err
	}
	if !ok {
		return RoleGrant{}, workflow.ErrNotFound
	}
	if _, err := s.dir.RoleByID(ctx, roleID); err != nil {
		return RoleGrant{}, workflow.ErrNotFound
	}

	existing, err := s.repo.GetRoleGrant(ctx, userID, roleID)
	switch {
	case err == nil:
		if existing.Status != workflow.StatusRejected {
			return RoleGrant{}, workflow.ErrInvalidState
		}
		return s.repo.ReopenRoleGrant(ctx, userID, roleID, s.now())
	case errors.Is(err, workflow.ErrNotFound):
		// primera solicitud para este par (usuario, rol)
	default:
		return RoleGrant{}, err
	}

	now := s.now()
	g := RoleGrant{
		UserID:    userID,
		RoleID:    roleID,
		Ticket:    workflow.NewTicket(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateRoleGrant(ctx, g); err != nil {
		return RoleGrant{}, err
	}
	return g, nil
}

// ResolveRole aprueba o rechaza una solicitud de rol pendiente.
func (s *Service) ResolveRole(ctx context.Context, userID, roleID, approverID string, d workflow.Decision, comment string) (RoleGrant, error) {
	userID = strings.TrimSpace(userID)
	roleID = strings.TrimSpace(roleID)
	approverID = strings.TrimSpace(approverID)
	if userID == "" || roleID == "" || approverID == "" {
		return RoleGrant{}, workflow.ErrInvalidInput
	}

	g, err := s.repo.GetRoleGrant(ctx, userID, roleID)
	if err != nil {
		return RoleGrant{}, err
	}
	if !g.IsPending() {
		return RoleGrant{}, workflow.ErrInvalidState
	}

	role, err := s.dir.RoleByID(ctx, roleID)
	if err != nil {
		return RoleGrant{}, workflow.ErrNotFound
	}

	view, err := s.resolver.ViewOf(ctx, approverID)
	if err != nil {
		return RoleGrant{}, err
	}
	ok, err := s.resolver.CanApproveRoleGrant(ctx, view, userID, role.Kind)
	if err != nil {
		return RoleGrant{}, err
	}
	if !ok {
		return RoleGrant{}, workflow.ErrUnauthorized
	}

	t := g.Ticket
	if err := t.Resolve(approverID, d, comment, s.now()); err != nil {
		return RoleGrant{}, err
	}

	// La escritura re-chequea PENDIENTE: si otro aprobador ganó la
	// carrera, este resolve observa ErrInvalidState.
	updated, err := s.repo.ResolveRoleGrant(ctx, userID, roleID, t)
	if err != nil {
		return RoleGrant{}, err
	}

	s.dispatch(ctx, notify.Notification{
		RecipientID: userID,
		Subject:     "Solicitud de rol resuelta",
		Message:     resolutionMessage(fmt.Sprintf("tu solicitud del rol %q", role.Name), d, comment),
	})
	return updated, nil
}

// -------------------------
// Guardian links
// -------------------------

type LinkInput struct {
	ParentID         string
	StudentID        string
	IsRepresentative bool
}

// RequestLink crea (o reabre tras rechazo) el vínculo padre-estudiante.
// La fila es única por par: nunca se inserta un duplicado.
func (s *Service) RequestLink(ctx context.Context, in LinkInput) (GuardianLink, error) {
	parentID := strings.TrimSpace(in.ParentID)
	studentID := strings.TrimSpace(in.StudentID)
	if parentID == "" || studentID == "" || parentID == studentID {
		return GuardianLink{}, workflow.ErrInvalidInput
	}

	for _, id := range []string{parentID, studentID} {
		ok, err := s.dir.UserExists(ctx, id)
		if err != nil {
			return GuardianLink{}, err
		}
		if !ok {
			return GuardianLink{}, workflow.ErrNotFound
		}
	}

	existing, err := s.repo.GetLink(ctx, parentID, studentID)
	switch {
	case err == nil:
		if existing.Status != workflow.StatusRejected {
			return GuardianLink{}, workflow.ErrInvalidState
		}
		return s.repo.ReopenLink(ctx, parentID, studentID, in.IsRepresentative, s.now())
	case errors.Is(err, workflow.ErrNotFound):
	default:
		return GuardianLink{}, err
	}

	now := s.now()
	l := GuardianLink{
		ParentID:         parentID,
		StudentID:        studentID,
		IsRepresentative: in.IsRepresentative,
		Ticket:           workflow.NewTicket(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.CreateLink(ctx, l); err != nil {
		return GuardianLink{}, err
	}
	return l, nil
}

// ResolveLink aprueba o rechaza una vinculación pendiente. Autoriza el
// tutor aprobado del curso del estudiante (o un admin).
func (s *Service) ResolveLink(ctx context.Context, parentID, studentID, approverID string, d workflow.Decision, comment string) (GuardianLink, error) {
	parentID = strings.TrimSpace(parentID)
	studentID = strings.TrimSpace(studentID)
	approverID = strings.TrimSpace(approverID)
	if parentID == "" || studentID == "" || approverID == "" {
		return GuardianLink{}, workflow.ErrInvalidInput
	}

	l, err := s.repo.GetLink(ctx, parentID, studentID)
	if err != nil {
		return GuardianLink{}, err
	}
	if !l.IsPending() {
		return GuardianLink{}, workflow.ErrInvalidState
	}

	view, err := s.resolver.ViewOf(ctx, approverID)
	if err != nil {
		return GuardianLink{}, err
	}
	ok, err := s.resolver.CanApproveLink(ctx, view, studentID)
	if err != nil {
		return GuardianLink{}, err
	}
	if !ok {
		return GuardianLink{}, workflow.ErrUnauthorized
	}

	t := l.Ticket
	if err := t.Resolve(approverID, d, comment, s.now()); err != nil {
		return GuardianLink{}, err
	}

	updated, err := s.repo.ResolveLink(ctx, parentID, studentID, t)
	if err != nil {
		return GuardianLink{}, err
	}

	s.dispatch(ctx, notify.Notification{
		RecipientID: parentID,
		Subject:     "Vinculación resuelta",
		Message:     resolutionMessage(fmt.Sprintf("tu vinculación con el estudiante %s", studentID), d, comment),
	})
	return updated, nil
}

// -------------------------
// findApprovable
// -------------------------

type Pending struct {
	RoleGrants []RoleGrant
	Links      []GuardianLink
}

// FindApprovable devuelve las solicitudes pendientes sobre las que el
// aprobador puede actuar. Precomputa la vista (admin + set de cursos
// tutoreados) una vez y filtra por pertenencia; el resultado es idéntico
// a evaluar canApprove fila por fila.
func (s *Service) FindApprovable(ctx context.Context, approverID string) (Pending, error) {
	out := Pending{
		RoleGrants: []RoleGrant{},
		Links:      []GuardianLink{},
	}

	view, err := s.resolver.ViewOf(ctx, approverID)
	if err != nil {
		return Pending{}, err
	}

	grants, err := s.repo.ListPendingRoleGrants(ctx)
	if err != nil {
		return Pending{}, err
	}
	for _, g := range grants {
		role, err := s.dir.RoleByID(ctx, g.RoleID)
		if err != nil {
			return Pending{}, err
		}
		ok, err := s.resolver.CanApproveRoleGrant(ctx, view, g.UserID, role.Kind)
		if err != nil {
			return Pending{}, err
		}
		if ok {
			out.RoleGrants = append(out.RoleGrants, g)
		}
	}

	links, err := s.repo.ListPendingLinks(ctx)
	if err != nil {
		return Pending{}, err
	}
	for _, l := range links {
		ok, err := s.resolver.CanApproveLink(ctx, view, l.StudentID)
		if err != nil {
			return Pending{}, err
		}
		if ok {
			out.Links = append(out.Links, l)
		}
	}

	return out, nil
}

// -------------------------
// helpers
// -------------------------

// dispatch es best-effort: un fallo se loguea y se descarta. La decisión
// ya persistida no se revierte aunque el destinatario nunca se entere.
func (s *Service) dispatch(ctx context.Context, n notify.Notification) {
	if err := s.notifier.Dispatch(ctx, n); err != nil {
		s.log.Warn("notification dispatch failed", map[string]any{
			"recipient": n.RecipientID,
			"subject":   n.Subject,
			"error":     err.Error(),
		})
	}
}

func resolutionMessage(what string, d workflow.Decision, comment string) string {
	outcome := "rechazada"
	if d == workflow.DecisionApprove {
		outcome = "aprobada"
	}
	msg := fmt.Sprintf("%s fue %s", what, outcome)
	if strings.TrimSpace(comment) != "" {
		msg += ": " + strings.TrimSpace(comment)
	}
	return msg
}
