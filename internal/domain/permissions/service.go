package permissions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"school-admin/internal/domain/authz"
	"school-admin/internal/domain/workflow"
	"school-admin/internal/platform/logger"
	"school-admin/internal/ports/directory"
	"school-admin/internal/ports/notify"
)

// issueRetries acota los reintentos ante colisión del token de
// credencial (violación de la restricción de unicidad).
const issueRetries = 3

// GuardianCheck expone los vínculos APROBADOS de un padre.
// Lo implementa el módulo de aprobaciones (evita importar ese paquete).
type GuardianCheck interface {
	IsApprovedGuardian(ctx context.Context, parentID, studentID string) (bool, error)
	ApprovedStudents(ctx context.Context, parentID string) ([]string, error)
}

// Service orquesta el ciclo de vida de los permisos de acceso: chequeos
// referenciales al crear, resolver -> emisión de credencial -> notificar,
// y la máquina de canje/vencimiento sobre la ventana de validez.
type Service struct {
	repo      Repository
	dir       directory.Directory
	guardians GuardianCheck
	resolver  *authz.Resolver
	issuer    CredentialIssuer
	notifier  notify.Dispatcher
	log       logger.Logger
	now       func() time.Time
}

func NewService(repo Repository, dir directory.Directory, guardians GuardianCheck, resolver *authz.Resolver, issuer CredentialIssuer, notifier notify.Dispatcher, log logger.Logger) *Service {
	return &Service{
		repo:      repo,
		dir:       dir,
		guardians: guardians,
		resolver:  resolver,
		issuer:    issuer,
		notifier:  notifier,
		log:       log,
		now:       time.Now,
	}
}

type CreateInput struct {
	ParentID    string
	CourseID    string
	StudentID   string // opcional: vacío = cualquier hijo en el curso
	Kind        string
	WindowStart time.Time
	WindowEnd   time.Time
}

// Create valida integridad referencial antes de escribir: padre y curso
// existen, y el estudiante reclamado (o alguno, si no se especifica)
// está inscrito en el curso y vinculado APROBADO al padre. Si algo
// falla no queda ninguna fila parcial.
func (s *Service) Create(ctx context.Context, in CreateInput) (Permission, error) {
	parentID := strings.TrimSpace(in.ParentID)
	courseID := strings.TrimSpace(in.CourseID)
	studentID := strings.TrimSpace(in.StudentID)

	if parentID == "" || courseID == "" {
		return Permission{}, workflow.ErrInvalidInput
	}
	kind, err := ParseKind(in.Kind)
	if err != nil {
		return Permission{}, err
	}
	if in.WindowStart.IsZero() || in.WindowEnd.IsZero() || !in.WindowStart.Before(in.WindowEnd) {
		return Permission{}, workflow.ErrInvalidInput
	}

	ok, err := s.dir.UserExists(ctx, parentID)
	if err != nil {
		return Permission{}, err
	}
	if !ok {
		return Permission{}, workflow.ErrNotFound
	}
	ok, err = s.dir.CourseExists(ctx, courseID)
	if err != nil {
		return Permission{}, err
	}
	if !ok {
		return Permission{}, workflow.ErrNotFound
	}

	if studentID != "" {
		course, err := s.dir.CourseOfStudent(ctx, studentID)
		if err != nil {
			return Permission{}, err
		}
		if course != courseID {
			return Permission{}, workflow.ErrInvalidInput
		}
		ok, err := s.guardians.IsApprovedGuardian(ctx, parentID, studentID)
		if err != nil {
			return Permission{}, err
		}
		if !ok {
			return Permission{}, workflow.ErrInvalidInput
		}
	} else {
		students, err := s.guardians.ApprovedStudents(ctx, parentID)
		if err != nil {
			return Permission{}, err
		}
		any := false
		for _, st := range students {
			course, err := s.dir.CourseOfStudent(ctx, st)
			if err != nil {
				return Permission{}, err
			}
			if course == courseID {
				any = true
				break
			}
		}
		if !any {
			return Permission{}, workflow.ErrInvalidInput
		}
	}

	now := s.now()
	p := Permission{
		ID:          uuid.NewString(),
		ParentID:    parentID,
		CourseID:    courseID,
		StudentID:   studentID,
		Kind:        kind,
		WindowStart: in.WindowStart,
		WindowEnd:   in.WindowEnd,
		Ticket:      workflow.NewTicket(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return Permission{}, err
	}
	return p, nil
}

// Resolve aprueba o rechaza un permiso pendiente. Al aprobar emite el
// código de credencial; si el token choca con la restricción de unicidad
// se reintenta con uno nuevo.
func (s *Service) Resolve(ctx context.Context, id, approverID string, d workflow.Decision, comment string) (Permission, error) {
	id = strings.TrimSpace(id)
	approverID = strings.TrimSpace(approverID)
	if id == "" || approverID == "" {
		return Permission{}, workflow.ErrInvalidInput
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Permission{}, err
	}
	if !p.IsPending() {
		return Permission{}, workflow.ErrInvalidState
	}

	view, err := s.resolver.ViewOf(ctx, approverID)
	if err != nil {
		return Permission{}, err
	}
	if !view.CanApprovePermission(p.CourseID) {
		return Permission{}, workflow.ErrUnauthorized
	}

	t := p.Ticket
	if err := t.Resolve(approverID, d, comment, s.now()); err != nil {
		return Permission{}, err
	}

	var updated Permission
	for attempt := 0; ; attempt++ {
		token := ""
		if d == workflow.DecisionApprove {
			token = s.issuer.Issue(p.ParentID, p.WindowStart, p.WindowEnd)
		}

		updated, err = s.repo.Resolve(ctx, id, t, token)
		if err == nil {
			break
		}
		if errors.Is(err, workflow.ErrDuplicateToken) && attempt < issueRetries {
			continue
		}
		return Permission{}, err
	}

	s.dispatch(ctx, notify.Notification{
		RecipientID: p.ParentID,
		Subject:     "Permiso de acceso resuelto",
		Message:     resolutionMessage(p, d, comment),
	})
	return updated, nil
}

// Redeem canjea un código de credencial. Una sola vez: la transición
// APROBADO -> UTILIZADO es CAS, así que un segundo canje del mismo token
// observa ErrInvalidState. Fuera de ventana: antes de inicio no cambia
// nada (ErrNotYetValid); después del fin marca VENCIDO y falla
// ErrExpired.
func (s *Service) Redeem(ctx context.Context, token string) (Permission, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Permission{}, workflow.ErrInvalidInput
	}

	p, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return Permission{}, err
	}
	if !p.IsApproved() {
		return Permission{}, workflow.ErrInvalidState
	}

	now := s.now()
	if now.Before(p.WindowStart) {
		return Permission{}, workflow.ErrNotYetValid
	}
	if now.After(p.WindowEnd) {
		if _, err := s.repo.Transition(ctx, p.ID, workflow.StatusApproved, workflow.StatusExpired, now); err != nil && !errors.Is(err, workflow.ErrInvalidState) {
			return Permission{}, err
		}
		return Permission{}, workflow.ErrExpired
	}

	updated, err := s.repo.Transition(ctx, p.ID, workflow.StatusApproved, workflow.StatusConsumed, now)
	if err != nil {
		return Permission{}, err
	}

	s.dispatch(ctx, notify.Notification{
		RecipientID: p.ParentID,
		Subject:     "Permiso utilizado",
		Message:     fmt.Sprintf("tu permiso %s para el curso %s fue utilizado", strings.ToLower(string(p.Kind)), p.CourseID),
	})
	return updated, nil
}

// ExpireOverdue barre los permisos APROBADOS cuya ventana ya cerró y los
// marca VENCIDO. Devuelve cuántos venció; las carreras con un canje
// simultáneo se ignoran (el CAS decide).
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	now := s.now()
	overdue, err := s.repo.ListApprovedEndingBefore(ctx, now)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, p := range overdue {
		if _, err := s.repo.Transition(ctx, p.ID, workflow.StatusApproved, workflow.StatusExpired, now); err != nil {
			if errors.Is(err, workflow.ErrInvalidState) {
				continue
			}
			return n, err
		}
		n++
	}
	return n, nil
}

// FindApprovable devuelve los permisos pendientes sobre los que el
// aprobador puede actuar: todos para un admin, los de sus cursos para un
// tutor aprobado. Mismo join por set de cursos que usa canApprove.
func (s *Service) FindApprovable(ctx context.Context, approverID string) ([]Permission, error) {
	view, err := s.resolver.ViewOf(ctx, approverID)
	if err != nil {
		return nil, err
	}

	if view.Admin {
		return s.repo.ListPending(ctx)
	}
	if len(view.TutorCourses) == 0 {
		return []Permission{}, nil
	}

	courses := make([]string, 0, len(view.TutorCourses))
	for c := range view.TutorCourses {
		courses = append(courses, c)
	}
	return s.repo.ListPendingByCourses(ctx, courses)
}

// Get devuelve un permiso si el llamador es el padre solicitante, tutor
// aprobado del curso, o admin.
func (s *Service) Get(ctx context.Context, id, callerID string) (Permission, error) {
	id = strings.TrimSpace(id)
	callerID = strings.TrimSpace(callerID)
	if id == "" || callerID == "" {
		return Permission{}, workflow.ErrInvalidInput
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Permission{}, err
	}
	if p.ParentID == callerID {
		return p, nil
	}

	view, err := s.resolver.ViewOf(ctx, callerID)
	if err != nil {
		return Permission{}, err
	}
	if !view.CanApprovePermission(p.CourseID) {
		return Permission{}, workflow.ErrUnauthorized
	}
	return p, nil
}

func (s *Service) dispatch(ctx context.Context, n notify.Notification) {
	if err := s.notifier.Dispatch(ctx, n); err != nil {
		s.log.Warn("notification dispatch failed", map[string]any{
			"recipient": n.RecipientID,
			"subject":   n.Subject,
			"error":     err.Error(),
		})
	}
}

func resolutionMessage(p Permission, d workflow.Decision, comment string) string {
	outcome := "rechazado"
	if d == workflow.DecisionApprove {
		outcome = "aprobado"
	}
	msg := fmt.Sprintf("tu permiso %s para el curso %s fue %s", strings.ToLower(string(p.Kind)), p.CourseID, outcome)
	if strings.TrimSpace(comment) != "" {
		msg += ": " + strings.TrimSpace(comment)
	}
	return msg
}
