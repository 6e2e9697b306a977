package seed

import (
	"context"
	"time"

	"school-admin/internal/adapters/storage/memory"
	"school-admin/internal/domain/approvals"
	"school-admin/internal/domain/workflow"
	"school-admin/internal/platform/logger"
)

// FirstSetup puebla el modo in-memory con el mínimo para probar los
// flujos a mano: un admin con rol aprobado (sin él nadie puede aprobar
// nada), un tutor, un padre y un estudiante inscrito en un curso.
func FirstSetup(ctx context.Context, dir *memory.DirectoryRepo, repo approvals.Repository, log logger.Logger) error {
	// -------------------------
	// 1) Directorio base
	// -------------------------
	for _, u := range []string{"admin-1", "tutor-1", "padre-1", "estudiante-1"} {
		dir.AddUser(u)
	}

	dir.AddRole("rol-admin", "administrador")
	dir.AddRole("rol-profesor", "profesor")
	dir.AddRole("rol-padre", "padre")

	dir.AddCourse("curso-1a")
	dir.EnrollStudent("estudiante-1", "curso-1a")
	dir.AssignTutor("tutor-1", "curso-1a")

	// -------------------------
	// 2) Grants aprobados de arranque
	// -------------------------
	// El primer admin no puede aprobarse a sí mismo: su grant entra ya
	// resuelto. El tutor igual, para que pueda aprobar desde el minuto
	// cero.
	now := time.Now()
	approver := "seed"
	for _, g := range []struct{ user, role string }{
		{"admin-1", "rol-admin"},
		{"tutor-1", "rol-profesor"},
	} {
		grant := approvals.RoleGrant{
			UserID: g.user,
			RoleID: g.role,
			Ticket: workflow.Ticket{
				Status:     workflow.StatusApproved,
				ApproverID: &approver,
				ResolvedAt: &now,
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := repo.CreateRoleGrant(ctx, grant); err != nil {
			return err
		}
	}

	log.Info("seed ok", map[string]any{
		"admin":  "admin-1",
		"tutor":  "tutor-1",
		"padre":  "padre-1",
		"curso":  "curso-1a",
		"alumno": "estudiante-1",
	})
	return nil
}
