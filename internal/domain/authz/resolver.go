package authz

import (
	"context"
	"strings"

	"school-admin/internal/ports/directory"
)

// DirectoryLookup es el subconjunto del directorio que necesita el
// resolver. Se define aquí para no acoplar el resolver al puerto completo.
type DirectoryLookup interface {
	RoleByID(ctx context.Context, roleID string) (directory.Role, error)
	CourseOfStudent(ctx context.Context, studentID string) (string, error)
	TutorCourses(ctx context.Context, userID string) ([]string, error)
}

// GrantSource expone los roles APROBADOS de un usuario.
// Lo implementa el módulo de aprobaciones (evita importar ese paquete).
type GrantSource interface {
	ApprovedRoleKinds(ctx context.Context, userID string) ([]directory.RoleKind, error)
}

// LinkSource expone los estudiantes vinculados a un padre, en cualquier
// estado: para aprobar el rol "padre" cuentan incluso los vínculos
// todavía pendientes.
type LinkSource interface {
	LinkedStudents(ctx context.Context, parentID string) ([]string, error)
}

// Resolver decide si un aprobador puede actuar sobre una solicitud.
// Es puro: no muta nada, solo consulta.
type Resolver struct {
	dir    DirectoryLookup
	grants GrantSource
	links  LinkSource
}

func NewResolver(dir DirectoryLookup, grants GrantSource, links LinkSource) *Resolver {
	return &Resolver{dir: dir, grants: grants, links: links}
}

// View es la vista de autorización de un aprobador, precomputada una vez
// por llamada. findApprovable filtra filas pendientes contra esta misma
// vista (join por pertenencia al set de cursos), de modo que su resultado
// coincide por construcción con evaluar canApprove fila por fila.
type View struct {
	Admin        bool
	TutorCourses map[string]struct{}
}

func (v View) tutorOf(courseID string) bool {
	_, ok := v.TutorCourses[courseID]
	return ok
}

// CanApprovePermission: admin, o tutor aprobado del curso del permiso.
func (v View) CanApprovePermission(courseID string) bool {
	if v.Admin {
		return true
	}
	return v.tutorOf(courseID)
}

func (r *Resolver) ViewOf(ctx context.Context, approverID string) (View, error) {
	approverID = strings.TrimSpace(approverID)
	v := View{TutorCourses: map[string]struct{}{}}
	if approverID == "" {
		return v, nil
	}

	kinds, err := r.grants.ApprovedRoleKinds(ctx, approverID)
	if err != nil {
		return View{}, err
	}

	teacher := false
	for _, k := range kinds {
		switch k {
		case directory.RoleKindAdmin:
			v.Admin = true
		case directory.RoleKindTeacher:
			teacher = true
		}
	}

	// Solo un profesor con rol APROBADO cuenta como tutor; una
	// asignación de tutor con grant pendiente no autoriza nada.
	if teacher {
		courses, err := r.dir.TutorCourses(ctx, approverID)
		if err != nil {
			return View{}, err
		}
		for _, c := range courses {
			v.TutorCourses[c] = struct{}{}
		}
	}

	return v, nil
}

// CanApproveRoleGrant evalúa la regla según el rol objetivo:
//   - profesor/admin: solo admin.
//   - estudiante: tutor del curso donde el estudiante está inscrito.
//   - padre: tutor de algún curso con un estudiante vinculado al padre.
func (r *Resolver) CanApproveRoleGrant(ctx context.Context, v View, subjectID string, target directory.RoleKind) (bool, error) {
	if v.Admin {
		return true, nil
	}

	switch target {
	case directory.RoleKindStudent:
		course, err := r.dir.CourseOfStudent(ctx, subjectID)
		if err != nil {
			return false, err
		}
		return course != "" && v.tutorOf(course), nil

	case directory.RoleKindParent:
		if len(v.TutorCourses) == 0 {
			return false, nil
		}
		students, err := r.links.LinkedStudents(ctx, subjectID)
		if err != nil {
			return false, err
		}
		for _, s := range students {
			course, err := r.dir.CourseOfStudent(ctx, s)
			if err != nil {
				return false, err
			}
			if course != "" && v.tutorOf(course) {
				return true, nil
			}
		}
		return false, nil

	default:
		// profesor, admin y roles desconocidos: solo el atajo admin.
		return false, nil
	}
}

// CanApproveLink: admin, o tutor aprobado del curso del estudiante.
func (r *Resolver) CanApproveLink(ctx context.Context, v View, studentID string) (bool, error) {
	if v.Admin {
		return true, nil
	}
	course, err := r.dir.CourseOfStudent(ctx, studentID)
	if err != nil {
		return false, err
	}
	return course != "" && v.tutorOf(course), nil
}
