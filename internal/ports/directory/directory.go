package directory

import "context"

// Directory es el colaborador de solo lectura que expone usuarios,
// roles, cursos, inscripciones y asignaciones de tutor. Este core lo
// consume para chequeos referenciales y de autorización; nunca lo muta.
type Directory interface {
	UserExists(ctx context.Context, userID string) (bool, error)
	RoleByID(ctx context.Context, roleID string) (Role, error)
	CourseExists(ctx context.Context, courseID string) (bool, error)

	// CourseOfStudent devuelve el curso donde el estudiante está
	// inscrito, o "" si no tiene inscripción.
	CourseOfStudent(ctx context.Context, studentID string) (string, error)

	// TutorCourses devuelve los cursos donde el usuario tiene una
	// asignación de tutor. No valida el estado del rol profesor; eso
	// lo decide el resolver de autorización.
	TutorCourses(ctx context.Context, userID string) ([]string, error)
}
