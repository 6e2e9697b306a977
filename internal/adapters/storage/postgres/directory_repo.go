package postgres

import (
	"context"
	"database/sql"
	"strings"

	"school-admin/internal/domain/workflow"
	"school-admin/internal/ports/directory"
)

// DirectoryRepo lee el directorio (usuarios, roles, cursos,
// inscripciones, tutores) desde las tablas del sistema de gestión.
// Solo lectura: este core nunca escribe acá.
type DirectoryRepo struct {
	db *sql.DB
}

func NewDirectoryRepo(db *sql.DB) *DirectoryRepo {
	return &DirectoryRepo{db: db}
}

func (r *DirectoryRepo) UserExists(ctx context.Context, userID string) (bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, nil
	}

	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM usuarios WHERE id = $1)
	`, userID).Scan(&exists)
	return exists, err
}

func (r *DirectoryRepo) RoleByID(ctx context.Context, roleID string) (directory.Role, error) {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return directory.Role{}, workflow.ErrNotFound
	}

	var id, name string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, nombre FROM roles WHERE id = $1
	`, roleID).Scan(&id, &name)
	if err == sql.ErrNoRows {
		return directory.Role{}, workflow.ErrNotFound
	}
	if err != nil {
		return directory.Role{}, err
	}

	// el nombre crudo se clasifica acá, una sola vez
	return directory.Role{ID: id, Name: name, Kind: directory.ParseRoleKind(name)}, nil
}

func (r *DirectoryRepo) CourseExists(ctx context.Context, courseID string) (bool, error) {
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return false, nil
	}

	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM cursos WHERE id = $1)
	`, courseID).Scan(&exists)
	return exists, err
}

func (r *DirectoryRepo) CourseOfStudent(ctx context.Context, studentID string) (string, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return "", nil
	}

	var courseID string
	err := r.db.QueryRowContext(ctx, `
		SELECT curso_id FROM inscripciones WHERE estudiante_id = $1
	`, studentID).Scan(&courseID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return courseID, nil
}

func (r *DirectoryRepo) TutorCourses(ctx context.Context, userID string) ([]string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT curso_id FROM cursos_tutores WHERE usuario_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
