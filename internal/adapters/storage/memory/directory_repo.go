package memory

import (
	"context"
	"sync"

	"school-admin/internal/domain/workflow"
	"school-admin/internal/ports/directory"
)

// DirectoryRepo es la implementación in-memory del directorio, para dev
// y tests. Los métodos Add*/Enroll/AssignTutor son el equivalente del
// seed que en producción vive en el sistema de gestión (fuera de este
// core).
type DirectoryRepo struct {
	mu         sync.RWMutex
	users      map[string]struct{}
	roles      map[string]directory.Role
	courses    map[string]struct{}
	enrollment map[string]string              // estudiante -> curso
	tutors     map[string]map[string]struct{} // usuario -> cursos
}

func NewDirectoryRepo() *DirectoryRepo {
	return &DirectoryRepo{
		users:      make(map[string]struct{}),
		roles:      make(map[string]directory.Role),
		courses:    make(map[string]struct{}),
		enrollment: make(map[string]string),
		tutors:     make(map[string]map[string]struct{}),
	}
}

func (r *DirectoryRepo) AddUser(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[id] = struct{}{}
}

// AddRole clasifica el nombre en su RoleKind acá, en la frontera donde
// se lee el rol; el resto del sistema solo ve la variante.
func (r *DirectoryRepo) AddRole(id, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[id] = directory.Role{ID: id, Name: name, Kind: directory.ParseRoleKind(name)}
}

func (r *DirectoryRepo) AddCourse(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.courses[id] = struct{}{}
}

func (r *DirectoryRepo) EnrollStudent(studentID, courseID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enrollment[studentID] = courseID
}

func (r *DirectoryRepo) AssignTutor(userID, courseID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tutors[userID] == nil {
		r.tutors[userID] = make(map[string]struct{})
	}
	r.tutors[userID][courseID] = struct{}{}
}

func (r *DirectoryRepo) UserExists(_ context.Context, userID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[userID]
	return ok, nil
}

func (r *DirectoryRepo) RoleByID(_ context.Context, roleID string) (directory.Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	role, ok := r.roles[roleID]
	if !ok {
		return directory.Role{}, workflow.ErrNotFound
	}
	return role, nil
}

func (r *DirectoryRepo) CourseExists(_ context.Context, courseID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.courses[courseID]
	return ok, nil
}

func (r *DirectoryRepo) CourseOfStudent(_ context.Context, studentID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enrollment[studentID], nil
}

func (r *DirectoryRepo) TutorCourses(_ context.Context, userID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.tutors[userID]))
	for c := range r.tutors[userID] {
		out = append(out, c)
	}
	return out, nil
}
