package approvals

import (
	"context"

	"school-admin/internal/ports/directory"
)

// Source adapta el repositorio de aprobaciones a las consultas que
// necesitan el resolver de autorización y el módulo de permisos, sin
// que esos paquetes importen este.
type Source struct {
	repo Repository
	dir  directory.Directory
}

func NewSource(repo Repository, dir directory.Directory) *Source {
	return &Source{repo: repo, dir: dir}
}

// ApprovedRoleKinds devuelve las variantes de rol con grant APROBADO.
// El nombre del rol se clasifica en la frontera del directorio, acá solo
// se recolectan las variantes ya parseadas.
func (s *Source) ApprovedRoleKinds(ctx context.Context, userID string) ([]directory.RoleKind, error) {
	grants, err := s.repo.ListApprovedRoleGrants(ctx, userID)
	if err != nil {
		return nil, err
	}

	kinds := make([]directory.RoleKind, 0, len(grants))
	for _, g := range grants {
		role, err := s.dir.RoleByID(ctx, g.RoleID)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, role.Kind)
	}
	return kinds, nil
}

// LinkedStudents devuelve los estudiantes vinculados a un padre en
// cualquier estado (los vínculos pendientes cuentan para autorizar la
// aprobación del rol padre).
func (s *Source) LinkedStudents(ctx context.Context, parentID string) ([]string, error) {
	links, err := s.repo.ListLinksByParent(ctx, parentID)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(links))
	for _, l := range links {
		out = append(out, l.StudentID)
	}
	return out, nil
}

// ApprovedStudents devuelve solo los vínculos APROBADOS: los únicos que
// las funciones dependientes (permisos de acceso) tratan como válidos.
func (s *Source) ApprovedStudents(ctx context.Context, parentID string) ([]string, error) {
	links, err := s.repo.ListLinksByParent(ctx, parentID)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(links))
	for _, l := range links {
		if l.IsApproved() {
			out = append(out, l.StudentID)
		}
	}
	return out, nil
}

func (s *Source) IsApprovedGuardian(ctx context.Context, parentID, studentID string) (bool, error) {
	students, err := s.ApprovedStudents(ctx, parentID)
	if err != nil {
		return false, err
	}
	for _, st := range students {
		if st == studentID {
			return true, nil
		}
	}
	return false, nil
}
