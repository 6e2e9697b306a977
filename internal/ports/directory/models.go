package directory

import "strings"

// RoleKind clasifica los nombres de rol en variantes cerradas con una
// regla de autorización por variante. El nombre crudo se parsea una sola
// vez, en la frontera donde se lee el rol, nunca en cada chequeo.
type RoleKind string

const (
	RoleKindAdmin   RoleKind = "admin"
	RoleKindTeacher RoleKind = "profesor"
	RoleKindStudent RoleKind = "estudiante"
	RoleKindParent  RoleKind = "padre"
	RoleKindOther   RoleKind = "otro"
)

func ParseRoleKind(name string) RoleKind {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "admin", "administrador":
		return RoleKindAdmin
	case "profesor":
		return RoleKindTeacher
	case "estudiante":
		return RoleKindStudent
	case "padre", "padre_familia":
		return RoleKindParent
	default:
		return RoleKindOther
	}
}

type Role struct {
	ID   string
	Name string
	Kind RoleKind
}
