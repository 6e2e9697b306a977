package auth

// Claims representa la información extraída del token.
// El core solo usa UserID como identidad opaca del llamador; la emisión
// y firma del token son del proveedor de identidad externo.
type Claims struct {
	UserID        string
	Email         string
	InstitutionID string
}
