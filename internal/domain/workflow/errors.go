package workflow

import "errors"

// Errores compartidos por los tres tipos de solicitud.
// Los handlers los mapean a status HTTP; solo ErrDuplicateToken se
// reintenta (con otro token).
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidState   = errors.New("invalid state")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidInput   = errors.New("invalid input")
	ErrExpired        = errors.New("expired")
	ErrNotYetValid    = errors.New("not yet valid")
	ErrDuplicateToken = errors.New("duplicate credential token")
)
