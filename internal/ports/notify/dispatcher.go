package notify

import "context"

// Notification es un evento legible para una persona.
type Notification struct {
	RecipientID string
	Subject     string
	Message     string
}

// Dispatcher es el puerto de salida de notificaciones. Es fire-and-forget:
// un error de despacho se loguea y se descarta, nunca revierte la
// transición que lo disparó.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}
