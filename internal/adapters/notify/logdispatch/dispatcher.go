package logdispatch

import (
	"context"

	"school-admin/internal/platform/logger"
	"school-admin/internal/ports/notify"
)

// Dispatcher es el despacho por defecto en dev: escribe la notificación
// al log y nada más.
type Dispatcher struct {
	log logger.Logger
}

func New(log logger.Logger) *Dispatcher {
	return &Dispatcher{log: log}
}

func (d *Dispatcher) Dispatch(_ context.Context, n notify.Notification) error {
	d.log.Info("notification", map[string]any{
		"recipient": n.RecipientID,
		"subject":   n.Subject,
		"message":   n.Message,
	})
	return nil
}
