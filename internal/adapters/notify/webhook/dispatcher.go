package webhook

import (
	"context"
	"net/http"
	"time"

	"school-admin/internal/platform/httpclient"
	"school-admin/internal/ports/notify"
)

// Dispatcher publica cada notificación como JSON contra el servicio de
// notificaciones externo. El llamador (los servicios de workflow) ya
// trata el despacho como best-effort, así que acá no hay reintentos.
type Dispatcher struct {
	client *httpclient.Client
	path   string
}

func New(baseURL string, timeout time.Duration) (*Dispatcher, error) {
	client, err := httpclient.NewWithBaseURL(baseURL, timeout)
	if err != nil {
		return nil, err
	}
	return &Dispatcher{client: client, path: "/notifications"}, nil
}

type payload struct {
	DestinatarioID string `json:"destinatarioId"`
	Asunto         string `json:"asunto"`
	Mensaje        string `json:"mensaje"`
}

func (d *Dispatcher) Dispatch(ctx context.Context, n notify.Notification) error {
	return d.client.DoJSON(ctx, http.MethodPost, d.path, nil, payload{
		DestinatarioID: n.RecipientID,
		Asunto:         n.Subject,
		Mensaje:        n.Message,
	}, nil)
}
