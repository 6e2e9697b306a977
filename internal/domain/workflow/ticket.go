package workflow

import "time"

// Status es el estado compartido de una solicitud.
// UTILIZADO y VENCIDO solo aplican a permisos de acceso y solo
// son alcanzables desde APROBADO.
type Status string

const (
	StatusPending  Status = "PENDIENTE"
	StatusApproved Status = "APROBADO"
	StatusRejected Status = "RECHAZADO"
	StatusConsumed Status = "UTILIZADO"
	StatusExpired  Status = "VENCIDO"
)

type Decision string

const (
	DecisionApprove Decision = "aprobar"
	DecisionReject  Decision = "rechazar"
)

// Ticket es la capacidad de aprobación que comparten RoleGrant,
// GuardianLink y Permission: estado + aprobador + fecha de resolución.
// ApproverID y ResolvedAt se setean juntos, una sola vez, en la
// transición PENDIENTE -> {APROBADO, RECHAZADO}.
type Ticket struct {
	Status     Status
	ApproverID *string
	ResolvedAt *time.Time
	Comment    string
}

func NewTicket() Ticket {
	return Ticket{Status: StatusPending}
}

// Resolve aplica la decisión de un aprobador sobre un ticket PENDIENTE.
func (t *Ticket) Resolve(approverID string, d Decision, comment string, at time.Time) error {
	if t.Status != StatusPending {
		return ErrInvalidState
	}

	switch d {
	case DecisionApprove:
		t.Status = StatusApproved
	case DecisionReject:
		t.Status = StatusRejected
	default:
		return ErrInvalidInput
	}

	id := approverID
	ts := at
	t.ApproverID = &id
	t.ResolvedAt = &ts
	t.Comment = comment
	return nil
}

// Reopen vuelve un ticket RECHAZADO a PENDIENTE limpiando aprobador,
// fecha y comentario. Re-solicitar muta la misma fila en lugar de
// crear un duplicado (regla de identidad de RoleGrant y GuardianLink;
// los permisos de acceso nunca se reabren).
func (t *Ticket) Reopen() error {
	if t.Status != StatusRejected {
		return ErrInvalidState
	}
	*t = NewTicket()
	return nil
}

// Consume marca un ticket APROBADO como UTILIZADO (canje del código).
func (t *Ticket) Consume() error {
	if t.Status != StatusApproved {
		return ErrInvalidState
	}
	t.Status = StatusConsumed
	return nil
}

// Expire marca un ticket APROBADO como VENCIDO.
func (t *Ticket) Expire() error {
	if t.Status != StatusApproved {
		return ErrInvalidState
	}
	t.Status = StatusExpired
	return nil
}

func (t Ticket) IsPending() bool  { return t.Status == StatusPending }
func (t Ticket) IsApproved() bool { return t.Status == StatusApproved }

// Terminal indica que ninguna transición sale de este estado.
func (t Ticket) Terminal() bool {
	switch t.Status {
	case StatusConsumed, StatusExpired:
		return true
	default:
		return false
	}
}
