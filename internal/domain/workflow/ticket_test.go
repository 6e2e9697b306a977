package workflow

import (
	"testing"
	"time"
)

func TestTicket_Resolve_Approve(t *testing.T) {
	tk := NewTicket()
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	if err := tk.Resolve("admin-1", DecisionApprove, "ok", at); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if tk.Status != StatusApproved {
		t.Fatalf("expected APROBADO, got %s", tk.Status)
	}
	if tk.ApproverID == nil || *tk.ApproverID != "admin-1" {
		t.Fatalf("expected approver admin-1, got %v", tk.ApproverID)
	}
	if tk.ResolvedAt == nil || !tk.ResolvedAt.Equal(at) {
		t.Fatalf("expected resolvedAt %v, got %v", at, tk.ResolvedAt)
	}
	if tk.Comment != "ok" {
		t.Fatalf("expected comment ok, got %q", tk.Comment)
	}
}

func TestTicket_Resolve_OnlyFromPending(t *testing.T) {
	at := time.Now()

	for _, st := range []Status{StatusApproved, StatusRejected, StatusConsumed, StatusExpired} {
		tk := Ticket{Status: st}
		if err := tk.Resolve("a", DecisionApprove, "", at); err != ErrInvalidState {
			t.Fatalf("status %s: expected ErrInvalidState, got %v", st, err)
		}
	}
}

func TestTicket_Resolve_UnknownDecision(t *testing.T) {
	tk := NewTicket()
	if err := tk.Resolve("a", Decision("tal-vez"), "", time.Now()); err != ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if tk.Status != StatusPending {
		t.Fatalf("ticket mutated on invalid decision")
	}
}

func TestTicket_Reopen_ClearsResolution(t *testing.T) {
	tk := NewTicket()
	_ = tk.Resolve("admin-1", DecisionReject, "faltan datos", time.Now())

	if err := tk.Reopen(); err != nil {
		t.Fatalf("Reopen returned error: %v", err)
	}
	if tk.Status != StatusPending {
		t.Fatalf("expected PENDIENTE after reopen, got %s", tk.Status)
	}
	if tk.ApproverID != nil || tk.ResolvedAt != nil || tk.Comment != "" {
		t.Fatalf("expected cleared resolution fields, got %+v", tk)
	}
}

func TestTicket_Reopen_OnlyFromRejected(t *testing.T) {
	for _, st := range []Status{StatusPending, StatusApproved, StatusConsumed, StatusExpired} {
		tk := Ticket{Status: st}
		if err := tk.Reopen(); err != ErrInvalidState {
			t.Fatalf("status %s: expected ErrInvalidState, got %v", st, err)
		}
	}
}

func TestTicket_ConsumeAndExpire_OnlyFromApproved(t *testing.T) {
	tk := Ticket{Status: StatusApproved}
	if err := tk.Consume(); err != nil {
		t.Fatalf("Consume from APROBADO: %v", err)
	}
	if tk.Status != StatusConsumed {
		t.Fatalf("expected UTILIZADO, got %s", tk.Status)
	}
	// un segundo canje ya no parte de APROBADO
	if err := tk.Consume(); err != ErrInvalidState {
		t.Fatalf("expected ErrInvalidState on double consume, got %v", err)
	}

	tk2 := Ticket{Status: StatusApproved}
	if err := tk2.Expire(); err != nil {
		t.Fatalf("Expire from APROBADO: %v", err)
	}
	if tk2.Status != StatusExpired {
		t.Fatalf("expected VENCIDO, got %s", tk2.Status)
	}
	if err := tk2.Consume(); err != ErrInvalidState {
		t.Fatalf("expected ErrInvalidState consuming VENCIDO, got %v", err)
	}

	if !tk.Terminal() || !tk2.Terminal() {
		t.Fatalf("UTILIZADO/VENCIDO should be terminal")
	}
}
