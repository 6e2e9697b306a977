package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mem "school-admin/internal/adapters/storage/memory"
	"school-admin/internal/domain/approvals"
	"school-admin/internal/domain/workflow"
	"school-admin/internal/router"
)

// newTestServer arma el stack in-memory con un directorio mínimo:
// admin-1 con rol admin ya aprobado (alguien tiene que poder aprobar lo
// demás), profe-1 asignado como tutor de curso-1a, y est-1 inscrito.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	dir := mem.NewDirectoryRepo()
	for _, u := range []string{"admin-1", "profe-1", "padre-1", "est-1"} {
		dir.AddUser(u)
	}
	dir.AddRole("rol-admin", "administrador")
	dir.AddRole("rol-profesor", "profesor")
	dir.AddCourse("curso-1a")
	dir.EnrollStudent("est-1", "curso-1a")
	dir.AssignTutor("profe-1", "curso-1a")

	appr := mem.NewApprovalsRepo()
	now := time.Now()
	seedApprover := "seed"
	err := appr.CreateRoleGrant(context.Background(), approvals.RoleGrant{
		UserID: "admin-1",
		RoleID: "rol-admin",
		Ticket: workflow.Ticket{
			Status:     workflow.StatusApproved,
			ApproverID: &seedApprover,
			ResolvedAt: &now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("seed admin grant: %v", err)
	}

	ts := httptest.NewServer(router.NewRouter(router.Options{
		AuthVerifier: nil, // modo dev: X-Debug-User-ID
		Directory:    dir,
		Approvals:    appr,
		Permissions:  mem.NewPermissionsRepo(),
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestHTTP_EndToEnd_ApprovalFlow(t *testing.T) {
	ts := newTestServer(t)

	// 1) profe-1 solicita el rol profesor => PENDIENTE
	{
		st, body := doReq(t, ts.URL, "POST", "/approvals/rol/profe-1/rol-profesor", "profe-1", nil)
		if st != http.StatusCreated {
			t.Fatalf("expected 201 request role, got %d body=%s", st, string(body))
		}
		if estado(t, body) != "PENDIENTE" {
			t.Fatalf("expected PENDIENTE, body=%s", string(body))
		}
	}

	// 2) padre-1 no puede resolver una solicitud de rol profesor
	{
		st, _ := doReq(t, ts.URL, "POST", "/approvals/rol/profe-1/rol-profesor/resolve", "padre-1", map[string]any{
			"aprobado": true,
		})
		if st != http.StatusForbidden {
			t.Fatalf("expected 403 resolve by padre, got %d", st)
		}
	}

	// 3) admin-1 aprueba
	{
		st, body := doReq(t, ts.URL, "POST", "/approvals/rol/profe-1/rol-profesor/resolve", "admin-1", map[string]any{
			"aprobado": true,
		})
		if st != http.StatusOK {
			t.Fatalf("expected 200 approve role, got %d body=%s", st, string(body))
		}
		if estado(t, body) != "APROBADO" {
			t.Fatalf("expected APROBADO, body=%s", string(body))
		}
	}

	// 4) resolver dos veces => 409
	{
		st, _ := doReq(t, ts.URL, "POST", "/approvals/rol/profe-1/rol-profesor/resolve", "admin-1", map[string]any{
			"aprobado": true,
		})
		if st != http.StatusConflict {
			t.Fatalf("expected 409 double resolve, got %d", st)
		}
	}

	// 5) padre-1 solicita vinculación con est-1
	{
		st, body := doReq(t, ts.URL, "POST", "/approvals/vinculacion", "padre-1", map[string]any{
			"estudianteId":    "est-1",
			"esRepresentante": true,
		})
		if st != http.StatusCreated {
			t.Fatalf("expected 201 request link, got %d body=%s", st, string(body))
		}
	}

	// 6) profe-1 (tutor de curso-1a con rol profesor aprobado) la ve en
	// su bandeja y la aprueba
	{
		st, body := doReq(t, ts.URL, "GET", "/approvals/pendientes", "profe-1", nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 pendientes, got %d body=%s", st, string(body))
		}
		if !strings.Contains(string(body), "est-1") {
			t.Fatalf("expected pending link in inbox, body=%s", string(body))
		}
	}
	{
		st, body := doReq(t, ts.URL, "POST", "/approvals/vinculacion/padre-1/est-1/resolve", "profe-1", map[string]any{
			"aprobado": true,
		})
		if st != http.StatusOK {
			t.Fatalf("expected 200 approve link, got %d body=%s", st, string(body))
		}
	}

	// 7) padre-1 crea un permiso de acceso dentro de ventana
	permisoID := ""
	{
		st, body := doReq(t, ts.URL, "POST", "/permisos/", "padre-1", map[string]any{
			"cursoId":       "curso-1a",
			"estudianteId":  "est-1",
			"tipo":          "ACCESO",
			"inicioVentana": time.Now().Add(-time.Hour).UTC().Format(time.RFC3339),
			"finVentana":    time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
		})
		if st != http.StatusCreated {
			t.Fatalf("expected 201 create permiso, got %d body=%s", st, string(body))
		}
		var resp struct {
			ID string `json:"id"`
		}
		_ = json.Unmarshal(body, &resp)
		if resp.ID == "" {
			t.Fatalf("create permiso: missing id body=%s", string(body))
		}
		permisoID = resp.ID
	}

	// 8) profe-1 aprueba y recibe el código QR
	codigoQR := ""
	{
		st, body := doReq(t, ts.URL, "POST", "/permisos/"+permisoID+"/aprobar", "profe-1", nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 approve permiso, got %d body=%s", st, string(body))
		}
		var resp struct {
			Estado   string `json:"estado"`
			CodigoQR string `json:"codigoQR"`
		}
		_ = json.Unmarshal(body, &resp)
		if resp.Estado != "APROBADO" || resp.CodigoQR == "" {
			t.Fatalf("expected APROBADO with codigoQR, body=%s", string(body))
		}
		codigoQR = resp.CodigoQR
	}

	// 9) canje en portería: la primera vez pasa, la segunda no
	{
		st, body := doReq(t, ts.URL, "POST", "/permisos/validar/"+codigoQR, "", nil)
		if st != http.StatusOK {
			t.Fatalf("expected 200 redeem, got %d body=%s", st, string(body))
		}
		if estado(t, body) != "UTILIZADO" {
			t.Fatalf("expected UTILIZADO, body=%s", string(body))
		}
	}
	{
		st, _ := doReq(t, ts.URL, "POST", "/permisos/validar/"+codigoQR, "", nil)
		if st != http.StatusConflict {
			t.Fatalf("expected 409 second redeem, got %d", st)
		}
	}
}

func TestHTTP_RejectedLink_CanBeRequestedAgain(t *testing.T) {
	ts := newTestServer(t)

	// vinculación pendiente
	{
		st, body := doReq(t, ts.URL, "POST", "/approvals/vinculacion", "padre-1", map[string]any{
			"estudianteId": "est-1",
		})
		if st != http.StatusCreated {
			t.Fatalf("expected 201 request link, got %d body=%s", st, string(body))
		}
	}

	// re-solicitar estando PENDIENTE => 409
	{
		st, _ := doReq(t, ts.URL, "POST", "/approvals/vinculacion", "padre-1", map[string]any{
			"estudianteId": "est-1",
		})
		if st != http.StatusConflict {
			t.Fatalf("expected 409 re-request pending link, got %d", st)
		}
	}

	// el admin la rechaza
	{
		st, body := doReq(t, ts.URL, "POST", "/approvals/vinculacion/padre-1/est-1/resolve", "admin-1", map[string]any{
			"aprobado":    false,
			"comentarios": "documentación incompleta",
		})
		if st != http.StatusOK {
			t.Fatalf("expected 200 reject link, got %d body=%s", st, string(body))
		}
		if estado(t, body) != "RECHAZADO" {
			t.Fatalf("expected RECHAZADO, body=%s", string(body))
		}
	}

	// re-solicitar tras rechazo reabre la misma fila => PENDIENTE
	{
		st, body := doReq(t, ts.URL, "POST", "/approvals/vinculacion", "padre-1", map[string]any{
			"estudianteId": "est-1",
		})
		if st != http.StatusCreated {
			t.Fatalf("expected 201 re-request rejected link, got %d body=%s", st, string(body))
		}
		if estado(t, body) != "PENDIENTE" {
			t.Fatalf("expected PENDIENTE after reopen, body=%s", string(body))
		}
	}
}

func TestHTTP_RequestRole_UnknownRole(t *testing.T) {
	ts := newTestServer(t)

	st, _ := doReq(t, ts.URL, "POST", "/approvals/rol/profe-1/rol-nope", "profe-1", nil)
	if st != http.StatusNotFound {
		t.Fatalf("expected 404 unknown role, got %d", st)
	}
}

func estado(t *testing.T, body []byte) string {
	t.Helper()

	var resp struct {
		Estado string `json:"estado"`
	}
	_ = json.Unmarshal(body, &resp)
	return resp.Estado
}

func doReq(t *testing.T, baseURL, method, path, debugUserID string, body any) (int, []byte) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("json marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, baseURL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if debugUserID != "" {
		req.Header.Set("X-Debug-User-ID", debugUserID)
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()

	respBody, _ := io.ReadAll(res.Body)
	return res.StatusCode, respBody
}
