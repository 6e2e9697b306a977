package permissions

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"school-admin/internal/domain/workflow"
	"school-admin/internal/middleware"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/permisos", func(pr chi.Router) {
		pr.Post("/", createPermissionHandler(svc))
		pr.Get("/{id}", getPermissionHandler(svc))
		pr.Post("/{id}/aprobar", resolvePermissionHandler(svc, workflow.DecisionApprove))
		pr.Post("/{id}/rechazar", resolvePermissionHandler(svc, workflow.DecisionReject))
		pr.Post("/validar/{codigoQR}", redeemPermissionHandler(svc))
	})
}

type createPermissionRequest struct {
	PadreID       string    `json:"padreId"`
	CursoID       string    `json:"cursoId"`
	EstudianteID  string    `json:"estudianteId,omitempty"`
	Tipo          string    `json:"tipo"`
	InicioVentana time.Time `json:"inicioVentana"`
	FinVentana    time.Time `json:"finVentana"`
}

type resolveRequest struct {
	Comentarios string `json:"comentarios,omitempty"`
}

type permissionResponse struct {
	ID            string     `json:"id"`
	PadreID       string     `json:"padreId"`
	CursoID       string     `json:"cursoId"`
	EstudianteID  string     `json:"estudianteId,omitempty"`
	Tipo          Kind       `json:"tipo"`
	InicioVentana time.Time  `json:"inicioVentana"`
	FinVentana    time.Time  `json:"finVentana"`
	Estado        string     `json:"estado"`
	CodigoQR      string     `json:"codigoQR,omitempty"`
	AprobadorID   *string    `json:"aprobadorId,omitempty"`
	ResueltoEn    *time.Time `json:"resueltoEn,omitempty"`
	Comentario    string     `json:"comentario,omitempty"`
	CreadoEn      time.Time  `json:"creadoEn"`
	ActualizadoEn time.Time  `json:"actualizadoEn"`
}

func createPermissionHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req createPermissionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		// El padre solicita sus propios permisos; si el body no trae
		// padreId se usa la identidad del llamador.
		parentID := strings.TrimSpace(req.PadreID)
		if parentID == "" {
			parentID = claims.UserID
		}
		if parentID != claims.UserID {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		p, err := svc.Create(r.Context(), CreateInput{
			ParentID:    parentID,
			CourseID:    req.CursoID,
			StudentID:   req.EstudianteID,
			Kind:        req.Tipo,
			WindowStart: req.InicioVentana,
			WindowEnd:   req.FinVentana,
		})
		if err != nil {
			writeWorkflowError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toPermissionResponse(p))
	}
}

func getPermissionHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		p, err := svc.Get(r.Context(), chi.URLParam(r, "id"), claims.UserID)
		if err != nil {
			writeWorkflowError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPermissionResponse(p))
	}
}

func resolvePermissionHandler(svc *Service, d workflow.Decision) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req resolveRequest
		if r.Body != nil {
			// body opcional: solo comentarios
			_ = json.NewDecoder(r.Body).Decode(&req)
		}

		p, err := svc.Resolve(r.Context(), chi.URLParam(r, "id"), claims.UserID, d, req.Comentarios)
		if err != nil {
			writeWorkflowError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPermissionResponse(p))
	}
}

func redeemPermissionHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := svc.Redeem(r.Context(), chi.URLParam(r, "codigoQR"))
		if err != nil {
			writeWorkflowError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPermissionResponse(p))
	}
}

// ToResponse expone el DTO de permiso para que /approvals/pendientes
// arme una sola respuesta con los tres tipos de solicitud.
func ToResponse(p Permission) any {
	return toPermissionResponse(p)
}

func toPermissionResponse(p Permission) permissionResponse {
	out := permissionResponse{
		ID:            p.ID,
		PadreID:       p.ParentID,
		CursoID:       p.CourseID,
		EstudianteID:  p.StudentID,
		Tipo:          p.Kind,
		InicioVentana: p.WindowStart,
		FinVentana:    p.WindowEnd,
		Estado:        string(p.Status),
		AprobadorID:   p.ApproverID,
		ResueltoEn:    p.ResolvedAt,
		Comentario:    p.Comment,
		CreadoEn:      p.CreatedAt,
		ActualizadoEn: p.UpdatedAt,
	}
	// el código deja de exponerse una vez consumido o vencido
	if !p.Terminal() {
		out.CodigoQR = p.CredentialToken
	}
	return out
}

func writeWorkflowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workflow.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, workflow.ErrUnauthorized):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, workflow.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, workflow.ErrInvalidState):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, workflow.ErrNotYetValid):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, workflow.ErrExpired):
		http.Error(w, err.Error(), http.StatusGone)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// writeJSON está duplicado intencionalmente en handlers de distintos
// módulos para evitar crear helpers compartidos demasiado pronto.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
