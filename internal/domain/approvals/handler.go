package approvals

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"school-admin/internal/domain/permissions"
	"school-admin/internal/domain/workflow"
	"school-admin/internal/middleware"
	"school-admin/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service, perms *permissions.Service) {
	r.Route("/approvals", func(ar chi.Router) {
		ar.Post("/rol/{usuarioId}/{rolId}", requestRoleHandler(svc))
		ar.Post("/rol/{usuarioId}/{rolId}/resolve", resolveRoleHandler(svc))

		ar.Post("/vinculacion", requestLinkHandler(svc))
		ar.Post("/vinculacion/{padreId}/{estudianteId}/resolve", resolveLinkHandler(svc))

		ar.Get("/pendientes", pendingHandler(svc, perms))
	})
}

type resolveRequest struct {
	Aprobado    bool   `json:"aprobado"`
	Comentarios string `json:"comentarios,omitempty"`
}

func (req resolveRequest) decision() workflow.Decision {
	if req.Aprobado {
		return workflow.DecisionApprove
	}
	return workflow.DecisionReject
}

type requestLinkRequest struct {
	PadreID         string `json:"padreId"`
	EstudianteID    string `json:"estudianteId"`
	EsRepresentante bool   `json:"esRepresentante"`
}

type roleGrantResponse struct {
	UsuarioID     string     `json:"usuarioId"`
	RolID         string     `json:"rolId"`
	Estado        string     `json:"estado"`
	AprobadorID   *string    `json:"aprobadorId,omitempty"`
	ResueltoEn    *time.Time `json:"resueltoEn,omitempty"`
	Comentario    string     `json:"comentario,omitempty"`
	CreadoEn      time.Time  `json:"creadoEn"`
	ActualizadoEn time.Time  `json:"actualizadoEn"`
}

type linkResponse struct {
	PadreID         string     `json:"padreId"`
	EstudianteID    string     `json:"estudianteId"`
	EsRepresentante bool       `json:"esRepresentante"`
	Estado          string     `json:"estado"`
	AprobadorID     *string    `json:"aprobadorId,omitempty"`
	ResueltoEn      *time.Time `json:"resueltoEn,omitempty"`
	Comentario      string     `json:"comentario,omitempty"`
	CreadoEn        time.Time  `json:"creadoEn"`
	ActualizadoEn   time.Time  `json:"actualizadoEn"`
}

func requestRoleHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireClaims(w, r); !ok {
			return
		}

		g, err := svc.RequestRole(r.Context(), chi.URLParam(r, "usuarioId"), chi.URLParam(r, "rolId"))
		if err != nil {
			writeWorkflowError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toRoleGrantResponse(g))
	}
}

func resolveRoleHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireClaims(w, r)
		if !ok {
			return
		}

		var req resolveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		g, err := svc.ResolveRole(r.Context(),
			chi.URLParam(r, "usuarioId"), chi.URLParam(r, "rolId"),
			claims.UserID, req.decision(), req.Comentarios)
		if err != nil {
			writeWorkflowError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toRoleGrantResponse(g))
	}
}

func requestLinkHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireClaims(w, r)
		if !ok {
			return
		}

		var req requestLinkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.PadreID) == "" {
			req.PadreID = claims.UserID
		}

		l, err := svc.RequestLink(r.Context(), LinkInput{
			ParentID:         req.PadreID,
			StudentID:        req.EstudianteID,
			IsRepresentative: req.EsRepresentante,
		})
		if err != nil {
			writeWorkflowError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toLinkResponse(l))
	}
}

func resolveLinkHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireClaims(w, r)
		if !ok {
			return
		}

		var req resolveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		l, err := svc.ResolveLink(r.Context(),
			chi.URLParam(r, "padreId"), chi.URLParam(r, "estudianteId"),
			claims.UserID, req.decision(), req.Comentarios)
		if err != nil {
			writeWorkflowError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toLinkResponse(l))
	}
}

// pendingHandler junta las tres bandejas del aprobador en una sola
// respuesta: roles, vinculaciones y permisos.
func pendingHandler(svc *Service, perms *permissions.Service) http.HandlerFunc {
	type pendingResponse struct {
		Roles         []roleGrantResponse `json:"roles"`
		Vinculaciones []linkResponse      `json:"vinculaciones"`
		Permisos      []any               `json:"permisos"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := requireClaims(w, r)
		if !ok {
			return
		}

		pending, err := svc.FindApprovable(r.Context(), claims.UserID)
		if err != nil {
			writeWorkflowError(w, err)
			return
		}
		permList, err := perms.FindApprovable(r.Context(), claims.UserID)
		if err != nil {
			writeWorkflowError(w, err)
			return
		}

		out := pendingResponse{
			Roles:         make([]roleGrantResponse, 0, len(pending.RoleGrants)),
			Vinculaciones: make([]linkResponse, 0, len(pending.Links)),
			Permisos:      make([]any, 0, len(permList)),
		}
		for _, g := range pending.RoleGrants {
			out.Roles = append(out.Roles, toRoleGrantResponse(g))
		}
		for _, l := range pending.Links {
			out.Vinculaciones = append(out.Vinculaciones, toLinkResponse(l))
		}
		for _, p := range permList {
			out.Permisos = append(out.Permisos, permissions.ToResponse(p))
		}

		writeJSON(w, http.StatusOK, out)
	}
}

func toRoleGrantResponse(g RoleGrant) roleGrantResponse {
	return roleGrantResponse{
		UsuarioID:     g.UserID,
		RolID:         g.RoleID,
		Estado:        string(g.Status),
		AprobadorID:   g.ApproverID,
		ResueltoEn:    g.ResolvedAt,
		Comentario:    g.Comment,
		CreadoEn:      g.CreatedAt,
		ActualizadoEn: g.UpdatedAt,
	}
}

func toLinkResponse(l GuardianLink) linkResponse {
	return linkResponse{
		PadreID:         l.ParentID,
		EstudianteID:    l.StudentID,
		EsRepresentante: l.IsRepresentative,
		Estado:          string(l.Status),
		AprobadorID:     l.ApproverID,
		ResueltoEn:      l.ResolvedAt,
		Comentario:      l.Comment,
		CreadoEn:        l.CreatedAt,
		ActualizadoEn:   l.UpdatedAt,
	}
}

func requireClaims(w http.ResponseWriter, r *http.Request) (auth.Claims, bool) {
	c, found := middleware.GetClaims(r.Context())
	if !found || strings.TrimSpace(c.UserID) == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return auth.Claims{}, false
	}
	return c, true
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
