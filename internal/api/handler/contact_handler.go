package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"query_quest/internal/api/middleware"
	"query_quest/internal/app/service"
	"query_quest/internal/common"
	"query_quest/internal/domain/model"
	"query_quest/internal/platform/cache"

	"github.com/go-chi/chi/v5"
)

type ContactHandler struct {
	institutionService *service.InstitutionService
	denylist           *cache.TokenDenylist
}

func NewContactHandler(institutionService *service.InstitutionService, denylist *cache.TokenDenylist) *ContactHandler {
	return &ContactHandler{institutionService: institutionService, denylist: denylist}
}

func (h *ContactHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.create) // public: the "request institution access" form

	r.Group(func(adminRouter chi.Router) {
		adminRouter.Use(middleware.Authenticator(h.denylist))
		adminRouter.Use(middleware.AdminOnly)
		adminRouter.Get("/", h.list)
		adminRouter.Put("/{requestID}/status", h.setStatus)
	})
}

func (h *ContactHandler) create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateContactRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	cr, err := h.institutionService.CreateContactRequest(r.Context(), req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Request received. We will be in touch soon.",
		"request": cr,
	})
}

func (h *ContactHandler) list(w http.ResponseWriter, r *http.Request) {
	page, pageSize := paginationParams(r)
	status := model.ContactRequestStatus(r.URL.Query().Get("status"))

	requests, total, err := h.institutionService.ListContactRequests(r.Context(), page, pageSize, status)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"requests":  requests,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func (h *ContactHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	cr, err := h.institutionService.SetContactRequestStatus(r.Context(), chi.URLParam(r, "requestID"), model.ContactRequestStatus(req.Status))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, cr)
}

// paginationParams reads page/pageSize query params with sane bounds.
func paginationParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
