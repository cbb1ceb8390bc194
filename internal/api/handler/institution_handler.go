package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"query_quest/internal/api/middleware"
	"query_quest/internal/app/service"
	"query_quest/internal/common"
	"query_quest/internal/platform/cache"

	"github.com/go-chi/chi/v5"
)

type InstitutionHandler struct {
	institutionService *service.InstitutionService
	denylist           *cache.TokenDenylist
}

func NewInstitutionHandler(institutionService *service.InstitutionService, denylist *cache.TokenDenylist) *InstitutionHandler {
	return &InstitutionHandler{institutionService: institutionService, denylist: denylist}
}

func (h *InstitutionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.list) // directory is public, the registration form needs it

	r.Group(func(adminRouter chi.Router) {
		adminRouter.Use(middleware.Authenticator(h.denylist))
		adminRouter.Use(middleware.AdminOnly)
		adminRouter.Post("/", h.create)
		adminRouter.Get("/{institutionID}", h.get)
		adminRouter.Put("/{institutionID}", h.update)
		adminRouter.Delete("/{institutionID}", h.delete)
	})
}

func (h *InstitutionHandler) list(w http.ResponseWriter, r *http.Request) {
	institutions, err := h.institutionService.ListAll(r.Context())
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, institutions)
}

func (h *InstitutionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateInstitutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	inst, err := h.institutionService.Create(r.Context(), req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, inst)
}

func (h *InstitutionHandler) get(w http.ResponseWriter, r *http.Request) {
	inst, err := h.institutionService.Get(r.Context(), chi.URLParam(r, "institutionID"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, inst)
}

func (h *InstitutionHandler) update(w http.ResponseWriter, r *http.Request) {
	var req service.CreateInstitutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	inst, err := h.institutionService.Update(r.Context(), chi.URLParam(r, "institutionID"), req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, inst)
}

func (h *InstitutionHandler) delete(w http.ResponseWriter, r *http.Request) {
	result, err := h.institutionService.Delete(r.Context(), chi.URLParam(r, "institutionID"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": fmt.Sprintf("Institution deleted along with %d users and %d challenges",
			result.DeletedUsers, result.DeletedChallenges),
		"deletedUsers":      result.DeletedUsers,
		"deletedChallenges": result.DeletedChallenges,
	})
}
