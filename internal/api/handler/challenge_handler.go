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

type ChallengeHandler struct {
	challengeService *service.ChallengeService
	denylist         *cache.TokenDenylist
}

func NewChallengeHandler(challengeService *service.ChallengeService, denylist *cache.TokenDenylist) *ChallengeHandler {
	return &ChallengeHandler{challengeService: challengeService, denylist: denylist}
}

func (h *ChallengeHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator(h.denylist))

	r.Get("/", h.list)
	r.Get("/{challengeSlug}", h.get)
	r.Post("/{challengeSlug}/attempts", h.submitSolution)

	r.Group(func(staffRouter chi.Router) {
		staffRouter.Use(middleware.StaffOnly)
		staffRouter.Post("/", h.create)
		staffRouter.Put("/{challengeID}", h.update)
		staffRouter.Delete("/{challengeID}", h.delete)
	})
}

func (h *ChallengeHandler) list(w http.ResponseWriter, r *http.Request) {
	page, pageSize := paginationParams(r)
	level, _ := strconv.Atoi(r.URL.Query().Get("level"))
	institutionID := r.URL.Query().Get("institution")
	searchTerm := r.URL.Query().Get("search")

	role, _ := middleware.GetUserRoleFromContext(r.Context())

	challenges, total, err := h.challengeService.List(r.Context(), page, pageSize, level, institutionID, searchTerm, role)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}

	type PaginatedChallengesResponse struct {
		Challenges []model.Challenge `json:"challenges"`
		Total      int               `json:"total"`
		Page       int               `json:"page"`
		PageSize   int               `json:"page_size"`
	}
	common.RespondWithJSON(w, http.StatusOK, PaginatedChallengesResponse{
		Challenges: challenges,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
	})
}

func (h *ChallengeHandler) get(w http.ResponseWriter, r *http.Request) {
	role, _ := middleware.GetUserRoleFromContext(r.Context())

	challenge, err := h.challengeService.GetBySlug(r.Context(), chi.URLParam(r, "challengeSlug"), role)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, challenge)
}

func (h *ChallengeHandler) submitSolution(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	var req service.SubmitSolutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	result, err := h.challengeService.SubmitSolution(r.Context(), userID, chi.URLParam(r, "challengeSlug"), req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, result)
}

func (h *ChallengeHandler) create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	var req service.CreateChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	challenge, err := h.challengeService.Create(r.Context(), userID, req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, challenge)
}

func (h *ChallengeHandler) update(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	var req service.UpdateChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	challenge, err := h.challengeService.Update(r.Context(), userID, chi.URLParam(r, "challengeID"), req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, challenge)
}

func (h *ChallengeHandler) delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	if err := h.challengeService.Delete(r.Context(), userID, chi.URLParam(r, "challengeID")); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Challenge deleted"})
}
