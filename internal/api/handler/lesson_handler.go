package handler

import (
	"encoding/json"
	"net/http"

	"query_quest/internal/api/middleware"
	"query_quest/internal/app/service"
	"query_quest/internal/common"
	"query_quest/internal/domain/model"
	"query_quest/internal/platform/cache"

	"github.com/go-chi/chi/v5"
)

type LessonHandler struct {
	lessonService *service.LessonService
	denylist      *cache.TokenDenylist
}

func NewLessonHandler(lessonService *service.LessonService, denylist *cache.TokenDenylist) *LessonHandler {
	return &LessonHandler{lessonService: lessonService, denylist: denylist}
}

func (h *LessonHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator(h.denylist))

	r.Get("/", h.list)
	r.Get("/{lessonID}", h.get)

	r.Group(func(staffRouter chi.Router) {
		staffRouter.Use(middleware.StaffOnly)
		staffRouter.Post("/", h.create)
		staffRouter.Put("/{lessonID}", h.update)
		staffRouter.Patch("/{lessonID}/publish", h.setPublished)
		staffRouter.Delete("/{lessonID}", h.delete)
	})
}

func (h *LessonHandler) list(w http.ResponseWriter, r *http.Request) {
	page, pageSize := paginationParams(r)
	institutionID := r.URL.Query().Get("institution")
	role, _ := middleware.GetUserRoleFromContext(r.Context())

	lessons, total, err := h.lessonService.List(r.Context(), page, pageSize, institutionID, role)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}

	type PaginatedLessonsResponse struct {
		Lessons  []model.Lesson `json:"lessons"`
		Total    int            `json:"total"`
		Page     int            `json:"page"`
		PageSize int            `json:"page_size"`
	}
	common.RespondWithJSON(w, http.StatusOK, PaginatedLessonsResponse{
		Lessons:  lessons,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

func (h *LessonHandler) get(w http.ResponseWriter, r *http.Request) {
	role, _ := middleware.GetUserRoleFromContext(r.Context())

	lesson, err := h.lessonService.Get(r.Context(), chi.URLParam(r, "lessonID"), role)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, lesson)
}

func (h *LessonHandler) create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	var req service.CreateLessonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	lesson, err := h.lessonService.Create(r.Context(), userID, req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, lesson)
}

func (h *LessonHandler) update(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	var req service.UpdateLessonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	lesson, err := h.lessonService.Update(r.Context(), userID, chi.URLParam(r, "lessonID"), req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, lesson)
}

func (h *LessonHandler) setPublished(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	var req struct {
		IsPublished bool `json:"is_published"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	lesson, err := h.lessonService.SetPublished(r.Context(), userID, chi.URLParam(r, "lessonID"), req.IsPublished)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, lesson)
}

func (h *LessonHandler) delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	if err := h.lessonService.Delete(r.Context(), userID, chi.URLParam(r, "lessonID")); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Lesson deleted"})
}
