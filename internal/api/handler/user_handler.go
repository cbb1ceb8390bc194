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

const maxImportSize = 10 << 20 // 10 MiB workbook upload cap

type UserHandler struct {
	userService *service.UserService
	denylist    *cache.TokenDenylist
}

func NewUserHandler(userService *service.UserService, denylist *cache.TokenDenylist) *UserHandler {
	return &UserHandler{userService: userService, denylist: denylist}
}

func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator(h.denylist))
	r.Use(middleware.AdminOnly)

	r.Get("/", h.list)
	r.Get("/{userID}", h.get)
	r.Put("/{userID}", h.update)
	r.Delete("/{userID}", h.delete)
	r.Post("/import", h.bulkImport)
}

func (h *UserHandler) list(w http.ResponseWriter, r *http.Request) {
	page, pageSize := paginationParams(r)
	institutionID := r.URL.Query().Get("institution")
	role := r.URL.Query().Get("role")
	searchTerm := r.URL.Query().Get("search")

	users, total, err := h.userService.List(r.Context(), page, pageSize, institutionID, role, searchTerm)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}

	type PaginatedUsersResponse struct {
		Users    []model.User `json:"users"`
		Total    int          `json:"total"`
		Page     int          `json:"page"`
		PageSize int          `json:"page_size"`
	}
	common.RespondWithJSON(w, http.StatusOK, PaginatedUsersResponse{
		Users:    users,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

func (h *UserHandler) get(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.Get(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, user)
}

func (h *UserHandler) update(w http.ResponseWriter, r *http.Request) {
	var req service.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}

	user, err := h.userService.Update(r.Context(), chi.URLParam(r, "userID"), req)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, user)
}

func (h *UserHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.userService.Delete(r.Context(), chi.URLParam(r, "userID")); err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "User deleted"})
}

func (h *UserHandler) bulkImport(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Missing file field: "+err.Error())
		return
	}
	defer file.Close()

	result, err := h.userService.ImportFromXLSX(r.Context(), file)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, result)
}
