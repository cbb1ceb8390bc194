package handler

import (
	"encoding/json"
	"net/http"

	"query_quest/internal/api/middleware"
	"query_quest/internal/app/service"
	"query_quest/internal/common"
	"query_quest/internal/platform/ai"
	"query_quest/internal/platform/cache"

	"github.com/go-chi/chi/v5"
)

type ChatHandler struct {
	chatService *service.ChatService
	denylist    *cache.TokenDenylist
}

func NewChatHandler(chatService *service.ChatService, denylist *cache.TokenDenylist) *ChatHandler {
	return &ChatHandler{chatService: chatService, denylist: denylist}
}

func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.Authenticator(h.denylist))
	r.Post("/", h.chat)
}

func (h *ChatHandler) chat(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		common.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	var req struct {
		Message             string       `json:"message"`
		ConversationHistory []ai.Message `json:"conversationHistory"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return
	}
	if req.Message == "" {
		common.RespondWithError(w, http.StatusBadRequest, "Message is required")
		return
	}

	reply, err := h.chatService.Respond(r.Context(), userID, req.Message, req.ConversationHistory)
	if err != nil {
		common.RespondWithError(w, common.HTTPStatusFromError(err), err.Error())
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"response": reply})
}
