// Package api exposes the history and persist endpoints and mounts the relay.
package api

import (
	"adoption-chat/auth"
	"adoption-chat/domain/chat"
	"adoption-chat/errors"
	"adoption-chat/services"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/samber/lo"
)

const maxBodyBytes = 64 << 10

var validate = validator.New()

// PostMessageRequest is the body of POST /conversations/{id}/messages.
type PostMessageRequest struct {
	ID                string `json:"id" validate:"required,max=64"`
	SenderID          string `json:"senderId" validate:"required"`
	SenderDisplayName string `json:"senderDisplayName"`
	Content           string `json:"content" validate:"required"`
	CreatedAt         string `json:"createdAt"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type Handler struct {
	log         *slog.Logger
	chatService services.IChatService
}

// NewRouter wires the REST endpoints and, when relay is not nil, the websocket route.
// Everything but /health requires a bearer token.
func NewRouter(log *slog.Logger, chatService services.IChatService, signer auth.Signer, relay http.Handler) *mux.Router {
	h := &Handler{log: log, chatService: chatService}

	r := mux.NewRouter().UseEncodedPath()
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	secured := r.NewRoute().Subrouter()
	secured.Use(auth.Middleware(signer))
	secured.HandleFunc("/conversations/{id}/messages", h.GetMessages).Methods(http.MethodGet)
	secured.HandleFunc("/conversations/{id}/messages", h.PostMessage).Methods(http.MethodPost)
	if relay != nil {
		secured.Handle("/rooms/{room}/ws", relay).Methods(http.MethodGet)
	}
	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "UP", Timestamp: time.Now().UTC()})
}

func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	conversationID, err := conversationFromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	messages, err := h.chatService.GetMessages(r.Context(), chat.GetMessageCommand{ConversationID: conversationID})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(messages, func(m chat.Message, _ int) chat.Payload {
		return chat.ToPayload(m)
	}))
}

// PostMessage only accepts messages signed by the caller.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	conversationID, err := conversationFromRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	author, ok := auth.AuthorFromContext(r.Context())
	if !ok {
		h.writeError(w, errors.ErrUnauthenticated)
		return
	}

	var body PostMessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		h.writeError(w, fmt.Errorf("%w: %v", errors.ErrInvalidMessage, err))
		return
	}
	if err := validate.Struct(body); err != nil {
		h.writeError(w, fmt.Errorf("%w: %v", errors.ErrInvalidMessage, err))
		return
	}
	if body.SenderID != author.ID {
		h.writeError(w, errors.ErrForbiddenSender)
		return
	}

	stored, err := h.chatService.PostMessage(r.Context(), chat.PostMessageCommand{
		MessageID:         chat.MessageID(body.ID),
		ConversationID:    conversationID,
		UserID:            author.ID,
		SenderDisplayName: lo.CoalesceOrEmpty(body.SenderDisplayName, author.DisplayName),
		Content:           body.Content,
		CreatedAt:         chat.ParseTimestamp(body.CreatedAt),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, chat.ToPayload(stored))
}

func conversationFromRequest(r *http.Request) (chat.ConversationID, error) {
	id, err := url.PathUnescape(mux.Vars(r)["id"])
	if err != nil || id == "" {
		return "", errors.ErrUnknownConversation
	}
	return chat.ConversationID(id), nil
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed", "error", err)
	} else {
		h.log.Debug("Request rejected", "status", status, "error", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
