package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/iota-uz/provisioning-sdk/modules/assistant/domain/entities/conversation"
	"github.com/iota-uz/provisioning-sdk/modules/assistant/presentation/controllers/dtos"
	"github.com/iota-uz/provisioning-sdk/modules/assistant/presentation/mappers"
	"github.com/iota-uz/provisioning-sdk/modules/assistant/services"
	"github.com/iota-uz/provisioning-sdk/pkg/application"
	"github.com/iota-uz/provisioning-sdk/pkg/composables"
	"github.com/iota-uz/provisioning-sdk/pkg/httpapi"
)

const BasePath = "/assistant/api"

type AssistantController struct {
	chat     *services.ChatService
	basePath string
}

func NewAssistantController(app application.Application) application.Controller {
	return &AssistantController{
		chat:     app.Service(services.ChatService{}).(*services.ChatService),
		basePath: BasePath,
	}
}

func (c *AssistantController) Key() string {
	return c.basePath
}

func (c *AssistantController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("/conversations", c.Create).Methods(http.MethodPost)
	router.HandleFunc("/conversations/{id}", c.Get).Methods(http.MethodGet)
	router.HandleFunc("/conversations/{id}", c.Delete).Methods(http.MethodDelete)
	router.HandleFunc("/conversations/{id}/messages", c.SendMessage).Methods(http.MethodPost)
}

func (c *AssistantController) Create(w http.ResponseWriter, r *http.Request) {
	conv, err := c.chat.Create(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "failed to create conversation")
		return
	}
	writeJSON(w, http.StatusCreated, mappers.ConversationToView(conv))
}

func (c *AssistantController) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}
	conv, err := c.chat.GetByID(r.Context(), id)
	if err != nil {
		c.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.ConversationToView(conv))
}

func (c *AssistantController) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}
	if err := c.chat.Delete(r.Context(), id); err != nil {
		c.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SendMessage blocks until the turn completes. An upstream failure still
// answers 200: the conversation carries the fallback bot message.
func (c *AssistantController) SendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := conversationID(w, r)
	if !ok {
		return
	}
	var dto dtos.SendMessageDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return
	}
	if errs, ok := dto.Ok(); !ok {
		writeError(w, r, http.StatusUnprocessableEntity, "VALIDATION_FAILED", errs.First())
		return
	}
	conv, err := c.chat.SendMessage(r.Context(), id, dto.Message)
	if err != nil {
		c.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.ConversationToView(conv))
}

func (c *AssistantController) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, conversation.ErrConversationNotFound):
		writeError(w, r, http.StatusNotFound, "CONVERSATION_NOT_FOUND", err.Error())
	case errors.Is(err, conversation.ErrEmptyMessage):
		writeError(w, r, http.StatusUnprocessableEntity, "EMPTY_MESSAGE", err.Error())
	case errors.Is(err, conversation.ErrMessageTooLong):
		writeError(w, r, http.StatusUnprocessableEntity, "MESSAGE_TOO_LONG", err.Error())
	case errors.Is(err, services.ErrReplyPending):
		writeError(w, r, http.StatusConflict, services.ErrReplyPending.Code, err.Error())
	default:
		composables.UseLogger(r.Context()).WithError(err).Error("assistant request failed")
		writeError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

func conversationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_CONVERSATION_ID", "invalid conversation id")
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	if err := httpapi.WriteJSON(w, status, payload); err != nil {
		panic(err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	if err := httpapi.WriteError(w, status, code, message, httpapi.RequestMeta(r)); err != nil {
		panic(err)
	}
}
