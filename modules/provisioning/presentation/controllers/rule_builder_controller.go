package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/iota-uz/provisioning-sdk/modules/provisioning/domain/aggregates/ruledraft"
	"github.com/iota-uz/provisioning-sdk/modules/provisioning/presentation/controllers/dtos"
	"github.com/iota-uz/provisioning-sdk/modules/provisioning/presentation/mappers"
	"github.com/iota-uz/provisioning-sdk/modules/provisioning/services"
	"github.com/iota-uz/provisioning-sdk/pkg/application"
	"github.com/iota-uz/provisioning-sdk/pkg/composables"
	"github.com/iota-uz/provisioning-sdk/pkg/notify"
	"github.com/iota-uz/provisioning-sdk/pkg/serrors"
)

const BasePath = "/provisioning/api/rule-builder"

type RuleBuilderController struct {
	sessions       *services.RuleBuilderService
	allowedOrigins []string
	basePath       string
}

func NewRuleBuilderController(app application.Application) application.Controller {
	var origins []string
	if conf := app.Configuration(); conf != nil {
		origins = conf.CORS.AllowedOrigins
	}
	return &RuleBuilderController{
		sessions:       app.Service(services.RuleBuilderService{}).(*services.RuleBuilderService),
		allowedOrigins: origins,
		basePath:       BasePath,
	}
}

func (c *RuleBuilderController) Key() string {
	return c.basePath
}

func (c *RuleBuilderController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("/help", c.Help).Methods(http.MethodGet)
	router.HandleFunc("/sessions", c.Create).Methods(http.MethodPost)
	router.HandleFunc("/sessions/{id}", c.Get).Methods(http.MethodGet)
	router.HandleFunc("/sessions/{id}", c.Delete).Methods(http.MethodDelete)
	router.HandleFunc("/sessions/{id}/fields", c.SetField).Methods(http.MethodPatch)
	router.HandleFunc("/sessions/{id}/permission-sets", c.SetPermissionSets).Methods(http.MethodPut)
	router.HandleFunc("/sessions/{id}/permission-set-groups", c.SetPermissionSetGroups).Methods(http.MethodPut)
	router.HandleFunc("/sessions/{id}/active", c.SetActive).Methods(http.MethodPut)
	router.HandleFunc("/sessions/{id}/reset", c.Reset).Methods(http.MethodPost)
	router.HandleFunc("/sessions/{id}/save", c.Save).Methods(http.MethodPost)
	router.HandleFunc("/sessions/{id}/notifications", c.Notifications).Methods(http.MethodGet)
	router.HandleFunc("/sessions/{id}/ws", c.Stream).Methods(http.MethodGet)
}

func (c *RuleBuilderController) session(w http.ResponseWriter, r *http.Request) (*services.Session, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_SESSION_ID", "invalid session id")
		return nil, false
	}
	sess, err := c.sessions.Get(id)
	if err != nil {
		writeCodedError(w, r, http.StatusNotFound, err)
		return nil, false
	}
	return sess, true
}

func writeSession(w http.ResponseWriter, status int, sess *services.Session, snap services.Snapshot) {
	writeJSON(w, status, mappers.SnapshotToView(sess.ID, snap))
}

func (c *RuleBuilderController) Help(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, services.HelpContent(c.sessions.GroupsEnabled()))
}

// Create starts a session. With ?wait=true the response is sent once the
// catalogs have settled.
func (c *RuleBuilderController) Create(w http.ResponseWriter, r *http.Request) {
	sess := c.sessions.Create(r.Context())
	if strings.EqualFold(r.URL.Query().Get("wait"), "true") {
		if err := sess.Builder.Wait(); err != nil {
			composables.UseLogger(r.Context()).WithError(err).Debug("session created with load errors")
		}
	}
	writeSession(w, http.StatusCreated, sess, sess.Builder.Snapshot())
}

func (c *RuleBuilderController) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := c.session(w, r)
	if !ok {
		return
	}
	writeSession(w, http.StatusOK, sess, sess.Builder.Snapshot())
}

func (c *RuleBuilderController) Delete(w http.ResponseWriter, r *http.Request) {
	sess, ok := c.session(w, r)
	if !ok {
		return
	}
	if err := c.sessions.Delete(sess.ID); err != nil {
		writeCodedError(w, r, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type okDTO interface {
	Ok() (serrors.ValidationErrors, bool)
}

func decode(w http.ResponseWriter, r *http.Request, dto okDTO) bool {
	if err := json.NewDecoder(r.Body).Decode(dto); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_JSON", "invalid json")
		return false
	}
	if errs, ok := dto.Ok(); !ok {
		writeAPIError(w, r, http.StatusUnprocessableEntity, "VALIDATION_FAILED", errs.First())
		return false
	}
	return true
}

func (c *RuleBuilderController) SetField(w http.ResponseWriter, r *http.Request) {
	sess, ok := c.session(w, r)
	if !ok {
		return
	}
	var dto dtos.SetFieldDTO
	if !decode(w, r, &dto) {
		return
	}
	field, err := ruledraft.ParseField(dto.Field)
	if err != nil {
		writeAPIError(w, r, http.StatusUnprocessableEntity, "UNKNOWN_FIELD", err.Error())
		return
	}
	writeSession(w, http.StatusOK, sess, sess.Builder.SetField(field, dto.Value))
}

func (c *RuleBuilderController) SetPermissionSets(w http.ResponseWriter, r *http.Request) {
	sess, ok := c.session(w, r)
	if !ok {
		return
	}
	var dto dtos.SelectionDTO
	if !decode(w, r, &dto) {
		return
	}
	writeSession(w, http.StatusOK, sess, sess.Builder.SetPermissionSetSelection(dto.IDs))
}

func (c *RuleBuilderController) SetPermissionSetGroups(w http.ResponseWriter, r *http.Request) {
	sess, ok := c.session(w, r)
	if !ok {
		return
	}
	var dto dtos.SelectionDTO
	if !decode(w, r, &dto) {
		return
	}
	writeSession(w, http.StatusOK, sess, sess.Builder.SetPermissionSetGroupSelection(dto.IDs))
}

func (c *RuleBuilderController) SetActive(w http.ResponseWriter, r *http.Request) {
	sess, ok := c.session(w, r)
	if !ok {
		return
	}
	var dto dtos.SetActiveDTO
	if !decode(w, r, &dto) {
		return
	}
	writeSession(w, http.StatusOK, sess, sess.Builder.SetActive(*dto.Active))
}

func (c *RuleBuilderController) Reset(w http.ResponseWriter, r *http.Request) {
	sess, ok := c.session(w, r)
	if !ok {
		return
	}
	writeSession(w, http.StatusOK, sess, sess.Builder.Reset())
}

type saveResponse struct {
	Session      mappers.SessionView `json:"session"`
	Notification notify.Notification `json:"notification"`
}

func saveFailureStatus(kind services.SaveFailureKind) (int, string) {
	switch kind {
	case services.SaveFailureDuplicate:
		return http.StatusConflict, "RULE_DUPLICATE"
	case services.SaveFailureAccessDenied:
		return http.StatusForbidden, "RULE_ACCESS_DENIED"
	case services.SaveFailureFieldValidation:
		return http.StatusUnprocessableEntity, "RULE_VALIDATION_FAILED"
	default:
		return http.StatusBadGateway, "RULE_SAVE_FAILED"
	}
}

// Save answers 200 with the reset session on success. Rejections use the
// error envelope; the notification text is the envelope message.
func (c *RuleBuilderController) Save(w http.ResponseWriter, r *http.Request) {
	sess, ok := c.session(w, r)
	if !ok {
		return
	}
	snap, err := sess.Builder.Save(r.Context())
	if err == nil {
		writeJSON(w, http.StatusOK, saveResponse{
			Session:      mappers.SnapshotToView(sess.ID, snap),
			Notification: lastSuccess(sess.Notifications),
		})
		return
	}

	var saveErr *services.SaveError
	switch {
	case errors.Is(err, services.ErrSaveInProgress):
		writeCodedError(w, r, http.StatusConflict, err)
	case errors.Is(err, services.ErrMissingInformation):
		writeAPIError(w, r, http.StatusUnprocessableEntity, services.ErrMissingInformation.Code,
			"Please complete all required fields and select at least one permission set or group.")
	case errors.As(err, &saveErr):
		status, code := saveFailureStatus(saveErr.Kind)
		writeAPIError(w, r, status, code, saveErr.Notification().Message)
	default:
		writeAPIError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

// lastSuccess returns the success notification the builder just queued,
// leaving the queue untouched for other readers.
func lastSuccess(q *notify.Queue) notify.Notification {
	var last notify.Notification
	for _, n := range q.Peek() {
		if n.Variant == notify.VariantSuccess {
			last = n
		}
	}
	return last
}

func (c *RuleBuilderController) Notifications(w http.ResponseWriter, r *http.Request) {
	sess, ok := c.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": sess.Notifications.Drain(),
	})
}
