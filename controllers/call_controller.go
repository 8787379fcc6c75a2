package controllers

import (
	"crypto/subtle"
	"net/http"

	"chatsync_server/services"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// WebhookSecretHeader carries the shared secret of call SDK callbacks
const WebhookSecretHeader = "X-Webhook-Secret"

type CallController struct {
	CallService *services.CallService
	secret      string
	logger      *zap.Logger
}

func NewCallController(calls *services.CallService, webhookSecret string, logger *zap.Logger) *CallController {
	return &CallController{CallService: calls, secret: webhookSecret, logger: logger.Named("http")}
}

// HandleStartCall logs a call started by the caller in the room
func (c *CallController) HandleStartCall(w http.ResponseWriter, r *http.Request) {
	var request struct {
		CallType  string   `json:"callType"`
		TargetIDs []string `json:"targetIds"`
	}
	if !decodeJSON(w, r, &request) {
		return
	}

	call, err := c.CallService.StartCall(r.Context(), mux.Vars(r)["roomId"], CurrentUser(r.Context()).UID, request.CallType, request.TargetIDs)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	WriteJSONResponse(w, http.StatusCreated, call)
}

// HandleCallEvent receives call SDK callbacks
func (c *CallController) HandleCallEvent(w http.ResponseWriter, r *http.Request) {
	given := r.Header.Get(WebhookSecretHeader)
	if c.secret == "" || subtle.ConstantTimeCompare([]byte(given), []byte(c.secret)) != 1 {
		WriteError(w, http.StatusUnauthorized, "invalid webhook secret")
		return
	}
	var event services.CallEvent
	if !decodeJSON(w, r, &event) {
		return
	}

	c.logger.Info("📞 Call event received", zap.String("callId", event.CallID), zap.String("event", event.Event))
	call, err := c.CallService.HandleEvent(r.Context(), event)
	if err != nil {
		writeServiceError(w, c.logger, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, call)
}
