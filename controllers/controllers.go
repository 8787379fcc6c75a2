package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"chatsync_server/services"

	"go.uber.org/zap"
)

// WriteJSONResponse writes v as a JSON body with the given status
func WriteJSONResponse(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes {"error": message}
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSONResponse(w, status, map[string]string{"error": message})
}

// StatusFor maps a service error to its HTTP status
func StatusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrRoomNotFound),
		errors.Is(err, services.ErrCallNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrNotMember):
		return http.StatusForbidden
	case errors.Is(err, services.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrInvalidToken),
		errors.Is(err, services.ErrSessionNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrStorageDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, services.ErrSelfChat),
		errors.Is(err, services.ErrNotGroup),
		errors.Is(err, services.ErrNoMembers),
		errors.Is(err, services.ErrInvalidGroupName),
		errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, services.ErrInvalidMessage),
		errors.Is(err, services.ErrInvalidMessageType),
		errors.Is(err, services.ErrInvalidCallType),
		errors.Is(err, services.ErrUnknownCallEvent),
		errors.Is(err, services.ErrInvalidEmail),
		errors.Is(err, services.ErrInvalidName),
		errors.Is(err, services.ErrWeakPassword):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeServiceError answers with the status of err. Unexpected errors are logged and not echoed.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("❌ Request failed", zap.Error(err))
		WriteError(w, status, "internal server error")
		return
	}
	WriteError(w, status, err.Error())
}

// decodeJSON reads the request body into v, answering 400 itself when it cannot
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// HealthCheckHandler provides a basic health check
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSONResponse(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// WelcomeHandler provides a welcome message
func WelcomeHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "Welcome to the chatsync server!"})
}
