// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/capitalize-ai/proconnect/internal/messaging"
	"github.com/capitalize-ai/proconnect/internal/service"
	"github.com/capitalize-ai/proconnect/internal/store"
	"github.com/capitalize-ai/proconnect/pkg/logger"
)

const maxBodyBytes = 64 << 10

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// decodeJSON decodes the request body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v interface{}) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidArgument),
		errors.Is(err, messaging.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrForbidden),
		errors.Is(err, store.ErrNotConnected),
		errors.Is(err, messaging.ErrNotConnected):
		return http.StatusForbidden
	case errors.Is(err, store.ErrConflict),
		errors.Is(err, messaging.ErrSendInFlight),
		errors.Is(err, messaging.ErrStartInFlight),
		errors.Is(err, messaging.ErrNoConversation),
		errors.Is(err, messaging.ErrInitiatorClosed):
		return http.StatusConflict
	case errors.Is(err, service.ErrServiceClosed),
		errors.Is(err, messaging.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError writes err with its mapped status. Internal failures are logged
// and reported with the generic message.
func writeServiceError(w http.ResponseWriter, log *logger.Logger, err error, message string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error(message, zap.Error(err))
		writeError(w, status, message)
		return
	}
	writeError(w, status, err.Error())
}
