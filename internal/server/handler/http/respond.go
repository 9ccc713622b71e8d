package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/atinyakov/folio/internal/models"
	"github.com/atinyakov/folio/internal/repository"
	"github.com/atinyakov/folio/internal/service"
	"go.uber.org/zap"
)

// writeEnvelope writes env as JSON with the given status.
func writeEnvelope(w http.ResponseWriter, status int, env models.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// writeData wraps data in a successful envelope.
func writeData(w http.ResponseWriter, status int, data any) {
	raw, ok := data.(json.RawMessage)
	if !ok {
		b, err := json.Marshal(data)
		if err != nil {
			writeMessage(w, http.StatusInternalServerError, "internal error")
			return
		}
		raw = b
	}
	writeEnvelope(w, status, models.Envelope{Success: true, Data: raw})
}

// writeMessage writes an unsuccessful envelope.
func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeEnvelope(w, status, models.Envelope{Message: msg})
}

// writeError maps a service error to its status. Unexpected errors are
// logged and hidden behind a generic message.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		writeMessage(w, http.StatusUnprocessableEntity, ve.Message)
	case errors.Is(err, service.ErrInvalidCredentials):
		writeMessage(w, http.StatusUnprocessableEntity, service.ErrInvalidCredentials.Error())
	case errors.Is(err, service.ErrUnauthorized):
		writeMessage(w, http.StatusUnauthorized, service.ErrUnauthorized.Error())
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, service.ErrUnknownResource):
		writeMessage(w, http.StatusNotFound, "Not found")
	default:
		log.Error("request failed", zap.Error(err))
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}
