// Package httpx implements the portal API's JSON response envelope and the
// response-writer plumbing the middleware depends on. Every handler response
// goes through here so clients always see the same {status, message, data}
// shape.
package httpx

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/qualtrack/qualtrack/internal/common/apperrors"
)

// Envelope is the wire shape of every portal API response.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

const (
	statusSuccess = "success"
	statusError   = "error"
)

// SendSuccess writes a success envelope with the given status code. Message
// and data may each be empty.
func SendSuccess(ctx context.Context, w http.ResponseWriter, statusCode int, message string, data any) {
	send(ctx, w, statusCode, Envelope{
		Status:  statusSuccess,
		Message: message,
		Data:    data,
	})
}

// SendError writes an error envelope. The status code is taken from the
// error; zero maps to 500.
func SendError(ctx context.Context, w http.ResponseWriter, err apperrors.Error) {
	if err == nil {
		return
	}
	statusCode := err.StatusCode()
	if statusCode == 0 {
		statusCode = http.StatusInternalServerError
	}
	send(ctx, w, statusCode, Envelope{
		Status:  statusError,
		Message: err.Error(),
	})
}

// SendErrorMsg writes an error envelope with an explicit status code and
// message, for handlers that have no apperrors value at hand.
func SendErrorMsg(ctx context.Context, w http.ResponseWriter, statusCode int, message string) {
	send(ctx, w, statusCode, Envelope{
		Status:  statusError,
		Message: message,
	})
}

func send(ctx context.Context, w http.ResponseWriter, statusCode int, envelope Envelope) {
	body, err := json.Marshal(envelope)
	if err != nil {
		log.Ctx(ctx).Err(err).Msg("unable to marshal response envelope")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(body)
}
