package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_laundry/internal/apperr"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// respondAppError converts an application error into the JSON error body.
func respondAppError(w http.ResponseWriter, log *zap.Logger, err error) {
	status := apperr.HTTPStatus(err)
	resp := ErrorResponse{
		Error: userMessage(err, status),
		Code:  apperr.Kind(err),
	}

	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		resp.Fields = ve.Fields
	}
	if status >= http.StatusInternalServerError {
		resp.Details = "please try again in a moment"
		log.Warn("request failed", zap.Int("status", status), zap.Error(err))
	}
	respondJSON(w, status, resp)
}

func userMessage(err error, status int) string {
	var ve *apperr.ValidationError
	var re *apperr.RemoteError
	switch {
	case errors.As(err, &ve):
		return "please complete the highlighted fields"
	case errors.Is(err, apperr.ErrOffline):
		return "you are offline; your order has been kept, try again when connected"
	case errors.Is(err, apperr.ErrUnavailable):
		return "the laundry service is temporarily unavailable"
	case errors.As(err, &re) && re.Message != "":
		return re.Message
	case status == http.StatusInternalServerError:
		return "internal server error"
	default:
		return err.Error()
	}
}
