package rest

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/nextiertech/outreach-messaging/internal/domain/errors"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeErrorResponse(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

// writeError maps domain errors onto HTTP statuses. Unknown errors
// surface as opaque 500s.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	if appErr, ok := errors.AsAppError(err); ok {
		if appErr.StatusCode >= 500 {
			logger.Error("request failed", zap.Error(err))
		}
		writeErrorResponse(w, appErr.StatusCode, appErr.Code, appErr.Message)
		return
	}
	logger.Error("request failed", zap.Error(err))
	writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
}
