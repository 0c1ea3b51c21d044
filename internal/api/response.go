package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/serroba/notesync/internal/history"
	"github.com/serroba/notesync/internal/note"
)

type successResponse struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(body)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, successResponse{Message: message, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}

// statusOf maps a service error to its HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, note.ErrValidation), errors.Is(err, history.ErrNoHistory):
		return http.StatusBadRequest
	case errors.Is(err, note.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, note.ErrNotFound), errors.Is(err, note.ErrInvalidOrExpired):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err to the client. Unexpected errors are logged and hidden.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError && !errors.Is(err, note.ErrShareCodeExhausted) {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, status, "internal server error")

		return
	}

	writeError(w, status, err.Error())
}

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body", note.ErrValidation)
	}

	if err := s.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %s", note.ErrValidation, err.Error())
	}

	return nil
}
