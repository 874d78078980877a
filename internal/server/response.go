package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"extraction-api/internal/apperror"
)

// ErrorResponse is the shape every error answer carries: a short error label
// plus a human-readable message.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, label, message string) {
	writeJSON(w, status, ErrorResponse{Error: label, Message: message})
}

// writeSvcError maps service errors onto the error envelope. AppErrors keep
// their status and get a label from their code; anything else is a 500.
func writeSvcError(w http.ResponseWriter, err error) {
	var ae *apperror.AppError
	if errors.As(err, &ae) {
		writeError(w, ae.HTTPStatus(), errorLabel(ae.Code()), ae.Message())
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error", err.Error())
}

func errorLabel(code apperror.Code) string {
	switch code {
	case apperror.BadRequest:
		return "validation failed"
	case apperror.NotFound:
		return "not found"
	case apperror.Conflict:
		return "conflict"
	case apperror.Unavailable:
		return "service unavailable"
	default:
		return "internal error"
	}
}
