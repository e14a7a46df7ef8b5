package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/portalstack/portal-server/internal/domain"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps domain error codes onto HTTP statuses. Non-domain errors
// never reach here with internals exposed: the manager wraps them first.
func writeError(w http.ResponseWriter, err error) {
	code := domain.CodeOf(err)

	status := http.StatusInternalServerError
	switch code {
	case domain.CodeNotFound:
		status = http.StatusNotFound
	case domain.CodeAlreadyExists, domain.CodeDeleteBlocked:
		status = http.StatusConflict
	case "":
		code = "INTERNAL_ERROR"
	}

	msg := "internal server error"
	var de *domain.Error
	if errors.As(err, &de) {
		msg = de.Message
	}

	writeJSON(w, status, errorBody{Code: string(code), Message: msg})
}
