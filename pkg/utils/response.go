package utils

import (
	"errors"
	"io"
	"net/http"

	"orderdesk-backend/internal/domain"
	"orderdesk-backend/pkg/logger"

	"github.com/goccy/go-json"
)

func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// StatusForKind maps an error kind to its HTTP status.
func StatusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindAlreadyAssigned, domain.KindConflict:
		return http.StatusConflict
	case domain.KindInvalidTransition, domain.KindLocationUnresolved, domain.KindCourierRejected:
		return http.StatusUnprocessableEntity
	case domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindMethodDisabled:
		return http.StatusForbidden
	case domain.KindCourierUnavailable:
		return http.StatusServiceUnavailable
	case domain.KindPartialReversal:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

// WriteDomainError writes err as {"error", "kind", "hint"}. Foreign errors are
// reported as internal without leaking their text; the full error goes to the
// request log instead.
func WriteDomainError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	message := "internal error"
	var de *domain.DispatchError
	if errors.As(err, &de) {
		message = de.Message
	}
	if kind == domain.KindInternal {
		logger.WithContext(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
	}
	WriteJSON(w, StatusForKind(kind), map[string]string{
		"error": message,
		"kind":  string(kind),
		"hint":  domain.OperatorMessage(kind),
	})
}

// DecodeJSON reads a request body into v. An empty body is an error.
func DecodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return domain.NewError(domain.KindInvalidInput, "invalid request body", err)
	}
	return nil
}
