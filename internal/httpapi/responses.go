package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	stderrors "icra-sorgu/internal/common/errors"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"message": message,
	})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// statusForError maps the error taxonomy onto HTTP statuses. Local
// rejections stay 4xx; only transport trouble with the registry
// becomes a gateway error.
func statusForError(err error) int {
	var se *stderrors.StandardError
	if !errors.As(err, &se) {
		return http.StatusInternalServerError
	}
	switch se.Code {
	case stderrors.ErrCodeAuthFailed:
		return http.StatusUnauthorized
	case stderrors.ErrCodeSessionBusy:
		return http.StatusConflict
	case stderrors.ErrCodeTriggerRejected, stderrors.ErrCodeUnsupportedQueryType:
		return http.StatusUnprocessableEntity
	case stderrors.ErrCodePollTimeout:
		return http.StatusGatewayTimeout
	case stderrors.ErrCodeResultNotFound:
		return http.StatusNotFound
	case stderrors.ErrCodeConnectionLost, stderrors.ErrCodeStoreUnavailable:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
