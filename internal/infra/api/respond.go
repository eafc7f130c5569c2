package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"gramorx-entitlements/internal/domain"
)

type errorBody struct {
	Error string `json:"error"`
}

// writeJSON wraps payload in the {"ok": ...} envelope. Struct payloads are
// flattened next to "ok"; 2xx statuses set ok=true.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	body := map[string]any{"ok": status < http.StatusBadRequest}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err == nil {
			var fields map[string]json.RawMessage
			if json.Unmarshal(raw, &fields) == nil {
				for k, v := range fields {
					if k != "ok" {
						body[k] = v
					}
				}
			} else {
				body["data"] = json.RawMessage(raw)
			}
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// writeError hides internal error text behind a generic message.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", domain.ErrInvalidArgument)
	}
	return nil
}
