package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// ErrBodyTooLarge indicates the request payload exceeded the configured limit.
var ErrBodyTooLarge = errors.New("httpx: request body too large")

// WriteJSON serialises payload with the given status code.
func WriteJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// Headers are already flushed; nothing useful left to do.
		_ = err
	}
}

// DecodeJSON reads at most maxBytes from the request body and decodes it
// into dst, rejecting unknown fields and trailing garbage.
func DecodeJSON(r *http.Request, dst any, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}
	reader := http.MaxBytesReader(nil, r.Body, maxBytes)
	defer func() {
		_, _ = io.Copy(io.Discard, reader)
	}()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return ErrBodyTooLarge
		}
		return err
	}
	if decoder.More() {
		return errors.New("httpx: unexpected trailing content")
	}
	return nil
}
