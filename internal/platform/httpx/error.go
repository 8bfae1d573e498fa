package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/apexflow/api/internal/platform/requestctx"
)

const (
	maxCodeLen    = 80
	maxMessageLen = 512
	maxTraceLen   = 64
)

// Error is the JSON error envelope every handler returns. Code is a stable
// machine-readable identifier; Details are merged into the top level of the
// payload so clients see e.g. failedStep alongside error and message.
type Error struct {
	Code      string
	Message   string
	Status    int
	RequestID string
	TraceID   string
	Details   map[string]any
}

// NewError builds an Error, defaulting the status to 500 when unset.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    clean(code, maxCodeLen),
		Message: clean(message, maxMessageLen),
		Status:  status,
	}
}

// WithRequestID sets the request identifier on the error payload.
func (e Error) WithRequestID(id string) Error {
	e.RequestID = clean(id, maxCodeLen)
	return e
}

// WithTraceID sets the trace identifier on the error payload.
func (e Error) WithTraceID(id string) Error {
	e.TraceID = clean(id, maxTraceLen)
	return e
}

// WithDetails attaches extra JSON-serialisable fields. The map is copied so
// callers may reuse theirs.
func (e Error) WithDetails(details map[string]any) Error {
	if len(details) == 0 {
		return e
	}
	merged := make(map[string]any, len(details))
	for k, v := range details {
		merged[k] = v
	}
	e.Details = merged
	return e
}

// WriteError renders the envelope. Request and trace identifiers fall back to
// the values carried in ctx when the error does not set them explicitly.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	payload := map[string]any{
		"error":   err.Code,
		"message": err.Message,
		"status":  status,
	}

	if requestID := firstNonEmpty(err.RequestID, clean(middleware.GetReqID(ctx), maxCodeLen)); requestID != "" {
		payload["request_id"] = requestID
	}
	if traceID := firstNonEmpty(err.TraceID, clean(requestctx.TraceID(ctx), maxTraceLen)); traceID != "" {
		payload["trace_id"] = traceID
	}
	for k, v := range err.Details {
		payload[k] = v
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// clean strips newlines and truncates so attacker-controlled input cannot
// distort the envelope.
func clean(value string, limit int) string {
	if limit <= 0 {
		limit = 256
	}
	value = strings.NewReplacer("\n", " ", "\r", " ").Replace(value)
	value = strings.TrimSpace(value)
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
