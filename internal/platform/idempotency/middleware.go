package idempotency

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/apexflow/api/internal/platform/auth"
	"github.com/apexflow/api/internal/platform/httpx"
	"github.com/apexflow/api/internal/platform/requestctx"
)

const (
	defaultHeaderName = "Idempotency-Key"
	replayHeaderName  = "X-Idempotent-Replay"
)

type middlewareConfig struct {
	headerName string
	ttl        time.Duration
	clock      func() time.Time
}

// MiddlewareOption customises middleware behaviour.
type MiddlewareOption func(*middlewareConfig)

// WithHeader overrides the header name used to extract the idempotency key.
func WithHeader(name string) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			cfg.headerName = trimmed
		}
	}
}

// WithTTL configures how long completed idempotency records are retained.
func WithTTL(ttl time.Duration) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if ttl > 0 {
			cfg.ttl = ttl
		}
	}
}

// WithClock overrides the time source, primarily for testing.
func WithClock(clock func() time.Time) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// Middleware enforces idempotency semantics for mutating requests that carry
// the idempotency key header. Requests without the header pass through.
func Middleware(store Store, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}

	cfg := middlewareConfig{
		headerName: defaultHeaderName,
		ttl:        DefaultTTL,
		clock:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			default:
				next.ServeHTTP(w, r)
				return
			}

			key := strings.TrimSpace(r.Header.Get(cfg.headerName))
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			logger := requestctx.Logger(ctx)

			body, err := readAndReplayBody(r)
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_read_body_failed", "unable to read request body", http.StatusInternalServerError))
				return
			}

			identity := requesterID(ctx)
			fingerprint := requestFingerprint(r, body, identity)
			scoped := key + "|" + identity
			now := cfg.clock().UTC()

			reservation, err := store.Reserve(ctx, scoped, fingerprint, now, cfg.ttl)
			if err != nil {
				if errors.Is(err, ErrFingerprintMismatch) {
					httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_conflict", "idempotency key already used for a different request", http.StatusConflict))
					return
				}
				logger.Error("idempotency reserve failed", zap.Error(err))
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_store_error", "unable to process idempotency key", http.StatusInternalServerError))
				return
			}

			switch reservation.State {
			case ReservationStateCompleted:
				writeStoredResponse(w, reservation.Record)
				return
			case ReservationStatePending:
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_in_progress", "another request is processing this idempotency key", http.StatusConflict))
				return
			}

			recorder := newBufferingRecorder(w)
			next.ServeHTTP(recorder, r)

			response := Response{
				Status:  recorder.Status(),
				Headers: recorder.HeaderSnapshot(),
				Body:    recorder.Body(),
			}

			if err := store.SaveResponse(ctx, scoped, fingerprint, response, cfg.clock().UTC(), cfg.ttl); err != nil {
				logger.Error("idempotency save failed", zap.Error(err))
				if releaseErr := store.Release(ctx, scoped, fingerprint); releaseErr != nil {
					logger.Error("idempotency release failed", zap.Error(releaseErr))
				}
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_store_error", "unable to persist idempotency state", http.StatusInternalServerError))
				return
			}

			if err := recorder.Commit(); err != nil {
				logger.Warn("idempotency response flush failed", zap.Error(err))
			}
		})
	}
}

func readAndReplayBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if err := r.Body.Close(); err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

func requestFingerprint(r *http.Request, body []byte, identity string) string {
	var builder strings.Builder
	builder.WriteString(strings.ToUpper(r.Method))
	builder.WriteString("|")
	builder.WriteString(r.URL.Path)
	builder.WriteString("|")
	builder.WriteString(r.URL.RawQuery)
	builder.WriteString("|")
	builder.WriteString(identity)
	builder.WriteString("|")
	if len(body) > 0 {
		builder.WriteString(sha256Hex(body))
	}
	return sha256Hex([]byte(builder.String()))
}

func requesterID(ctx context.Context) string {
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity.StaffID != "" {
		return identity.StaffID
	}
	return "anonymous"
}

func writeStoredResponse(w http.ResponseWriter, record Record) {
	for key := range w.Header() {
		w.Header().Del(key)
	}
	for key, values := range headersFromRecord(record.ResponseHeaders) {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.Header().Set(replayHeaderName, "true")

	status := record.ResponseStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(record.ResponseBody) > 0 {
		_, _ = w.Write(record.ResponseBody)
	}
}

// bufferingRecorder holds the handler's response until the idempotency record
// has been persisted.
type bufferingRecorder struct {
	parent http.ResponseWriter
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferingRecorder(parent http.ResponseWriter) *bufferingRecorder {
	return &bufferingRecorder{
		parent: parent,
		header: make(http.Header),
	}
}

func (r *bufferingRecorder) Header() http.Header {
	return r.header
}

func (r *bufferingRecorder) WriteHeader(status int) {
	if status <= 0 {
		status = http.StatusOK
	}
	r.status = status
}

func (r *bufferingRecorder) Write(data []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.body.Write(data)
}

func (r *bufferingRecorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func (r *bufferingRecorder) Body() []byte {
	if r.body.Len() == 0 {
		return nil
	}
	return r.body.Bytes()
}

func (r *bufferingRecorder) HeaderSnapshot() http.Header {
	snapshot := make(http.Header, len(r.header))
	for key, values := range r.header {
		copied := make([]string, len(values))
		copy(copied, values)
		snapshot[key] = copied
	}
	return snapshot
}

func (r *bufferingRecorder) Commit() error {
	dst := r.parent.Header()
	for key := range dst {
		dst.Del(key)
	}
	for key, values := range r.header {
		for _, value := range values {
			dst.Add(key, value)
		}
	}

	r.parent.WriteHeader(r.Status())
	if r.body.Len() == 0 {
		return nil
	}
	_, err := r.parent.Write(r.body.Bytes())
	return err
}
