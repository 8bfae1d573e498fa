package idempotency

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newCountingHandler() (*atomic.Int64, http.Handler) {
	var calls atomic.Int64
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"call":%d}`, n)
	})
	return &calls, handler
}

func TestMiddlewareReplaysCompletedResponse(t *testing.T) {
	calls, handler := newCountingHandler()
	wrapped := Middleware(NewMemoryStore())(handler)

	request := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(`{"amount":100}`))
		r.Header.Set("Idempotency-Key", "key-1")
		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, r)
		return w
	}

	first := request()
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", first.Code)
	}

	second := request()
	if second.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201, got %d", second.Code)
	}
	if second.Header().Get("X-Idempotent-Replay") != "true" {
		t.Fatalf("expected replay marker header")
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("expected identical bodies, got %q and %q", first.Body.String(), second.Body.String())
	}
	if calls.Load() != 1 {
		t.Fatalf("expected handler to run once, ran %d times", calls.Load())
	}
}

func TestMiddlewarePassesThroughWithoutKey(t *testing.T) {
	calls, handler := newCountingHandler()
	wrapped := Middleware(NewMemoryStore())(handler)

	for i := 0; i < 2; i++ {
		r := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(`{}`))
		w := httptest.NewRecorder()
		wrapped.ServeHTTP(w, r)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected handler to run twice, ran %d times", calls.Load())
	}
}

func TestMiddlewareIgnoresReads(t *testing.T) {
	calls, handler := newCountingHandler()
	wrapped := Middleware(NewMemoryStore())(handler)

	r := httptest.NewRequest(http.MethodGet, "/payments", nil)
	r.Header.Set("Idempotency-Key", "key-1")
	w := httptest.NewRecorder()
	wrapped.ServeHTTP(w, r)

	if calls.Load() != 1 {
		t.Fatalf("expected pass-through for GET")
	}
	if w.Header().Get("X-Idempotent-Replay") != "" {
		t.Fatalf("unexpected replay marker on GET")
	}
}

func TestMiddlewareRejectsReusedKeyForDifferentRequest(t *testing.T) {
	_, handler := newCountingHandler()
	wrapped := Middleware(NewMemoryStore())(handler)

	r1 := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(`{"amount":100}`))
	r1.Header.Set("Idempotency-Key", "key-1")
	w1 := httptest.NewRecorder()
	wrapped.ServeHTTP(w1, r1)

	r2 := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(`{"amount":999}`))
	r2.Header.Set("Idempotency-Key", "key-1")
	w2 := httptest.NewRecorder()
	wrapped.ServeHTTP(w2, r2)

	if w2.Code != http.StatusConflict {
		t.Fatalf("expected 409 for fingerprint mismatch, got %d", w2.Code)
	}
}

func TestMiddlewareExpiredRecordAllowsRerun(t *testing.T) {
	calls, handler := newCountingHandler()
	store := NewMemoryStore()

	current := time.Date(2025, time.April, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }
	wrapped := Middleware(store, WithTTL(time.Minute), WithClock(clock))(handler)

	r1 := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(`{"amount":100}`))
	r1.Header.Set("Idempotency-Key", "key-1")
	wrapped.ServeHTTP(httptest.NewRecorder(), r1)

	current = current.Add(2 * time.Minute)

	r2 := httptest.NewRequest(http.MethodPost, "/payments", strings.NewReader(`{"amount":100}`))
	r2.Header.Set("Idempotency-Key", "key-1")
	wrapped.ServeHTTP(httptest.NewRecorder(), r2)

	if calls.Load() != 2 {
		t.Fatalf("expected handler to rerun after expiry, ran %d times", calls.Load())
	}
}
