package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

// DefaultTTL is how long replay records are retained when the caller does not
// configure a TTL.
const DefaultTTL = 24 * time.Hour

// Status is the lifecycle state of a reservation.
type Status string

const (
	// StatusPending marks a key reserved by an in-flight request.
	StatusPending Status = "pending"
	// StatusCompleted marks a key whose response is stored and replayable.
	StatusCompleted Status = "completed"
)

// ReservationState tells the middleware what to do after Reserve.
type ReservationState int

const (
	// ReservationStateNew means no prior record exists; process the request.
	ReservationStateNew ReservationState = iota
	// ReservationStateCompleted means a stored response should be replayed.
	ReservationStateCompleted
	// ReservationStatePending means another request holds the key; reject.
	ReservationStatePending
)

// Reservation is the outcome of Reserve, carrying the stored record when one
// exists.
type Reservation struct {
	State  ReservationState
	Record Record
}

// Record is the persisted response metadata for one idempotency key.
type Record struct {
	Key             string
	Fingerprint     string
	Status          Status
	ResponseStatus  int
	ResponseHeaders map[string][]string
	ResponseBody    []byte
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ExpiresAt       time.Time
}

// Response is the HTTP response captured for later replay.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Store persists reservations and replayable responses. Implementations must
// treat Reserve as atomic per key.
type Store interface {
	Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error)
	SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error
	Release(ctx context.Context, key, fingerprint string) error
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// ErrFingerprintMismatch is returned when an idempotency key is reused with a
// different request fingerprint.
var ErrFingerprintMismatch = errors.New("idempotency: key reserved for different request fingerprint")

// recordID derives the storage key. Hashing keeps arbitrary client-supplied
// header values safe to use as document ids.
func recordID(key string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(key)))
	return hex.EncodeToString(sum[:])
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// hop-by-hop and response-time headers are not replayed.
var omittedHeaders = map[string]struct{}{
	"content-length":    {},
	"date":              {},
	"connection":        {},
	"keep-alive":        {},
	"transfer-encoding": {},
	"upgrade":           {},
}

func sanitizeHeaders(header http.Header) map[string][]string {
	filtered := make(map[string][]string, len(header))
	for name, values := range header {
		canonical := http.CanonicalHeaderKey(name)
		if _, omit := omittedHeaders[strings.ToLower(canonical)]; omit {
			continue
		}
		filtered[canonical] = append([]string(nil), values...)
	}
	if len(filtered) == 0 {
		return nil
	}
	return filtered
}

func headersFromRecord(values map[string][]string) http.Header {
	header := make(http.Header, len(values))
	for name, vals := range values {
		header[name] = append([]string(nil), vals...)
	}
	return header
}
