package idempotency

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/apexflow/api/internal/platform/firestore"
)

const defaultCollection = "idempotencyKeys"

// FirestoreOption customises the FirestoreStore behaviour.
type FirestoreOption func(*FirestoreStore)

// WithCollection overrides the collection name used to store idempotency keys.
func WithCollection(name string) FirestoreOption {
	return func(store *FirestoreStore) {
		if name != "" {
			store.collection = name
		}
	}
}

// FirestoreStore implements Store backed by Firestore, sharing reservations
// across API replicas.
type FirestoreStore struct {
	provider   *pfirestore.Provider
	collection string
}

// NewFirestoreStore constructs a Firestore-backed idempotency store.
func NewFirestoreStore(provider *pfirestore.Provider, opts ...FirestoreOption) (*FirestoreStore, error) {
	if provider == nil {
		return nil, errors.New("idempotency: firestore store requires a provider")
	}
	store := &FirestoreStore{
		provider:   provider,
		collection: defaultCollection,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

type firestoreRecord struct {
	Key             string              `firestore:"key"`
	Fingerprint     string              `firestore:"fingerprint"`
	Status          string              `firestore:"status"`
	ResponseStatus  int                 `firestore:"responseStatus"`
	ResponseHeaders map[string][]string `firestore:"responseHeaders"`
	ResponseBody    []byte              `firestore:"responseBody"`
	CreatedAt       time.Time           `firestore:"createdAt"`
	UpdatedAt       time.Time           `firestore:"updatedAt"`
	ExpiresAt       time.Time           `firestore:"expiresAt"`
}

func (r firestoreRecord) toRecord() Record {
	return Record{
		Key:             r.Key,
		Fingerprint:     r.Fingerprint,
		Status:          Status(r.Status),
		ResponseStatus:  r.ResponseStatus,
		ResponseHeaders: r.ResponseHeaders,
		ResponseBody:    r.ResponseBody,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		ExpiresAt:       r.ExpiresAt,
	}
}

func (s *FirestoreStore) docRef(ctx context.Context, key string) (*firestore.DocumentRef, error) {
	client, err := s.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(s.collection).Doc(recordID(key)), nil
}

// Reserve implements the Store interface.
func (s *FirestoreStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	var result Reservation
	err := s.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := s.docRef(ctx, key)
		if err != nil {
			return err
		}

		fresh := firestoreRecord{
			Key:         key,
			Fingerprint: fingerprint,
			Status:      string(StatusPending),
			CreatedAt:   now,
			UpdatedAt:   now,
			ExpiresAt:   now.Add(ttl),
		}

		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			if err := tx.Set(ref, fresh); err != nil {
				return err
			}
			result = Reservation{State: ReservationStateNew, Record: fresh.toRecord()}
			return nil
		}
		if err != nil {
			return err
		}

		var record firestoreRecord
		if err := snap.DataTo(&record); err != nil {
			return err
		}
		if !record.ExpiresAt.IsZero() && !now.Before(record.ExpiresAt) {
			if err := tx.Set(ref, fresh); err != nil {
				return err
			}
			result = Reservation{State: ReservationStateNew, Record: fresh.toRecord()}
			return nil
		}
		if record.Fingerprint != fingerprint {
			return ErrFingerprintMismatch
		}
		if record.Status == string(StatusCompleted) {
			result = Reservation{State: ReservationStateCompleted, Record: record.toRecord()}
			return nil
		}
		result = Reservation{State: ReservationStatePending, Record: record.toRecord()}
		return nil
	})
	return result, err
}

// SaveResponse implements the Store interface.
func (s *FirestoreStore) SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	headers := sanitizeHeaders(resp.Headers)
	var bodyCopy []byte
	if len(resp.Body) > 0 {
		bodyCopy = append([]byte(nil), resp.Body...)
	}

	return s.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := s.docRef(ctx, key)
		if err != nil {
			return err
		}

		var record firestoreRecord
		snap, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
			record = firestoreRecord{Key: key, Fingerprint: fingerprint, CreatedAt: now}
		case err != nil:
			return err
		default:
			if err := snap.DataTo(&record); err != nil {
				return err
			}
			if record.Fingerprint != fingerprint {
				return ErrFingerprintMismatch
			}
			if record.CreatedAt.IsZero() {
				record.CreatedAt = now
			}
		}

		record.Status = string(StatusCompleted)
		record.ResponseStatus = resp.Status
		record.ResponseHeaders = headers
		record.ResponseBody = bodyCopy
		record.UpdatedAt = now
		record.ExpiresAt = now.Add(ttl)
		return tx.Set(ref, record)
	})
}

// Release implements the Store interface, dropping a pending reservation.
func (s *FirestoreStore) Release(ctx context.Context, key, fingerprint string) error {
	return s.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := s.docRef(ctx, key)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return nil
		}
		if err != nil {
			return err
		}
		var record firestoreRecord
		if err := snap.DataTo(&record); err != nil {
			return err
		}
		if record.Fingerprint != fingerprint {
			return ErrFingerprintMismatch
		}
		if record.Status == string(StatusPending) {
			return tx.Delete(ref)
		}
		return nil
	})
}

// CleanupExpired implements the Store interface.
func (s *FirestoreStore) CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	now = now.UTC()
	if limit <= 0 {
		limit = 100
	}

	client, err := s.provider.Client(ctx)
	if err != nil {
		return 0, err
	}
	docs, err := client.Collection(s.collection).
		Where("expiresAt", "<=", now).
		Limit(limit).
		Documents(ctx).
		GetAll()
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	batch := client.BulkWriter(ctx)
	for _, doc := range docs {
		if _, err := batch.Delete(doc.Ref); err != nil {
			return 0, err
		}
	}
	batch.End()
	return len(docs), nil
}
