package idempotency

import (
	"context"
	"errors"
	"time"

	firestoresdk "cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	fsplatform "github.com/kograph/api/internal/platform/firestore"
)

const defaultIdempotencyCollection = "idempotency_keys"

type idempotencyDocument struct {
	Key             string              `firestore:"key"`
	Fingerprint     string              `firestore:"fingerprint"`
	Status          string              `firestore:"status"`
	ResponseStatus  int                 `firestore:"responseStatus"`
	ResponseHeaders map[string][]string `firestore:"responseHeaders,omitempty"`
	ResponseBody    []byte              `firestore:"responseBody,omitempty"`
	CreatedAt       time.Time           `firestore:"createdAt"`
	UpdatedAt       time.Time           `firestore:"updatedAt"`
	ExpiresAt       time.Time           `firestore:"expiresAt"`
}

// FirestoreStore persists idempotency records in a Firestore collection so
// replays survive instance restarts.
type FirestoreStore struct {
	provider   *fsplatform.Provider
	collection string
}

// FirestoreStoreOption customises the store.
type FirestoreStoreOption func(*FirestoreStore)

// WithCollection overrides the backing collection name.
func WithCollection(name string) FirestoreStoreOption {
	return func(s *FirestoreStore) {
		if name != "" {
			s.collection = name
		}
	}
}

// NewFirestoreStore builds a Firestore-backed idempotency store.
func NewFirestoreStore(provider *fsplatform.Provider, opts ...FirestoreStoreOption) (*FirestoreStore, error) {
	if provider == nil {
		return nil, errors.New("idempotency: firestore provider is required")
	}
	store := &FirestoreStore{provider: provider, collection: defaultIdempotencyCollection}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

// Reserve implements the Store interface using a create-first strategy: the
// Firestore create fails on existing documents, which doubles as the lock.
func (s *FirestoreStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	client, err := s.provider.Client(ctx)
	if err != nil {
		return Reservation{}, err
	}
	ref := client.Collection(s.collection).Doc(recordID(key))

	doc := idempotencyDocument{
		Key:         key,
		Fingerprint: fingerprint,
		Status:      string(StatusPending),
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	if _, err := ref.Create(ctx, doc); err == nil {
		return Reservation{State: ReservationStateNew, Record: recordFromDocument(doc)}, nil
	} else if status.Code(err) != codes.AlreadyExists {
		return Reservation{}, fsplatform.WrapError("idempotency.Reserve", err)
	}

	snap, err := ref.Get(ctx)
	if err != nil {
		return Reservation{}, fsplatform.WrapError("idempotency.Reserve", err)
	}
	var existing idempotencyDocument
	if err := snap.DataTo(&existing); err != nil {
		return Reservation{}, fsplatform.WrapError("idempotency.Reserve", err)
	}

	if !now.Before(existing.ExpiresAt) {
		doc.CreatedAt = now
		if _, err := ref.Set(ctx, doc); err != nil {
			return Reservation{}, fsplatform.WrapError("idempotency.Reserve", err)
		}
		return Reservation{State: ReservationStateNew, Record: recordFromDocument(doc)}, nil
	}

	if existing.Fingerprint != fingerprint {
		return Reservation{}, ErrFingerprintMismatch
	}
	if existing.Status == string(StatusCompleted) {
		return Reservation{State: ReservationStateCompleted, Record: recordFromDocument(existing)}, nil
	}
	return Reservation{State: ReservationStatePending, Record: recordFromDocument(existing)}, nil
}

// SaveResponse implements the Store interface.
func (s *FirestoreStore) SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	client, err := s.provider.Client(ctx)
	if err != nil {
		return err
	}
	ref := client.Collection(s.collection).Doc(recordID(key))

	err = client.RunTransaction(ctx, func(_ context.Context, tx *firestoresdk.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}

		doc := idempotencyDocument{Key: key, Fingerprint: fingerprint, CreatedAt: now}
		if snap != nil && snap.Exists() {
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			if doc.Fingerprint != fingerprint {
				return ErrFingerprintMismatch
			}
		}

		doc.Status = string(StatusCompleted)
		doc.ResponseStatus = resp.Status
		doc.ResponseHeaders = sanitizeHeaders(resp.Headers)
		doc.ResponseBody = resp.Body
		doc.UpdatedAt = now
		doc.ExpiresAt = now.Add(ttl)
		return tx.Set(ref, doc)
	})
	if errors.Is(err, ErrFingerprintMismatch) {
		return err
	}
	return fsplatform.WrapError("idempotency.SaveResponse", err)
}

// Release deletes the reservation so that subsequent attempts may retry.
func (s *FirestoreStore) Release(ctx context.Context, key, _ string) error {
	client, err := s.provider.Client(ctx)
	if err != nil {
		return err
	}
	_, err = client.Collection(s.collection).Doc(recordID(key)).Delete(ctx)
	return fsplatform.WrapError("idempotency.Release", err)
}

// CleanupExpired removes up to limit expired records.
func (s *FirestoreStore) CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	now = now.UTC()
	if limit <= 0 {
		limit = 100
	}

	client, err := s.provider.Client(ctx)
	if err != nil {
		return 0, err
	}

	query := client.Collection(s.collection).
		Where("expiresAt", "<=", now).
		Limit(limit)
	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return 0, fsplatform.WrapError("idempotency.CleanupExpired", err)
	}

	removed := 0
	for _, snap := range snaps {
		if _, err := snap.Ref.Delete(ctx); err != nil {
			return removed, fsplatform.WrapError("idempotency.CleanupExpired", err)
		}
		removed++
	}
	return removed, nil
}

func recordFromDocument(doc idempotencyDocument) Record {
	return Record{
		Key:             doc.Key,
		Fingerprint:     doc.Fingerprint,
		Status:          Status(doc.Status),
		ResponseStatus:  doc.ResponseStatus,
		ResponseHeaders: doc.ResponseHeaders,
		ResponseBody:    doc.ResponseBody,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
		ExpiresAt:       doc.ExpiresAt,
	}
}
