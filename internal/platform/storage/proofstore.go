package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
)

const defaultSignedURLTTL = 15 * time.Minute

// StoredProof describes a persisted payment proof object.
type StoredProof struct {
	ObjectPath string
	MediaType  string
	Size       int64
}

// ProofStore persists payment proof uploads in a Cloud Storage bucket and
// hands out short-lived signed URLs for back-office review.
type ProofStore struct {
	client *gcs.Client
	bucket string
	ttl    time.Duration
	now    func() time.Time
}

// ProofStoreOption customises store behaviour.
type ProofStoreOption func(*ProofStore)

// WithSignedURLTTL overrides the signed URL lifetime.
func WithSignedURLTTL(ttl time.Duration) ProofStoreOption {
	return func(s *ProofStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock injects a custom clock, used by tests.
func WithClock(now func() time.Time) ProofStoreOption {
	return func(s *ProofStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewProofStore builds a proof store over an existing Cloud Storage client.
func NewProofStore(client *gcs.Client, bucket string, opts ...ProofStoreOption) (*ProofStore, error) {
	if client == nil {
		return nil, errors.New("storage: client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("storage: bucket name is required")
	}

	store := &ProofStore{
		client: client,
		bucket: bucket,
		ttl:    defaultSignedURLTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

// Save decodes a base64 data URI and writes it under the order's prefix.
// The object path is stored on the order in place of the raw payload.
func (s *ProofStore) Save(ctx context.Context, orderID, dataURI string) (StoredProof, error) {
	if strings.TrimSpace(orderID) == "" {
		return StoredProof{}, errors.New("storage: order id is required")
	}

	mediaType, data, err := DecodeDataURI(dataURI)
	if err != nil {
		return StoredProof{}, err
	}
	ext, err := ProofExtension(mediaType)
	if err != nil {
		return StoredProof{}, err
	}

	objectPath := ProofObjectPath(orderID, s.now().UTC(), ext)
	writer := s.client.Bucket(s.bucket).Object(objectPath).NewWriter(ctx)
	writer.ContentType = mediaType
	writer.CacheControl = "private, max-age=0"

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return StoredProof{}, fmt.Errorf("storage: write proof object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return StoredProof{}, fmt.Errorf("storage: finalise proof object: %w", err)
	}

	return StoredProof{
		ObjectPath: objectPath,
		MediaType:  mediaType,
		Size:       int64(len(data)),
	}, nil
}

// Read loads a stored proof object back into memory together with its
// content type. Proof images are small enough to buffer whole.
func (s *ProofStore) Read(ctx context.Context, objectPath string) ([]byte, string, error) {
	if strings.TrimSpace(objectPath) == "" {
		return nil, "", errors.New("storage: object path is required")
	}

	reader, err := s.client.Bucket(s.bucket).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("storage: open proof object: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", fmt.Errorf("storage: read proof object: %w", err)
	}
	return data, reader.Attrs.ContentType, nil
}

// SignedURL issues a time-limited GET URL for a stored proof object.
func (s *ProofStore) SignedURL(ctx context.Context, objectPath string) (string, error) {
	if strings.TrimSpace(objectPath) == "" {
		return "", errors.New("storage: object path is required")
	}

	url, err := s.client.Bucket(s.bucket).SignedURL(objectPath, &gcs.SignedURLOptions{
		Method:  "GET",
		Expires: s.now().UTC().Add(s.ttl),
		Scheme:  gcs.SigningSchemeV4,
	})
	if err != nil {
		return "", fmt.Errorf("storage: sign proof url: %w", err)
	}
	return url, nil
}

// Delete removes a proof object, used when an order is purged.
func (s *ProofStore) Delete(ctx context.Context, objectPath string) error {
	err := s.client.Bucket(s.bucket).Object(objectPath).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil
	}
	return err
}

// ProofObjectPath builds the deterministic object layout for proof uploads.
func ProofObjectPath(orderID string, at time.Time, ext string) string {
	return fmt.Sprintf("payment-proofs/%s/%s/%d%s", at.Format("2006/01"), orderID, at.UnixNano(), ext)
}
