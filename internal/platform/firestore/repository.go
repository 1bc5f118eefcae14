package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// Decoder converts a raw snapshot into a typed value.
type Decoder[T any] func(doc *firestore.DocumentSnapshot) (T, error)

// StructDecoder decodes snapshots through firestore struct tags.
func StructDecoder[T any]() Decoder[T] {
	return func(doc *firestore.DocumentSnapshot) (T, error) {
		var out T
		if err := doc.DataTo(&out); err != nil {
			return out, fmt.Errorf("decode document %q: %w", doc.Ref.ID, err)
		}
		return out, nil
	}
}

// Collection provides typed access to a single Firestore collection. Reads and
// writes join the ambient transaction when one is present in the context.
type Collection[T any] struct {
	provider *Provider
	path     string
	decode   Decoder[T]
}

// NewCollection builds typed access over a collection path.
func NewCollection[T any](provider *Provider, path string, decode Decoder[T]) (*Collection[T], error) {
	if provider == nil {
		return nil, errors.New("firestore: provider is required")
	}
	if path == "" {
		return nil, errors.New("firestore: collection path is required")
	}
	if decode == nil {
		decode = StructDecoder[T]()
	}
	return &Collection[T]{provider: provider, path: path, decode: decode}, nil
}

// Ref resolves the document reference for an id.
func (c *Collection[T]) Ref(ctx context.Context, id string) (*firestore.DocumentRef, error) {
	client, err := c.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(c.path).Doc(id), nil
}

// Query returns the base collection query.
func (c *Collection[T]) Query(ctx context.Context) (firestore.Query, error) {
	client, err := c.provider.Client(ctx)
	if err != nil {
		return firestore.Query{}, err
	}
	return client.Collection(c.path).Query, nil
}

// Get fetches a single document, joining the ambient transaction when present.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T

	ref, err := c.Ref(ctx, id)
	if err != nil {
		return zero, err
	}

	var snap *firestore.DocumentSnapshot
	op := "firestore.Get"
	if tx, ok := TxFromContext(ctx); ok {
		snap, err = tx.Get(ref)
	} else {
		snap, err = ref.Get(ctx)
	}
	if err != nil {
		return zero, WrapError(op, err)
	}
	return c.decode(snap)
}

// Create inserts a new document and fails on id collisions.
func (c *Collection[T]) Create(ctx context.Context, id string, data any) error {
	ref, err := c.Ref(ctx, id)
	if err != nil {
		return err
	}
	if tx, ok := TxFromContext(ctx); ok {
		return WrapError("firestore.Create", tx.Create(ref, data))
	}
	_, err = ref.Create(ctx, data)
	return WrapError("firestore.Create", err)
}

// Set writes a document unconditionally.
func (c *Collection[T]) Set(ctx context.Context, id string, data any) error {
	ref, err := c.Ref(ctx, id)
	if err != nil {
		return err
	}
	if tx, ok := TxFromContext(ctx); ok {
		return WrapError("firestore.Set", tx.Set(ref, data))
	}
	_, err = ref.Set(ctx, data)
	return WrapError("firestore.Set", err)
}

// Update applies field updates to an existing document.
func (c *Collection[T]) Update(ctx context.Context, id string, updates []firestore.Update) error {
	ref, err := c.Ref(ctx, id)
	if err != nil {
		return err
	}
	if tx, ok := TxFromContext(ctx); ok {
		return WrapError("firestore.Update", tx.Update(ref, updates))
	}
	_, err = ref.Update(ctx, updates)
	return WrapError("firestore.Update", err)
}

// Delete removes a document. Deleting a missing document is not an error.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	ref, err := c.Ref(ctx, id)
	if err != nil {
		return err
	}
	if tx, ok := TxFromContext(ctx); ok {
		return WrapError("firestore.Delete", tx.Delete(ref))
	}
	_, err = ref.Delete(ctx)
	return WrapError("firestore.Delete", err)
}

// Fetch drains a query into decoded values, joining the ambient transaction
// when one is present.
func (c *Collection[T]) Fetch(ctx context.Context, query firestore.Query) ([]T, error) {
	var iter *firestore.DocumentIterator
	if tx, ok := TxFromContext(ctx); ok {
		iter = tx.Documents(query)
	} else {
		iter = query.Documents(ctx)
	}
	defer iter.Stop()

	var out []T
	for {
		snap, err := iter.Next()
		if isIteratorDone(err) {
			return out, nil
		}
		if err != nil {
			return nil, WrapError("firestore.Fetch", err)
		}
		item, err := c.decode(snap)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
}

func isIteratorDone(err error) bool {
	return errors.Is(err, iterator.Done)
}
