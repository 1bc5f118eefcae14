package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/kograph/api/internal/domain"
	pfirestore "github.com/kograph/api/internal/platform/firestore"
)

const ratingCollection = "ratings"

type ratingDocument struct {
	OrderID   string    `firestore:"orderId"`
	UserID    string    `firestore:"userId"`
	UserName  string    `firestore:"userName"`
	Score     int       `firestore:"rating"`
	Comment   string    `firestore:"comment,omitempty"`
	CreatedAt time.Time `firestore:"createdAt"`
}

// RatingRepository implements repositories.RatingRepository backed by Firestore.
type RatingRepository struct {
	provider *pfirestore.Provider
	ratings  *pfirestore.Collection[ratingDocument]
}

// NewRatingRepository constructs a Firestore-backed rating repository.
func NewRatingRepository(provider *pfirestore.Provider) (*RatingRepository, error) {
	if provider == nil {
		return nil, errors.New("rating repository requires firestore provider")
	}
	collection, err := pfirestore.NewCollection[ratingDocument](provider, ratingCollection, nil)
	if err != nil {
		return nil, err
	}
	return &RatingRepository{provider: provider, ratings: collection}, nil
}

// Insert persists a rating document.
func (r *RatingRepository) Insert(ctx context.Context, rating domain.Rating) error {
	if strings.TrimSpace(rating.ID) == "" {
		return errors.New("rating id is required")
	}
	return r.ratings.Create(ctx, rating.ID, ratingDocument{
		OrderID:   rating.OrderID,
		UserID:    rating.UserID,
		UserName:  rating.UserName,
		Score:     rating.Score,
		Comment:   rating.Comment,
		CreatedAt: rating.CreatedAt,
	})
}

// ListAll returns every rating, oldest first. Callers recomputing the global
// average run this inside the same transaction as the stats write.
func (r *RatingRepository) ListAll(ctx context.Context) ([]domain.Rating, error) {
	query, err := r.ratings.Query(ctx)
	if err != nil {
		return nil, err
	}
	query = query.OrderBy("createdAt", firestore.Asc)

	docs, refs, err := r.fetchWithIDs(ctx, query)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Rating, 0, len(docs))
	for i, doc := range docs {
		out = append(out, domain.Rating{
			ID:        refs[i],
			OrderID:   doc.OrderID,
			UserID:    doc.UserID,
			UserName:  doc.UserName,
			Score:     doc.Score,
			Comment:   doc.Comment,
			CreatedAt: doc.CreatedAt,
		})
	}
	return out, nil
}

func (r *RatingRepository) fetchWithIDs(ctx context.Context, query firestore.Query) ([]ratingDocument, []string, error) {
	var iter *firestore.DocumentIterator
	if tx, ok := pfirestore.TxFromContext(ctx); ok {
		iter = tx.Documents(query)
	} else {
		iter = query.Documents(ctx)
	}
	snaps, err := iter.GetAll()
	if err != nil {
		return nil, nil, pfirestore.WrapError("ratings.ListAll", err)
	}

	docs := make([]ratingDocument, 0, len(snaps))
	ids := make([]string, 0, len(snaps))
	for _, snap := range snaps {
		var doc ratingDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, nil, pfirestore.WrapError("ratings.ListAll", err)
		}
		docs = append(docs, doc)
		ids = append(ids, snap.Ref.ID)
	}
	return docs, ids, nil
}
