package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/kograph/api/internal/domain"
	pfirestore "github.com/kograph/api/internal/platform/firestore"
	"github.com/kograph/api/internal/platform/pagination"
)

const testimonialCollection = "testimonials"

type testimonialDocument struct {
	UserID    string    `firestore:"userId"`
	UserName  string    `firestore:"userName"`
	UserPhoto string    `firestore:"userPhoto,omitempty"`
	Message   string    `firestore:"message"`
	Rating    int       `firestore:"rating"`
	Approved  bool      `firestore:"approved"`
	CreatedAt time.Time `firestore:"createdAt"`
}

// TestimonialRepository implements repositories.TestimonialRepository backed by Firestore.
type TestimonialRepository struct {
	provider     *pfirestore.Provider
	testimonials *pfirestore.Collection[testimonialDocument]
}

// NewTestimonialRepository constructs a Firestore-backed testimonial repository.
func NewTestimonialRepository(provider *pfirestore.Provider) (*TestimonialRepository, error) {
	if provider == nil {
		return nil, errors.New("testimonial repository requires firestore provider")
	}
	collection, err := pfirestore.NewCollection[testimonialDocument](provider, testimonialCollection, nil)
	if err != nil {
		return nil, err
	}
	return &TestimonialRepository{provider: provider, testimonials: collection}, nil
}

// Insert creates a testimonial document.
func (r *TestimonialRepository) Insert(ctx context.Context, testimonial domain.Testimonial) error {
	if strings.TrimSpace(testimonial.ID) == "" {
		return errors.New("testimonial id is required")
	}
	return r.testimonials.Create(ctx, testimonial.ID, fromDomainTestimonial(testimonial))
}

// SetApproved flips the moderation flag on a testimonial.
func (r *TestimonialRepository) SetApproved(ctx context.Context, testimonialID string, approved bool) error {
	if strings.TrimSpace(testimonialID) == "" {
		return errors.New("testimonial id is required")
	}
	return r.testimonials.Update(ctx, testimonialID, []firestore.Update{
		{Path: "approved", Value: approved},
	})
}

// Delete removes a testimonial document.
func (r *TestimonialRepository) Delete(ctx context.Context, testimonialID string) error {
	if strings.TrimSpace(testimonialID) == "" {
		return errors.New("testimonial id is required")
	}
	return r.testimonials.Delete(ctx, testimonialID)
}

// List returns testimonials newest-first, optionally restricted to approved ones.
func (r *TestimonialRepository) List(ctx context.Context, approvedOnly bool, pager domain.Pagination) (domain.CursorPage[domain.Testimonial], error) {
	query, err := r.testimonials.Query(ctx)
	if err != nil {
		return domain.CursorPage[domain.Testimonial]{}, err
	}
	if approvedOnly {
		query = query.Where("approved", "==", true)
	}
	query = query.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)

	pageSize := pager.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}
	cursor, err := pagination.DecodeToken(pager.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Testimonial]{}, err
	}
	if !cursor.IsZero() {
		query = query.StartAfter(cursorValues(cursor)...)
	}

	snaps, err := query.Limit(pageSize + 1).Documents(ctx).GetAll()
	if err != nil {
		return domain.CursorPage[domain.Testimonial]{}, pfirestore.WrapError("testimonials.List", err)
	}

	page := domain.CursorPage[domain.Testimonial]{}
	for i, snap := range snaps {
		if i == pageSize {
			break
		}
		var doc testimonialDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.Testimonial]{}, pfirestore.WrapError("testimonials.List", err)
		}
		page.Items = append(page.Items, toDomainTestimonial(snap.Ref.ID, doc))
	}

	if len(snaps) > pageSize {
		last := page.Items[len(page.Items)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{
			StartAfter: []any{last.CreatedAt, last.ID},
		})
		if err != nil {
			return domain.CursorPage[domain.Testimonial]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

func fromDomainTestimonial(testimonial domain.Testimonial) testimonialDocument {
	return testimonialDocument{
		UserID:    testimonial.UserID,
		UserName:  testimonial.UserName,
		UserPhoto: testimonial.UserPhoto,
		Message:   testimonial.Message,
		Rating:    testimonial.Rating,
		Approved:  testimonial.Approved,
		CreatedAt: testimonial.CreatedAt,
	}
}

func toDomainTestimonial(id string, doc testimonialDocument) domain.Testimonial {
	return domain.Testimonial{
		ID:        id,
		UserID:    doc.UserID,
		UserName:  doc.UserName,
		UserPhoto: doc.UserPhoto,
		Message:   doc.Message,
		Rating:    doc.Rating,
		Approved:  doc.Approved,
		CreatedAt: doc.CreatedAt,
	}
}
