package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/kograph/api/internal/domain"
)

type stubTestimonialRepository struct {
	testimonials  map[string]domain.Testimonial
	lastApproved  bool
	lastListFlags []bool
}

func newStubTestimonialRepository(testimonials ...domain.Testimonial) *stubTestimonialRepository {
	repo := &stubTestimonialRepository{testimonials: map[string]domain.Testimonial{}}
	for _, testimonial := range testimonials {
		repo.testimonials[testimonial.ID] = testimonial
	}
	return repo
}

func (r *stubTestimonialRepository) Insert(ctx context.Context, testimonial domain.Testimonial) error {
	r.testimonials[testimonial.ID] = testimonial
	return nil
}

func (r *stubTestimonialRepository) SetApproved(ctx context.Context, testimonialID string, approved bool) error {
	testimonial, ok := r.testimonials[testimonialID]
	if !ok {
		return notFoundError(testimonialID)
	}
	testimonial.Approved = approved
	r.testimonials[testimonialID] = testimonial
	r.lastApproved = approved
	return nil
}

func (r *stubTestimonialRepository) Delete(ctx context.Context, testimonialID string) error {
	if _, ok := r.testimonials[testimonialID]; !ok {
		return notFoundError(testimonialID)
	}
	delete(r.testimonials, testimonialID)
	return nil
}

func (r *stubTestimonialRepository) List(ctx context.Context, approvedOnly bool, pager domain.Pagination) (domain.CursorPage[domain.Testimonial], error) {
	r.lastListFlags = append(r.lastListFlags, approvedOnly)
	var items []domain.Testimonial
	for _, testimonial := range r.testimonials {
		if approvedOnly && !testimonial.Approved {
			continue
		}
		items = append(items, testimonial)
	}
	return domain.CursorPage[domain.Testimonial]{Items: items}, nil
}

func newTestTestimonialService(t *testing.T, repo *stubTestimonialRepository) TestimonialService {
	t.Helper()
	svc, err := NewTestimonialService(TestimonialServiceDeps{
		Testimonials: repo,
		Clock: func() time.Time {
			return time.Date(2025, 6, 12, 9, 0, 0, 0, time.UTC)
		},
		IDGenerator: func() string { return "tsm_test0001" },
	})
	if err != nil {
		t.Fatalf("new testimonial service: %v", err)
	}
	return svc
}

func TestTestimonialServiceSubmitStartsUnapproved(t *testing.T) {
	repo := newStubTestimonialRepository()
	svc := newTestTestimonialService(t, repo)

	testimonial, err := svc.Submit(context.Background(), SubmitTestimonialCommand{
		UserID:   "user-1",
		UserName: "  Budi  ",
		Message:  "  Pelayanan cepat!  ",
		Rating:   5,
	})
	if err != nil {
		t.Fatalf("submit testimonial: %v", err)
	}

	if testimonial.Approved {
		t.Fatal("new testimonials must await moderation")
	}
	if testimonial.UserName != "Budi" || testimonial.Message != "Pelayanan cepat!" {
		t.Fatalf("expected trimmed fields, got %+v", testimonial)
	}
	if _, ok := repo.testimonials["tsm_test0001"]; !ok {
		t.Fatal("testimonial not persisted")
	}
}

func TestTestimonialServiceSubmitValidation(t *testing.T) {
	svc := newTestTestimonialService(t, newStubTestimonialRepository())

	cases := map[string]SubmitTestimonialCommand{
		"missing user":    {Message: "ok", Rating: 5},
		"missing message": {UserID: "user-1", Rating: 5},
		"rating too low":  {UserID: "user-1", Message: "ok", Rating: 0},
		"rating too high": {UserID: "user-1", Message: "ok", Rating: 6},
	}
	for name, cmd := range cases {
		if _, err := svc.Submit(context.Background(), cmd); !errors.Is(err, ErrTestimonialInvalidInput) {
			t.Errorf("%s: expected ErrTestimonialInvalidInput, got %v", name, err)
		}
	}
}

func TestTestimonialServiceListVisibility(t *testing.T) {
	repo := newStubTestimonialRepository(
		domain.Testimonial{ID: "tsm_1", Approved: true},
		domain.Testimonial{ID: "tsm_2", Approved: false},
	)
	svc := newTestTestimonialService(t, repo)

	public, err := svc.ListPublic(context.Background(), Pagination{PageSize: 10})
	if err != nil {
		t.Fatalf("list public: %v", err)
	}
	if len(public.Items) != 1 || public.Items[0].ID != "tsm_1" {
		t.Fatalf("public listing must only show approved entries, got %+v", public.Items)
	}

	all, err := svc.ListAll(context.Background(), Pagination{PageSize: 10})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all.Items) != 2 {
		t.Fatalf("admin listing must show everything, got %d items", len(all.Items))
	}

	if len(repo.lastListFlags) != 2 || !repo.lastListFlags[0] || repo.lastListFlags[1] {
		t.Fatalf("unexpected approvedOnly flags %v", repo.lastListFlags)
	}
}

func TestTestimonialServiceModeration(t *testing.T) {
	repo := newStubTestimonialRepository(domain.Testimonial{ID: "tsm_1"})
	svc := newTestTestimonialService(t, repo)

	if err := svc.SetApproved(context.Background(), "tsm_1", true); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !repo.testimonials["tsm_1"].Approved {
		t.Fatal("approval not stored")
	}

	if err := svc.SetApproved(context.Background(), "tsm_missing", true); !errors.Is(err, ErrTestimonialNotFound) {
		t.Fatalf("expected ErrTestimonialNotFound, got %v", err)
	}

	if err := svc.Delete(context.Background(), "tsm_1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := repo.testimonials["tsm_1"]; ok {
		t.Fatal("testimonial still present after delete")
	}
}
