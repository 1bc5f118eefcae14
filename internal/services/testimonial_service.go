package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/kograph/api/internal/domain"
	"github.com/kograph/api/internal/repositories"
)

const testimonialIDPrefix = "tsm_"

var (
	// ErrTestimonialInvalidInput signals the caller provided invalid data.
	ErrTestimonialInvalidInput = errors.New("testimonial: invalid input")
	// ErrTestimonialNotFound indicates the testimonial could not be located.
	ErrTestimonialNotFound = errors.New("testimonial: not found")
)

// TestimonialServiceDeps bundles collaborators required to construct the testimonial service.
type TestimonialServiceDeps struct {
	Testimonials repositories.TestimonialRepository
	Clock        func() time.Time
	IDGenerator  func() string
	Logger       func(ctx context.Context, event string, fields map[string]any)
}

type testimonialService struct {
	testimonials repositories.TestimonialRepository
	clock        func() time.Time
	newID        func() string
	logger       func(context.Context, string, map[string]any)
}

var _ TestimonialService = (*testimonialService)(nil)

// NewTestimonialService wires dependencies into a TestimonialService implementation.
func NewTestimonialService(deps TestimonialServiceDeps) (TestimonialService, error) {
	if deps.Testimonials == nil {
		return nil, errors.New("testimonial service: testimonial repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return testimonialIDPrefix + ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &testimonialService{
		testimonials: deps.Testimonials,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// Submit stores a new testimonial awaiting moderation.
func (s *testimonialService) Submit(ctx context.Context, cmd SubmitTestimonialCommand) (Testimonial, error) {
	if strings.TrimSpace(cmd.UserID) == "" {
		return Testimonial{}, fmt.Errorf("%w: user id is required", ErrTestimonialInvalidInput)
	}
	if strings.TrimSpace(cmd.Message) == "" {
		return Testimonial{}, fmt.Errorf("%w: message is required", ErrTestimonialInvalidInput)
	}
	if cmd.Rating < 1 || cmd.Rating > 5 {
		return Testimonial{}, fmt.Errorf("%w: rating must be between 1 and 5", ErrTestimonialInvalidInput)
	}

	testimonial := Testimonial{
		ID:        s.newID(),
		UserID:    strings.TrimSpace(cmd.UserID),
		UserName:  strings.TrimSpace(cmd.UserName),
		UserPhoto: strings.TrimSpace(cmd.UserPhoto),
		Message:   strings.TrimSpace(cmd.Message),
		Rating:    cmd.Rating,
		Approved:  false,
		CreatedAt: s.clock(),
	}
	if err := s.testimonials.Insert(ctx, testimonial); err != nil {
		return Testimonial{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "testimonial.submitted", map[string]any{
		"testimonialId": testimonial.ID,
		"userId":        testimonial.UserID,
	})
	return testimonial, nil
}

func (s *testimonialService) ListPublic(ctx context.Context, pager Pagination) (domain.CursorPage[Testimonial], error) {
	page, err := s.testimonials.List(ctx, true, pager)
	if err != nil {
		return domain.CursorPage[Testimonial]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *testimonialService) ListAll(ctx context.Context, pager Pagination) (domain.CursorPage[Testimonial], error) {
	page, err := s.testimonials.List(ctx, false, pager)
	if err != nil {
		return domain.CursorPage[Testimonial]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *testimonialService) SetApproved(ctx context.Context, testimonialID string, approved bool) error {
	testimonialID = strings.TrimSpace(testimonialID)
	if testimonialID == "" {
		return fmt.Errorf("%w: testimonial id is required", ErrTestimonialInvalidInput)
	}
	if err := s.testimonials.SetApproved(ctx, testimonialID, approved); err != nil {
		return s.mapRepositoryError(err)
	}

	s.logger(ctx, "testimonial.moderated", map[string]any{
		"testimonialId": testimonialID,
		"approved":      approved,
	})
	return nil
}

func (s *testimonialService) Delete(ctx context.Context, testimonialID string) error {
	testimonialID = strings.TrimSpace(testimonialID)
	if testimonialID == "" {
		return fmt.Errorf("%w: testimonial id is required", ErrTestimonialInvalidInput)
	}
	if err := s.testimonials.Delete(ctx, testimonialID); err != nil {
		return s.mapRepositoryError(err)
	}

	s.logger(ctx, "testimonial.deleted", map[string]any{
		"testimonialId": testimonialID,
	})
	return nil
}

func (s *testimonialService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrTestimonialNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("testimonial: repository unavailable: %w", err)
		}
	}

	return err
}
