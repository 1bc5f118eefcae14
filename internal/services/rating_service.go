package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/kograph/api/internal/domain"
	"github.com/kograph/api/internal/repositories"
)

const ratingIDPrefix = "rat_"

var (
	// ErrRatingInvalidInput signals the caller provided invalid data.
	ErrRatingInvalidInput = errors.New("rating: invalid input")
	// ErrRatingNotFound indicates the rated order could not be located.
	ErrRatingNotFound = errors.New("rating: order not found")
	// ErrRatingNotAllowed indicates the order is not in a rateable state.
	ErrRatingNotAllowed = errors.New("rating: order not rateable")
	// ErrRatingConflict indicates the order was already rated.
	ErrRatingConflict = errors.New("rating: already rated")
)

// RatingServiceDeps bundles collaborators required to construct the rating service.
type RatingServiceDeps struct {
	Orders        repositories.OrderRepository
	Ratings       repositories.RatingRepository
	Stats         repositories.StatsRepository
	Notifications NotificationService
	UnitOfWork    repositories.UnitOfWork
	Clock         func() time.Time
	IDGenerator   func() string
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type ratingService struct {
	orders        repositories.OrderRepository
	ratings       repositories.RatingRepository
	stats         repositories.StatsRepository
	notifications NotificationService
	unitOfWork    repositories.UnitOfWork
	clock         func() time.Time
	newID         func() string
	logger        func(context.Context, string, map[string]any)
}

var _ RatingService = (*ratingService)(nil)

// NewRatingService wires dependencies into a RatingService implementation.
func NewRatingService(deps RatingServiceDeps) (RatingService, error) {
	if deps.Orders == nil {
		return nil, errors.New("rating service: order repository is required")
	}
	if deps.Ratings == nil {
		return nil, errors.New("rating service: rating repository is required")
	}
	if deps.Stats == nil {
		return nil, errors.New("rating service: stats repository is required")
	}
	if deps.UnitOfWork == nil {
		return nil, errors.New("rating service: unit of work is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ratingIDPrefix + ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &ratingService{
		orders:        deps.Orders,
		ratings:       deps.Ratings,
		stats:         deps.Stats,
		notifications: deps.Notifications,
		unitOfWork:    deps.UnitOfWork,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// Submit records a rating for a completed order. The order re-read, the
// rating insert, the rated flag flip, and the recomputed global average all
// commit in one transaction, so two concurrent submissions for the same order
// cannot both land.
func (s *ratingService) Submit(ctx context.Context, cmd SubmitRatingCommand) (Rating, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	userID := strings.TrimSpace(cmd.UserID)
	if orderID == "" {
		return Rating{}, fmt.Errorf("%w: order id is required", ErrRatingInvalidInput)
	}
	if userID == "" {
		return Rating{}, fmt.Errorf("%w: user id is required", ErrRatingInvalidInput)
	}
	if cmd.Score < 1 || cmd.Score > 5 {
		return Rating{}, fmt.Errorf("%w: rating must be between 1 and 5", ErrRatingInvalidInput)
	}

	now := s.clock()
	rating := Rating{
		ID:        s.newID(),
		OrderID:   orderID,
		UserID:    userID,
		UserName:  strings.TrimSpace(cmd.UserName),
		Score:     cmd.Score,
		Comment:   strings.TrimSpace(cmd.Comment),
		CreatedAt: now,
	}

	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		// Firestore transactions require all reads before any write.
		order, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return err
		}
		if order.UserID != userID {
			return fmt.Errorf("%w: %s", ErrRatingNotFound, orderID)
		}
		if order.Status != domain.OrderStatusCompleted {
			return fmt.Errorf("%w: order status is %s", ErrRatingNotAllowed, order.Status)
		}
		if order.Rated {
			return fmt.Errorf("%w: order %s", ErrRatingConflict, orderID)
		}

		existing, err := s.ratings.ListAll(txCtx)
		if err != nil {
			return err
		}
		average := recomputeAverage(existing, rating.Score)

		if err := s.ratings.Insert(txCtx, rating); err != nil {
			return err
		}
		order.Rated = true
		order.UpdatedAt = now
		if err := s.orders.Update(txCtx, order); err != nil {
			return err
		}
		return s.stats.SetAverageRating(txCtx, average, now)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrRatingNotFound), errors.Is(err, ErrRatingNotAllowed), errors.Is(err, ErrRatingConflict):
			return Rating{}, err
		}
		return Rating{}, s.mapRepositoryError(err)
	}

	s.logger(ctx, "rating.submitted", map[string]any{
		"ratingId": rating.ID,
		"orderId":  rating.OrderID,
		"userId":   rating.UserID,
		"score":    rating.Score,
	})

	if s.notifications != nil {
		if _, err := s.notifications.Notify(ctx, NotifyCommand{
			UserID:  domain.AdminAudience,
			Type:    domain.NotificationTypeRating,
			Title:   "Rating Baru",
			Message: fmt.Sprintf("%s memberi rating %d/5 untuk pesanan %s", rating.UserName, rating.Score, shortOrderID(orderID)),
			Link:    "/admin",
			Data:    map[string]string{"orderId": orderID, "ratingId": rating.ID},
		}); err != nil {
			s.logger(ctx, "rating.notification.failed", map[string]any{
				"ratingId": rating.ID,
				"error":    err.Error(),
			})
		}
	}

	return rating, nil
}

// recomputeAverage folds the new score into the existing rating set, rounded
// to one decimal the way the storefront displays it.
func recomputeAverage(existing []Rating, newScore int) float64 {
	total := int64(newScore)
	for _, rating := range existing {
		total += int64(rating.Score)
	}
	count := int64(len(existing)) + 1
	average := float64(total) / float64(count)
	return math.Round(average*10) / 10
}

func (s *ratingService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrRatingNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrRatingConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("rating: repository unavailable: %w", err)
		}
	}

	return err
}
