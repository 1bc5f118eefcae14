package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kograph/api/internal/repositories"
)

// ErrStatsInvalidInput signals an invalid stats update.
var ErrStatsInvalidInput = errors.New("stats: invalid input")

// StatsServiceDeps bundles collaborators required to construct the stats service.
type StatsServiceDeps struct {
	Stats  repositories.StatsRepository
	Clock  func() time.Time
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type statsService struct {
	stats  repositories.StatsRepository
	clock  func() time.Time
	logger func(context.Context, string, map[string]any)
}

var _ StatsService = (*statsService)(nil)

// NewStatsService wires dependencies into a StatsService implementation.
func NewStatsService(deps StatsServiceDeps) (StatsService, error) {
	if deps.Stats == nil {
		return nil, errors.New("stats service: stats repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &statsService{
		stats: deps.Stats,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *statsService) Get(ctx context.Context) (Stats, error) {
	stats, err := s.stats.Get(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: load aggregate: %w", err)
	}
	return stats, nil
}

func (s *statsService) IncrementProjectsCompleted(ctx context.Context) error {
	return s.increment(ctx, repositories.StatsProjectsCompleted, 1)
}

func (s *statsService) IncrementClientsSatisfied(ctx context.Context) error {
	return s.increment(ctx, repositories.StatsClientsSatisfied, 1)
}

func (s *statsService) AdjustActiveUsers(ctx context.Context, delta int64) error {
	if delta == 0 {
		return nil
	}
	return s.increment(ctx, repositories.StatsActiveUsers, delta)
}

func (s *statsService) increment(ctx context.Context, field repositories.StatsField, delta int64) error {
	if err := s.stats.Increment(ctx, field, delta, s.clock()); err != nil {
		return fmt.Errorf("stats: increment %s: %w", field, err)
	}
	s.logger(ctx, "stats.incremented", map[string]any{
		"field": string(field),
		"delta": delta,
	})
	return nil
}

// Overwrite lets admins set the manually curated fields. Counter fields stay
// untouched so concurrent increments are never clobbered.
func (s *statsService) Overwrite(ctx context.Context, cmd OverwriteStatsCommand) (Stats, error) {
	if cmd.ResponseTime == nil && cmd.ActiveUsers == nil {
		return Stats{}, fmt.Errorf("%w: nothing to update", ErrStatsInvalidInput)
	}
	if cmd.ResponseTime != nil && *cmd.ResponseTime < 0 {
		return Stats{}, fmt.Errorf("%w: response time must not be negative", ErrStatsInvalidInput)
	}
	if cmd.ActiveUsers != nil && *cmd.ActiveUsers < 0 {
		return Stats{}, fmt.Errorf("%w: active users must not be negative", ErrStatsInvalidInput)
	}

	stats, err := s.stats.Get(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: load aggregate: %w", err)
	}
	if cmd.ResponseTime != nil {
		stats.ResponseTime = *cmd.ResponseTime
	}
	if cmd.ActiveUsers != nil {
		stats.ActiveUsers = *cmd.ActiveUsers
	}
	stats.UpdatedAt = s.clock()

	if err := s.stats.Put(ctx, stats); err != nil {
		return Stats{}, fmt.Errorf("stats: store aggregate: %w", err)
	}
	return stats, nil
}
