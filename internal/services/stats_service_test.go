package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/kograph/api/internal/domain"
	"github.com/kograph/api/internal/repositories"
)

func newTestStatsService(t *testing.T, repo *stubStatsRepository) StatsService {
	t.Helper()
	svc, err := NewStatsService(StatsServiceDeps{
		Stats: repo,
		Clock: func() time.Time {
			return time.Date(2025, 6, 18, 8, 0, 0, 0, time.UTC)
		},
	})
	if err != nil {
		t.Fatalf("new stats service: %v", err)
	}
	return svc
}

func TestStatsServiceIncrements(t *testing.T) {
	repo := &stubStatsRepository{}
	svc := newTestStatsService(t, repo)

	if err := svc.IncrementProjectsCompleted(context.Background()); err != nil {
		t.Fatalf("increment projects: %v", err)
	}
	if err := svc.IncrementClientsSatisfied(context.Background()); err != nil {
		t.Fatalf("increment clients: %v", err)
	}
	if err := svc.AdjustActiveUsers(context.Background(), -2); err != nil {
		t.Fatalf("adjust active users: %v", err)
	}
	if err := svc.AdjustActiveUsers(context.Background(), 0); err != nil {
		t.Fatalf("zero delta: %v", err)
	}

	want := []statsIncrement{
		{field: repositories.StatsProjectsCompleted, delta: 1},
		{field: repositories.StatsClientsSatisfied, delta: 1},
		{field: repositories.StatsActiveUsers, delta: -2},
	}
	if len(repo.increments) != len(want) {
		t.Fatalf("expected %d increments, got %d", len(want), len(repo.increments))
	}
	for i, inc := range want {
		if repo.increments[i] != inc {
			t.Fatalf("increment %d: expected %+v, got %+v", i, inc, repo.increments[i])
		}
	}
}

func TestStatsServiceOverwriteKeepsCounters(t *testing.T) {
	repo := &stubStatsRepository{stats: domain.Stats{
		ClientsSatisfied:  10,
		ProjectsCompleted: 25,
		AverageRating:     4.8,
		ResponseTime:      60,
		ActiveUsers:       3,
	}}
	svc := newTestStatsService(t, repo)

	responseTime := int64(30)
	updated, err := svc.Overwrite(context.Background(), OverwriteStatsCommand{ResponseTime: &responseTime})
	if err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	if updated.ResponseTime != 30 {
		t.Fatalf("expected response time 30, got %d", updated.ResponseTime)
	}
	if updated.ClientsSatisfied != 10 || updated.ProjectsCompleted != 25 || updated.AverageRating != 4.8 {
		t.Fatalf("counters must survive overwrite, got %+v", updated)
	}
	if repo.stats.ResponseTime != 30 {
		t.Fatalf("expected persisted response time 30, got %d", repo.stats.ResponseTime)
	}
}

func TestStatsServiceOverwriteValidation(t *testing.T) {
	svc := newTestStatsService(t, &stubStatsRepository{})

	if _, err := svc.Overwrite(context.Background(), OverwriteStatsCommand{}); !errors.Is(err, ErrStatsInvalidInput) {
		t.Fatalf("expected ErrStatsInvalidInput for empty command, got %v", err)
	}

	negative := int64(-1)
	if _, err := svc.Overwrite(context.Background(), OverwriteStatsCommand{ResponseTime: &negative}); !errors.Is(err, ErrStatsInvalidInput) {
		t.Fatalf("expected ErrStatsInvalidInput for negative value, got %v", err)
	}
}
