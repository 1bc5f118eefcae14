package services

import (
	"context"
	"errors"
	"time"

	"github.com/kograph/api/internal/repositories"
)

const (
	healthStatusOK       = "ok"
	healthStatusDegraded = "degraded"
)

// BuildInfo captures runtime metadata exposed via health endpoints.
type BuildInfo struct {
	Version   string
	StartedAt time.Time
}

// SystemServiceDeps bundles collaborators required to construct the system service.
type SystemServiceDeps struct {
	Health repositories.HealthRepository
	Build  BuildInfo
	Clock  func() time.Time
}

type systemService struct {
	health repositories.HealthRepository
	build  BuildInfo
	clock  func() time.Time
}

var _ SystemService = (*systemService)(nil)

// NewSystemService assembles the readiness reporting service.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.Health == nil {
		return nil, errors.New("system service: health repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	build := deps.Build
	if build.StartedAt.IsZero() {
		build.StartedAt = clock()
	}

	return &systemService{
		health: deps.Health,
		build:  build,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

func (s *systemService) HealthReport(ctx context.Context) SystemHealthReport {
	checks := s.health.Check(ctx)

	status := healthStatusOK
	for _, check := range checks {
		if !check.Healthy {
			status = healthStatusDegraded
			break
		}
	}

	now := s.clock()
	return SystemHealthReport{
		Status:      status,
		Version:     s.build.Version,
		GeneratedAt: now,
		Uptime:      now.Sub(s.build.StartedAt),
		Checks:      checks,
	}
}
