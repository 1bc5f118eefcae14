package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/kograph/api/internal/domain"
	pfirestore "github.com/kograph/api/internal/platform/firestore"
	"github.com/kograph/api/internal/repositories"
)

const (
	statsCollection = "stats"
	statsDocumentID = "main"
)

type statsDocument struct {
	ClientsSatisfied  int64     `firestore:"clientsSatisfied"`
	ProjectsCompleted int64     `firestore:"projectsCompleted"`
	AverageRating     float64   `firestore:"averageRating"`
	ResponseTime      int64     `firestore:"responseTime"`
	ActiveUsers       int64     `firestore:"activeUsers"`
	UpdatedAt         time.Time `firestore:"updatedAt"`
}

// StatsRepository owns the stats/main singleton. Counter bumps use the
// server-side increment transform so concurrent writers never lose updates.
type StatsRepository struct {
	provider *pfirestore.Provider
	stats    *pfirestore.Collection[statsDocument]
}

// NewStatsRepository constructs a Firestore-backed stats repository.
func NewStatsRepository(provider *pfirestore.Provider) (*StatsRepository, error) {
	if provider == nil {
		return nil, errors.New("stats repository requires firestore provider")
	}
	collection, err := pfirestore.NewCollection[statsDocument](provider, statsCollection, nil)
	if err != nil {
		return nil, err
	}
	return &StatsRepository{provider: provider, stats: collection}, nil
}

// Get loads the aggregate. A missing document reads as zero values.
func (r *StatsRepository) Get(ctx context.Context) (domain.Stats, error) {
	doc, err := r.stats.Get(ctx, statsDocumentID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Stats{}, nil
		}
		return domain.Stats{}, err
	}
	return toDomainStats(doc), nil
}

// Increment atomically bumps a counter field.
func (r *StatsRepository) Increment(ctx context.Context, field repositories.StatsField, delta int64, now time.Time) error {
	updates := []firestore.Update{
		{Path: string(field), Value: firestore.Increment(delta)},
		{Path: "updatedAt", Value: now.UTC()},
	}

	err := r.stats.Update(ctx, statsDocumentID, updates)
	if err == nil {
		return nil
	}

	// First write ever: seed the document, then retry the increment so a
	// concurrent seeder cannot clobber our delta.
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		if seedErr := r.seed(ctx, now); seedErr != nil {
			return seedErr
		}
		return r.stats.Update(ctx, statsDocumentID, updates)
	}
	return err
}

// SetAverageRating writes the recomputed rating average. Callers run this in
// the same transaction as the rating insert.
func (r *StatsRepository) SetAverageRating(ctx context.Context, average float64, now time.Time) error {
	err := r.stats.Update(ctx, statsDocumentID, []firestore.Update{
		{Path: "averageRating", Value: average},
		{Path: "updatedAt", Value: now.UTC()},
	})

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		if seedErr := r.seed(ctx, now); seedErr != nil {
			return seedErr
		}
		return r.stats.Update(ctx, statsDocumentID, []firestore.Update{
			{Path: "averageRating", Value: average},
			{Path: "updatedAt", Value: now.UTC()},
		})
	}
	return err
}

// Put overwrites the whole aggregate, used by the back-office editor for
// display-only fields like responseTime.
func (r *StatsRepository) Put(ctx context.Context, stats domain.Stats) error {
	return r.stats.Set(ctx, statsDocumentID, fromDomainStats(stats))
}

func (r *StatsRepository) seed(ctx context.Context, now time.Time) error {
	err := r.stats.Create(ctx, statsDocumentID, statsDocument{UpdatedAt: now.UTC()})
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsConflict() {
		return nil
	}
	return err
}

func toDomainStats(doc statsDocument) domain.Stats {
	return domain.Stats{
		ClientsSatisfied:  doc.ClientsSatisfied,
		ProjectsCompleted: doc.ProjectsCompleted,
		AverageRating:     doc.AverageRating,
		ResponseTime:      doc.ResponseTime,
		ActiveUsers:       doc.ActiveUsers,
		UpdatedAt:         doc.UpdatedAt,
	}
}

func fromDomainStats(stats domain.Stats) statsDocument {
	return statsDocument{
		ClientsSatisfied:  stats.ClientsSatisfied,
		ProjectsCompleted: stats.ProjectsCompleted,
		AverageRating:     stats.AverageRating,
		ResponseTime:      stats.ResponseTime,
		ActiveUsers:       stats.ActiveUsers,
		UpdatedAt:         stats.UpdatedAt,
	}
}
