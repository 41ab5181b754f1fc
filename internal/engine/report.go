package engine

import (
	"context"
	"time"

	"vigia/internal/domain"
	"vigia/internal/metrics"
)

// Report computes the requesting user's role-scoped metrics. Recomputed
// fresh from snapshots on every call; nothing is cached or mutated.
func (e Engine) Report(ctx context.Context, actorID string) (metrics.Report, error) {
	reviews, err := e.ListReviews(ctx, actorID)
	if err != nil {
		return metrics.Report{}, err
	}
	return metrics.Compute(reviews, e.metricsOptions()), nil
}

// QueueStatistics summarizes queue load for the requesting user's slice.
func (e Engine) QueueStatistics(ctx context.Context, actorID string) (map[domain.Queue]metrics.QueueStats, error) {
	reviews, err := e.ListReviews(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return metrics.QueueStatistics(reviews, e.slaThreshold(), e.now()), nil
}

func (e Engine) metricsOptions() metrics.Options {
	users := map[string]domain.User{}
	for _, u := range e.Store.ListUsers() {
		users[u.ID] = u
	}
	weights := map[domain.TagLevel]float64{}
	if e.Config != nil {
		for _, level := range domain.TagLevels {
			weights[level] = e.Config.WeightFor(level)
		}
	}
	return metrics.Options{
		SLAThreshold: e.slaThreshold(),
		Weights:      weights,
		Users:        users,
		Now:          e.now(),
	}
}

func (e Engine) slaThreshold() time.Duration {
	if e.Config == nil || e.Config.SLA.ResolutionHours <= 0 {
		return 48 * time.Hour
	}
	return time.Duration(e.Config.SLA.ResolutionHours) * time.Hour
}
