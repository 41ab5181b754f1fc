// Package metrics derives reporting figures from review snapshots. Pure and
// read-only: every call recomputes from the slice it is given, which the
// caller has already scoped to the requesting role.
package metrics

import (
	"time"

	"vigia/internal/domain"
)

// Options parameterize a report computation.
type Options struct {
	// SLAThreshold is the time-to-resolution bound a completed review must
	// beat to count as compliant.
	SLAThreshold time.Duration
	// Weights turn the tag distribution into an adherence score.
	Weights map[domain.TagLevel]float64
	// Users resolves owner ids to teams for breakdowns.
	Users map[string]domain.User
	Now   time.Time
}

// Breakdown is the per-team / per-owner slice of a report.
type Breakdown struct {
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	SLACompliant   int     `json:"sla_compliant"`
	CompletionRate float64 `json:"completion_rate"`
	SLARate        float64 `json:"sla_rate"`
}

// Report is the derived view of a review collection.
type Report struct {
	Total           int                       `json:"total"`
	Completed       int                       `json:"completed"`
	CompletionRate  float64                   `json:"completion_rate"`
	SLACompliant    int                       `json:"sla_compliant"`
	SLARate         float64                   `json:"sla_rate"`
	TagDistribution map[domain.TagLevel]int   `json:"tag_distribution"`
	AdherenceScore  float64                   `json:"adherence_score"`
	PrideCases      int                       `json:"pride_cases"`
	PrideRatio      float64                   `json:"pride_ratio"`
	ByTeam          map[domain.Team]Breakdown `json:"by_team,omitempty"`
	ByOwner         map[string]Breakdown      `json:"by_owner,omitempty"`
}

// QueueStats summarizes one queue for the workflow board.
type QueueStats struct {
	Count          int                     `json:"count"`
	AvgWaitMinutes float64                 `json:"avg_wait_minutes"`
	Overdue        int                     `json:"overdue"`
	Tags           map[domain.TagLevel]int `json:"tags"`
}

// Compute derives a report from the given reviews.
func Compute(reviews []*domain.Review, opts Options) Report {
	rep := Report{
		TagDistribution: map[domain.TagLevel]int{},
		ByTeam:          map[domain.Team]Breakdown{},
		ByOwner:         map[string]Breakdown{},
	}
	var weightSum float64
	var tagged int
	for _, r := range reviews {
		rep.Total++
		completed := r.Status == domain.StatusCompleted
		compliant := completed && slaCompliant(r, opts.SLAThreshold)
		if completed {
			rep.Completed++
		}
		if compliant {
			rep.SLACompliant++
		}
		if level, ok := r.TagLevel(); ok {
			rep.TagDistribution[level]++
			weightSum += opts.Weights[level]
			tagged++
		}
		if r.PrideCase {
			rep.PrideCases++
		}
		team := domain.Team("")
		if u, ok := opts.Users[r.OwnerID]; ok {
			team = u.Team
		}
		rep.ByTeam[team] = accumulate(rep.ByTeam[team], completed, compliant)
		rep.ByOwner[r.OwnerID] = accumulate(rep.ByOwner[r.OwnerID], completed, compliant)
	}
	if rep.Total > 0 {
		rep.CompletionRate = float64(rep.Completed) / float64(rep.Total)
		rep.PrideRatio = float64(rep.PrideCases) / float64(rep.Total)
	}
	if rep.Completed > 0 {
		rep.SLARate = float64(rep.SLACompliant) / float64(rep.Completed)
	}
	if tagged > 0 {
		rep.AdherenceScore = weightSum / float64(tagged)
	}
	for k, b := range rep.ByTeam {
		rep.ByTeam[k] = finalize(b)
	}
	for k, b := range rep.ByOwner {
		rep.ByOwner[k] = finalize(b)
	}
	return rep
}

// QueueStatistics summarizes wait and load per queue. A review is overdue
// when it is not terminal and has sat in its queue past the SLA threshold.
func QueueStatistics(reviews []*domain.Review, slaThreshold time.Duration, now time.Time) map[domain.Queue]QueueStats {
	stats := map[domain.Queue]QueueStats{}
	waits := map[domain.Queue]time.Duration{}
	for _, r := range reviews {
		s := stats[r.Queue]
		if s.Tags == nil {
			s.Tags = map[domain.TagLevel]int{}
		}
		s.Count++
		wait := now.Sub(arrivedAt(r))
		waits[r.Queue] += wait
		if !r.Status.Terminal() && wait > slaThreshold {
			s.Overdue++
		}
		if level, ok := r.TagLevel(); ok {
			s.Tags[level]++
		}
		stats[r.Queue] = s
	}
	for q, s := range stats {
		if s.Count > 0 {
			s.AvgWaitMinutes = waits[q].Minutes() / float64(s.Count)
		}
		stats[q] = s
	}
	return stats
}

func slaCompliant(r *domain.Review, threshold time.Duration) bool {
	return r.UpdatedAt.Sub(r.CreatedAt) <= threshold
}

func arrivedAt(r *domain.Review) time.Time {
	if n := len(r.Transitions); n > 0 {
		return r.Transitions[n-1].Timestamp
	}
	return r.CreatedAt
}

func accumulate(b Breakdown, completed, compliant bool) Breakdown {
	b.Total++
	if completed {
		b.Completed++
	}
	if compliant {
		b.SLACompliant++
	}
	return b
}

func finalize(b Breakdown) Breakdown {
	if b.Total > 0 {
		b.CompletionRate = float64(b.Completed) / float64(b.Total)
	}
	if b.Completed > 0 {
		b.SLARate = float64(b.SLACompliant) / float64(b.Completed)
	}
	return b
}
