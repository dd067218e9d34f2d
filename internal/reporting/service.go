package reporting

import (
	"context"
	"errors"
	"time"

	"negotiation-platform/internal/negotiation"
)

// Lister is the read-only slice of the negotiation registry reporting needs.
// *negotiation.Store satisfies it.
type Lister interface {
	All() []negotiation.Negotiation
}

type Service struct {
	source Lister
	clock  func() time.Time
}

func NewService(source Lister) *Service {
	return &Service{source: source, clock: time.Now}
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	if s.source == nil {
		return Stats{}, errors.New("reporting: source not configured")
	}

	now := s.clock().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	out := Stats{
		ByCategory:  map[string]int{},
		GeneratedAt: now,
	}

	var durationSum, durationCount int
	for _, n := range s.source.All() {
		out.Total++
		out.ByCategory[string(n.Category)]++

		switch n.Status {
		case negotiation.StatusCompleted:
			out.Completed++
			if n.Result != nil && !n.Result.CompletedAt.Before(dayStart) {
				out.CompletedToday++
			}
			if n.DurationSeconds > 0 {
				durationSum += n.DurationSeconds
				durationCount++
			}
		case negotiation.StatusFailed:
			out.Failed++
		default:
			out.Active++
		}
	}

	if durationCount > 0 {
		out.AverageDurationSeconds = durationSum / durationCount
	}
	if terminal := out.Completed + out.Failed; terminal > 0 {
		out.SuccessRate = float64(out.Completed) / float64(terminal)
	}
	return out, nil
}
