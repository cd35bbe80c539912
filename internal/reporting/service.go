package reporting

import (
	"context"
	"errors"
	"sort"
	"time"

	"telecom-calls/internal/calls"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// maxRange bounds a single stats request.
const maxRange = 366 * 24 * time.Hour

// Repository abstracts data access for reporting.
// Implementations return calls created in [from, to), optionally scoped to userID.
type Repository interface {
	ListCalls(ctx context.Context, from, to time.Time, userID string) ([]calls.Call, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) CallStats(ctx context.Context, req CallStatsRequest) (CallStats, error) {
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return CallStats{}, ErrInvalidRequest
	}
	if req.Range.To.Sub(req.Range.From) > maxRange {
		return CallStats{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CallStats{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListCalls(ctx, req.Range.From, req.Range.To, req.UserID)
	if err != nil {
		return CallStats{}, err
	}

	out := CallStats{UserID: req.UserID, Range: req.Range}
	days := map[string]*DayBucket{}
	var (
		audioSum, videoSum, connSum float64
		audioN, videoN, connN       int
	)

	for _, c := range rows {
		out.TotalCalls++
		switch c.Type {
		case calls.CallTypeVideo:
			out.VideoCalls++
		default:
			out.AudioCalls++
		}

		answered := c.StartedAt != nil
		missed := isMissed(c, req.UserID)

		switch {
		case c.Status.IsLive():
			out.LiveCalls++
		case c.Status == calls.StatusEnded:
			out.EndedCalls++
		case c.Status == calls.StatusDeclined:
			out.DeclinedCalls++
		}
		if answered && c.Status == calls.StatusEnded {
			out.AnsweredCalls++
		}
		if missed {
			out.MissedCalls++
		}
		if c.Duration != nil {
			out.TotalDurationSeconds += *c.Duration
		}
		if c.Recording != nil && c.Recording.RecordingID != "" {
			out.RecordedCalls++
		}
		if q := c.Quality; q != nil && len(q.Reports) > 0 {
			out.Quality.RatedCalls++
			if q.AudioAvg > 0 {
				audioSum += q.AudioAvg
				audioN++
			}
			if q.VideoAvg > 0 {
				videoSum += q.VideoAvg
				videoN++
			}
			if q.ConnectionAvg > 0 {
				connSum += q.ConnectionAvg
				connN++
			}
		}

		day := c.CreatedAt.UTC().Format(time.DateOnly)
		b, ok := days[day]
		if !ok {
			b = &DayBucket{Day: day}
			days[day] = b
		}
		b.Total++
		if answered {
			b.Answered++
		}
		if missed {
			b.Missed++
		}
	}

	terminal := out.EndedCalls + out.DeclinedCalls
	if terminal > 0 {
		out.CompletionRate = float64(out.AnsweredCalls) / float64(terminal)
		out.MissedRate = float64(out.MissedCalls) / float64(terminal)
	}
	if out.AnsweredCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.AnsweredCalls
	}
	out.Quality.AudioAvg = avg(audioSum, audioN)
	out.Quality.VideoAvg = avg(videoSum, videoN)
	out.Quality.ConnectionAvg = avg(connSum, connN)

	out.Timeline = make([]DayBucket, 0, len(days))
	for _, b := range days {
		out.Timeline = append(out.Timeline, *b)
	}
	sort.Slice(out.Timeline, func(i, j int) bool { return out.Timeline[i].Day < out.Timeline[j].Day })
	return out, nil
}

func isMissed(c calls.Call, userID string) bool {
	if userID != "" {
		return c.IsMissedFor(userID)
	}
	return c.Status.IsTerminal() && c.StartedAt == nil
}

func avg(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
