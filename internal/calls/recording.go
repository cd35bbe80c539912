package calls

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StartRecording marks the call as recording. The media side is handled by the transport.
func (m *Manager) StartRecording(ctx context.Context, callID, actorID string) (Call, error) {
	return m.mutate(ctx, callID, false, func(ctx context.Context, c *Call, now time.Time) ([]Transition, error) {
		if c.Status != StatusActive {
			return nil, fmt.Errorf("%w: recording requires an active call", ErrInvalidTransition)
		}
		if p, ok := c.participant(actorID); !ok || p.Status != ParticipantJoined {
			return nil, ErrUnauthorized
		}
		if c.Recording != nil && c.Recording.IsRecording {
			return nil, fmt.Errorf("%w: recording already active", ErrInvalidTransition)
		}
		c.Recording = &Recording{
			IsRecording: true,
			RecordingID: uuid.NewString(),
			StartedBy:   actorID,
			StartedAt:   now,
		}
		return []Transition{transition(EventRecordingStarted, actorID).with("recording_id", c.Recording.RecordingID)}, nil
	})
}

func (m *Manager) StopRecording(ctx context.Context, callID, actorID string) (Call, error) {
	return m.mutate(ctx, callID, false, func(ctx context.Context, c *Call, now time.Time) ([]Transition, error) {
		if c.Recording == nil || !c.Recording.IsRecording {
			return nil, fmt.Errorf("%w: no active recording", ErrInvalidTransition)
		}
		if p, ok := c.participant(actorID); !ok || p.Status != ParticipantJoined {
			return nil, ErrUnauthorized
		}
		r := c.Recording
		r.IsRecording = false
		r.StoppedBy = actorID
		r.StoppedAt = &now
		r.Duration = int(now.Sub(r.StartedAt) / time.Second)
		return []Transition{
			transition(EventRecordingStopped, actorID).with("recording_id", r.RecordingID).with("duration", r.Duration),
		}, nil
	})
}

// QualityScores is one user's call quality report. Scores are 1..5; zero means not reported.
type QualityScores struct {
	Audio      int    `json:"audio"`
	Video      int    `json:"video"`
	Connection int    `json:"connection"`
	Feedback   string `json:"feedback"`
}

const maxFeedbackLen = 1000

func (s QualityScores) validate() error {
	for _, v := range []int{s.Audio, s.Video, s.Connection} {
		if v < 0 || v > 5 {
			return fmt.Errorf("%w: scores must be between 1 and 5", ErrInvalidArgument)
		}
	}
	if s.Audio == 0 && s.Video == 0 && s.Connection == 0 {
		return fmt.Errorf("%w: at least one score required", ErrInvalidArgument)
	}
	if len(s.Feedback) > maxFeedbackLen {
		return fmt.Errorf("%w: feedback too long", ErrInvalidArgument)
	}
	return nil
}

// ReportQuality stores actorID's report, replacing any earlier one, and recomputes averages.
// Reports are accepted in any call status.
func (m *Manager) ReportQuality(ctx context.Context, callID, actorID string, s QualityScores) (Call, error) {
	if err := s.validate(); err != nil {
		return Call{}, err
	}
	s.Feedback = strings.TrimSpace(s.Feedback)
	return m.mutate(ctx, callID, true, func(ctx context.Context, c *Call, now time.Time) ([]Transition, error) {
		if !c.isMember(actorID) {
			return nil, ErrUnauthorized
		}
		if c.Quality == nil {
			c.Quality = &Quality{}
		}
		report := QualityReport{
			UserID:     actorID,
			Audio:      s.Audio,
			Video:      s.Video,
			Connection: s.Connection,
			Feedback:   s.Feedback,
			ReportedAt: now,
		}
		replaced := false
		for i, r := range c.Quality.Reports {
			if r.UserID == actorID {
				c.Quality.Reports[i] = report
				replaced = true
			}
		}
		if !replaced {
			c.Quality.Reports = append(c.Quality.Reports, report)
		}
		c.Quality.recompute()
		return nil, nil
	})
}

func (q *Quality) recompute() {
	var audio, video, conn []int
	for _, r := range q.Reports {
		if r.Audio > 0 {
			audio = append(audio, r.Audio)
		}
		if r.Video > 0 {
			video = append(video, r.Video)
		}
		if r.Connection > 0 {
			conn = append(conn, r.Connection)
		}
	}
	q.AudioAvg = average(audio)
	q.VideoAvg = average(video)
	q.ConnectionAvg = average(conn)
}

func average(v []int) float64 {
	if len(v) == 0 {
		return 0
	}
	sum := 0
	for _, n := range v {
		sum += n
	}
	return float64(sum) / float64(len(v))
}
