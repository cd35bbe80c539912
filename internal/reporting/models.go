package reporting

import "time"

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CallStatsRequest requests aggregated call metrics over [From, To).
// UserID is optional; when set only calls the user initiated or was on the roster of are counted.
type CallStatsRequest struct {
	UserID string    `json:"user_id,omitempty"`
	Range  TimeRange `json:"range"`
}

type CallStats struct {
	UserID string    `json:"user_id,omitempty"`
	Range  TimeRange `json:"range"`

	TotalCalls    int `json:"total_calls"`
	AudioCalls    int `json:"audio_calls"`
	VideoCalls    int `json:"video_calls"`
	LiveCalls     int `json:"live_calls"`
	EndedCalls    int `json:"ended_calls"`
	DeclinedCalls int `json:"declined_calls"`

	// AnsweredCalls counts ended calls that reached active (StartedAt set).
	AnsweredCalls int `json:"answered_calls"`
	// MissedCalls counts, for a user scope, calls that are missed for that user.
	// Without a user scope it counts terminal calls nobody answered.
	MissedCalls int `json:"missed_calls"`

	CompletionRate float64 `json:"completion_rate"`
	MissedRate     float64 `json:"missed_rate"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	RecordedCalls int `json:"recorded_calls"`

	Quality QualitySummary `json:"quality"`

	Timeline []DayBucket `json:"timeline"`
}

// QualitySummary averages per-call quality averages across calls that carry reports.
type QualitySummary struct {
	RatedCalls    int     `json:"rated_calls"`
	AudioAvg      float64 `json:"audio_avg"`
	VideoAvg      float64 `json:"video_avg"`
	ConnectionAvg float64 `json:"connection_avg"`
}

type DayBucket struct {
	Day      string `json:"day"` // YYYY-MM-DD, UTC
	Total    int    `json:"total"`
	Answered int    `json:"answered"`
	Missed   int    `json:"missed"`
}
