package calls

import "time"

// Call is one audio/video call session.
//
// Identity invariant: CallID is generated at creation and never reused.
// It is distinct from any storage primary key.
//
// Roster invariant: Participants is the projection of History (latest state per user).
// Never mutate Participants directly; append a RosterEvent and re-project.
//
// Concurrency invariant: Version increases by exactly one on every successful write
// and is the compare-and-swap token for Repository.Update.
type Call struct {
	CallID         string   `json:"call_id" db:"call_id"`
	ConversationID string   `json:"conversation_id" db:"conversation_id"`
	InitiatorID    string   `json:"initiator_id" db:"initiator_id"`
	Type           CallType `json:"type" db:"type"`
	Status         Status   `json:"status" db:"status"`

	Participants []Participant `json:"participants"`
	History      []RosterEvent `json:"history,omitempty"`

	Locked          bool `json:"locked"`
	InitiatorOnHold bool `json:"initiator_on_hold"`

	Transfer  *Transfer  `json:"transfer,omitempty"`
	Recording *Recording `json:"recording,omitempty"`
	Quality   *Quality   `json:"quality,omitempty"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`

	// Duration is in seconds. Set once, at the ended transition.
	Duration *int `json:"duration,omitempty" db:"duration"`

	Version   int64     `json:"version" db:"version"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CallType string

const (
	CallTypeAudio CallType = "audio"
	CallTypeVideo CallType = "video"
)

func (t CallType) Valid() bool {
	return t == CallTypeAudio || t == CallTypeVideo
}

type Status string

const (
	StatusInitiated Status = "initiated"
	StatusRinging   Status = "ringing"
	StatusActive    Status = "active"
	StatusEnded     Status = "ended"
	StatusDeclined  Status = "declined"
)

// IsLive reports whether the call can still change lifecycle state.
func (s Status) IsLive() bool {
	return s == StatusInitiated || s == StatusRinging || s == StatusActive
}

// IsTerminal reports whether the call is ended or declined. Terminal calls are never reopened.
func (s Status) IsTerminal() bool {
	return s == StatusEnded || s == StatusDeclined
}

// Participant is one user's current relationship to a call.
type Participant struct {
	UserID string            `json:"user_id"`
	Role   Role              `json:"role"`
	Status ParticipantStatus `json:"status"`

	JoinedAt *time.Time `json:"joined_at,omitempty"`
	LeftAt   *time.Time `json:"left_at,omitempty"`

	Muted   bool       `json:"muted"`
	MutedAt *time.Time `json:"muted_at,omitempty"`
	MutedBy string     `json:"muted_by,omitempty"`

	OnHold bool       `json:"on_hold"`
	HoldAt *time.Time `json:"hold_at,omitempty"`
}

type Role string

const (
	RoleMember    Role = "member"
	RoleModerator Role = "moderator"
)

type ParticipantStatus string

const (
	ParticipantInvited  ParticipantStatus = "invited"
	ParticipantJoined   ParticipantStatus = "joined"
	ParticipantLeft     ParticipantStatus = "left"
	ParticipantDeclined ParticipantStatus = "declined"
	ParticipantRemoved  ParticipantStatus = "removed"
	ParticipantSeen     ParticipantStatus = "seen"

	// ParticipantMissed is derived at read time for invitees of a terminal call. It is never stored.
	ParticipantMissed ParticipantStatus = "missed"
)

// IsCurrent reports whether the participant currently belongs to the call (ringing or connected).
func (s ParticipantStatus) IsCurrent() bool {
	return s == ParticipantInvited || s == ParticipantJoined
}

// Transfer is the two-step hand-over of an active call to another user.
type Transfer struct {
	TransferredBy string         `json:"transferred_by"`
	TransferredTo string         `json:"transferred_to"`
	Status        TransferStatus `json:"status"`
	RequestedAt   time.Time      `json:"requested_at"`
	RespondedAt   *time.Time     `json:"responded_at,omitempty"`
}

type TransferStatus string

const (
	TransferPending  TransferStatus = "pending"
	TransferAccepted TransferStatus = "accepted"
	TransferDeclined TransferStatus = "declined"
)

// Recording tracks server-side recording state. The media itself lives with the
// external media transport; RecordingID is an opaque reference to it.
type Recording struct {
	IsRecording bool       `json:"is_recording"`
	RecordingID string     `json:"recording_id"`
	StartedBy   string     `json:"started_by"`
	StartedAt   time.Time  `json:"started_at"`
	StoppedBy   string     `json:"stopped_by,omitempty"`
	StoppedAt   *time.Time `json:"stopped_at,omitempty"`
	Duration    int        `json:"duration"`
}

// Quality aggregates per-user quality reports.
type Quality struct {
	Reports       []QualityReport `json:"reports"`
	AudioAvg      float64         `json:"audio_avg"`
	VideoAvg      float64         `json:"video_avg"`
	ConnectionAvg float64         `json:"connection_avg"`
}

// QualityReport holds scores in the 1..5 range. Zero means "not reported".
type QualityReport struct {
	UserID     string    `json:"user_id"`
	Audio      int       `json:"audio,omitempty"`
	Video      int       `json:"video,omitempty"`
	Connection int       `json:"connection,omitempty"`
	Feedback   string    `json:"feedback,omitempty"`
	ReportedAt time.Time `json:"reported_at"`
}

// Clone returns a deep copy so a loaded call can be mutated without touching
// the caller's (or the store's) copy.
func (c Call) Clone() Call {
	out := c
	out.Participants = append([]Participant(nil), c.Participants...)
	out.History = append([]RosterEvent(nil), c.History...)
	if c.Transfer != nil {
		t := *c.Transfer
		out.Transfer = &t
	}
	if c.Recording != nil {
		r := *c.Recording
		out.Recording = &r
	}
	if c.Quality != nil {
		q := *c.Quality
		q.Reports = append([]QualityReport(nil), c.Quality.Reports...)
		out.Quality = &q
	}
	return out
}
