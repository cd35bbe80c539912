package calls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoster_ProjectionKeepsOneEntryPerUser(t *testing.T) {
	c := newCall(StatusActive,
		ev("y", RosterInvited),
		ev("z", RosterInvited),
		ev("y", RosterJoined),
		ev("y", RosterLeft),
		ev("y", RosterInvited),
	)

	require.Len(t, c.Participants, 2)
	assert.Equal(t, "y", c.Participants[0].UserID, "first appearance order is kept")
	assert.Equal(t, ParticipantInvited, c.Participants[0].Status)
	assert.Nil(t, c.Participants[0].LeftAt)
	assert.Len(t, c.History, 5)
	for i, e := range c.History {
		assert.Equal(t, i+1, e.Seq)
	}
}

func TestRoster_NeverTwoCurrentEntriesForOneUser(t *testing.T) {
	c := newCall(StatusActive,
		ev("y", RosterInvited),
		ev("y", RosterJoined),
		ev("y", RosterLeft),
		ev("y", RosterInvited),
		ev("y", RosterJoined),
	)
	current := 0
	for _, p := range c.Participants {
		if p.UserID == "y" && p.Status.IsCurrent() {
			current++
		}
	}
	assert.Equal(t, 1, current)
}

func TestRoster_EffectiveRole(t *testing.T) {
	c := newCall(StatusActive,
		RosterEvent{UserID: "x", Kind: RosterJoined, Role: RoleModerator, At: t0},
		ev("y", RosterJoined),
		ev("z", RosterJoined),
		ev("z", RosterPromoted),
	)
	assert.True(t, c.isModerator("x"))
	assert.False(t, c.isModerator("y"))
	assert.True(t, c.isModerator("z"))

	c.record(ev("x", RosterLeft))
	assert.True(t, c.isModerator("x"), "leaving keeps the role")

	c.record(ev("z", RosterRemoved))
	_, ok := c.effectiveRole("z")
	assert.False(t, ok, "removed users hold no role")
	assert.False(t, c.isModerator("nobody"))
}

func TestRoster_InitiatorIsNotModeratorUntilJoined(t *testing.T) {
	c := newCall(StatusInitiated, ev("y", RosterInvited))
	assert.True(t, c.isMember("x"))
	assert.False(t, c.isModerator("x"))
}

func TestRoster_MuteAndHoldFlags(t *testing.T) {
	c := newCall(StatusActive, ev("y", RosterJoined))
	c.record(RosterEvent{UserID: "y", Kind: RosterMuted, ActorID: "x", At: t0})
	c.record(ev("y", RosterHeld))

	p, _ := c.participant("y")
	assert.True(t, p.Muted)
	assert.Equal(t, "x", p.MutedBy)
	assert.True(t, p.OnHold)

	c.record(ev("y", RosterUnmuted))
	c.record(ev("y", RosterLeft))
	p, _ = c.participant("y")
	assert.False(t, p.Muted)
	assert.False(t, p.OnHold, "leaving clears hold")
}

func TestRoster_DerivedViews(t *testing.T) {
	live := newCall(StatusRinging, ev("y", RosterInvited), ev("z", RosterDeclined))
	assert.True(t, live.IsWaitingFor("y"))
	assert.False(t, live.IsWaitingFor("z"))
	assert.Equal(t, ParticipantInvited, statusOf(live.Resolved(), "y"))

	ended := newCall(StatusEnded, ev("y", RosterInvited), ev("z", RosterDeclined))
	assert.Equal(t, ParticipantMissed, statusOf(ended.Resolved(), "y"))
	assert.True(t, ended.IsMissedFor("y"))
	assert.False(t, ended.IsMissedFor("z"), "declining an ended call is not a miss")
	assert.False(t, ended.IsWaitingFor("y"))
	assert.Equal(t, ParticipantInvited, ended.Participants[0].Status, "resolution never touches the stored roster")

	declined := newCall(StatusDeclined, ev("y", RosterDeclined))
	assert.True(t, declined.IsMissedFor("y"))

	declined.record(ev("y", RosterSeen))
	assert.False(t, declined.IsMissedFor("y"))
}

func TestCall_CloneIsDeep(t *testing.T) {
	c := newCall(StatusActive, ev("y", RosterJoined))
	c.Recording = &Recording{IsRecording: true}
	c.Quality = &Quality{Reports: []QualityReport{{UserID: "y", Audio: 3}}}

	cp := c.Clone()
	cp.Participants[0].Status = ParticipantLeft
	cp.Recording.IsRecording = false
	cp.Quality.Reports[0].Audio = 1

	assert.Equal(t, ParticipantJoined, c.Participants[0].Status)
	assert.True(t, c.Recording.IsRecording)
	assert.Equal(t, 3, c.Quality.Reports[0].Audio)
}
