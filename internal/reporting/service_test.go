package reporting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telecom-calls/internal/calls"
)

func intPtr(v int) *int { return &v }

func fixtureCalls(now time.Time) []calls.Call {
	started := now.Add(time.Minute)
	return []calls.Call{
		{
			CallID: "c1", InitiatorID: "a", Type: calls.CallTypeAudio, Status: calls.StatusEnded,
			CreatedAt: now, StartedAt: &started, Duration: intPtr(120),
			Participants: []calls.Participant{
				{UserID: "a", Role: calls.RoleModerator, Status: calls.ParticipantLeft},
				{UserID: "b", Role: calls.RoleMember, Status: calls.ParticipantLeft},
				{UserID: "c", Role: calls.RoleMember, Status: calls.ParticipantInvited},
			},
			Recording: &calls.Recording{RecordingID: "r1"},
			Quality:   &calls.Quality{Reports: []calls.QualityReport{{UserID: "b", Audio: 4}}, AudioAvg: 4},
		},
		{
			CallID: "c2", InitiatorID: "a", Type: calls.CallTypeVideo, Status: calls.StatusDeclined,
			CreatedAt: now.Add(24 * time.Hour),
			Participants: []calls.Participant{
				{UserID: "b", Role: calls.RoleMember, Status: calls.ParticipantDeclined},
			},
		},
		{
			CallID: "c3", InitiatorID: "b", Type: calls.CallTypeAudio, Status: calls.StatusRinging,
			CreatedAt: now.Add(24 * time.Hour),
			Participants: []calls.Participant{
				{UserID: "a", Role: calls.RoleMember, Status: calls.ParticipantInvited},
			},
		},
		{
			CallID: "old", InitiatorID: "a", Type: calls.CallTypeAudio, Status: calls.StatusEnded,
			CreatedAt: now.Add(-48 * time.Hour),
		},
	}
}

func TestReporting_CallStatsAggregates(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	repo := NewMemoryRepo()
	repo.Calls = fixtureCalls(now)
	svc := NewService(repo)

	out, err := svc.CallStats(context.Background(), CallStatsRequest{Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(48 * time.Hour)}})
	require.NoError(t, err)

	assert.Equal(t, 3, out.TotalCalls)
	assert.Equal(t, 2, out.AudioCalls)
	assert.Equal(t, 1, out.VideoCalls)
	assert.Equal(t, 1, out.LiveCalls)
	assert.Equal(t, 1, out.EndedCalls)
	assert.Equal(t, 1, out.DeclinedCalls)
	assert.Equal(t, 1, out.AnsweredCalls)
	assert.Equal(t, 1, out.MissedCalls)
	assert.InDelta(t, 0.5, out.CompletionRate, 0.0001)
	assert.InDelta(t, 0.5, out.MissedRate, 0.0001)
	assert.Equal(t, 120, out.AverageDurationSeconds)
	assert.Equal(t, 1, out.RecordedCalls)
	assert.Equal(t, 1, out.Quality.RatedCalls)
	assert.InDelta(t, 4.0, out.Quality.AudioAvg, 0.0001)

	require.Len(t, out.Timeline, 2)
	assert.Equal(t, "2024-03-01", out.Timeline[0].Day)
	assert.Equal(t, 1, out.Timeline[0].Answered)
	assert.Equal(t, "2024-03-02", out.Timeline[1].Day)
	assert.Equal(t, 2, out.Timeline[1].Total)
}

func TestReporting_CallStatsScopedToUser(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	repo := NewMemoryRepo()
	repo.Calls = fixtureCalls(now)
	svc := NewService(repo)

	out, err := svc.CallStats(context.Background(), CallStatsRequest{UserID: "c", Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(48 * time.Hour)}})
	require.NoError(t, err)
	assert.Equal(t, 1, out.TotalCalls)
	assert.Equal(t, 1, out.MissedCalls, "invitee of an ended call counts as missed")

	out, err = svc.CallStats(context.Background(), CallStatsRequest{UserID: "b", Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(48 * time.Hour)}})
	require.NoError(t, err)
	assert.Equal(t, 3, out.TotalCalls)
	assert.Equal(t, 1, out.MissedCalls, "declined call counts as missed for the decliner")
}

func TestReporting_CallStatsRejectsBadRange(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	now := time.Now()

	_, err := svc.CallStats(context.Background(), CallStatsRequest{Range: TimeRange{From: now, To: now}})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.CallStats(context.Background(), CallStatsRequest{Range: TimeRange{From: now.Add(-400 * 24 * time.Hour), To: now}})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestReporting_CallsRepoReadsFromCallStore(t *testing.T) {
	store := calls.NewMemoryRepo()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	_, err := store.Create(context.Background(), calls.Call{
		CallID: "c1", ConversationID: "conv", InitiatorID: "a", Type: calls.CallTypeAudio,
		Status: calls.StatusInitiated, CreatedAt: now,
	})
	require.NoError(t, err)

	svc := NewService(NewCallsRepo(store))
	out, err := svc.CallStats(context.Background(), CallStatsRequest{UserID: "a", Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}})
	require.NoError(t, err)
	assert.Equal(t, 1, out.TotalCalls)
	assert.Equal(t, 1, out.LiveCalls)
}
