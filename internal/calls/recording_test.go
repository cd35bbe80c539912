package calls

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecording_StartStop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ringing := h.initiate(t, "x", "y")
	_, err := h.m.StartRecording(ctx, ringing.CallID, "x")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = h.m.Join(ctx, ringing.CallID, "y")
	require.NoError(t, err)

	_, err = h.m.StopRecording(ctx, ringing.CallID, "y")
	assert.ErrorIs(t, err, ErrInvalidTransition, "nothing recording")
	_, err = h.m.StartRecording(ctx, ringing.CallID, "x")
	assert.ErrorIs(t, err, ErrUnauthorized, "x has not joined")

	c, err := h.m.StartRecording(ctx, ringing.CallID, "y")
	require.NoError(t, err)
	require.NotNil(t, c.Recording)
	assert.True(t, c.Recording.IsRecording)
	assert.NotEmpty(t, c.Recording.RecordingID)
	assert.Equal(t, "y", c.Recording.StartedBy)

	_, err = h.m.StartRecording(ctx, c.CallID, "y")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	h.clock.Advance(30 * time.Second)
	c, err = h.m.StopRecording(ctx, c.CallID, "y")
	require.NoError(t, err)
	assert.False(t, c.Recording.IsRecording)
	assert.Equal(t, 30, c.Recording.Duration)
	assert.Equal(t, "y", c.Recording.StoppedBy)
	assert.Equal(t, EventRecordingStopped, h.notifier.last().Event)

	_, err = h.m.StopRecording(ctx, c.CallID, "y")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestQuality_Validation(t *testing.T) {
	h := newHarness(t)
	c := h.activeCall(t)
	ctx := context.Background()

	for _, s := range []QualityScores{
		{},
		{Audio: 6},
		{Audio: -1},
		{Connection: 3, Feedback: string(make([]byte, maxFeedbackLen+1))},
	} {
		_, err := h.m.ReportQuality(ctx, c.CallID, "y", s)
		assert.ErrorIs(t, err, ErrInvalidArgument, "%+v", s)
	}

	_, err := h.m.ReportQuality(ctx, c.CallID, "outsider", QualityScores{Audio: 3})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestQuality_AveragesAndReplacement(t *testing.T) {
	h := newHarness(t)
	c := h.activeCall(t)
	ctx := context.Background()

	_, err := h.m.ReportQuality(ctx, c.CallID, "y", QualityScores{Audio: 4, Feedback: "  echo  "})
	require.NoError(t, err)
	c, err = h.m.ReportQuality(ctx, c.CallID, "x", QualityScores{Audio: 2, Video: 5})
	require.NoError(t, err)

	require.NotNil(t, c.Quality)
	assert.InDelta(t, 3.0, c.Quality.AudioAvg, 0.0001)
	assert.InDelta(t, 5.0, c.Quality.VideoAvg, 0.0001)
	assert.Zero(t, c.Quality.ConnectionAvg)
	assert.Equal(t, "echo", c.Quality.Reports[0].Feedback)

	_, err = h.m.Leave(ctx, c.CallID, "x")
	require.NoError(t, err)
	h.notifier.reset()

	c, err = h.m.ReportQuality(ctx, c.CallID, "y", QualityScores{Audio: 5})
	require.NoError(t, err, "reports are accepted after the call ended")
	assert.Len(t, c.Quality.Reports, 2)
	assert.InDelta(t, 3.5, c.Quality.AudioAvg, 0.0001)
	assert.Empty(t, h.notifier.events(), "quality reports publish nothing")
}
