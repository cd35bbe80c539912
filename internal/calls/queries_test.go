package calls

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callIDs(rows []Call) []string {
	out := make([]string, 0, len(rows))
	for _, c := range rows {
		out = append(out, c.CallID)
	}
	return out
}

func TestQueries_GetRequiresMembership(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.initiate(t, "x", "y")

	got, err := h.m.Get(ctx, c.CallID, "y")
	require.NoError(t, err)
	assert.Equal(t, c.CallID, got.CallID)

	_, err = h.m.Get(ctx, c.CallID, "z")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = h.m.Get(ctx, "missing", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueries_MissedAndWaiting(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// call-1: y declines, z never answers, x hangs up.
	ended := h.initiate(t, "x", "y", "z")
	_, err := h.m.Decline(ctx, ended.CallID, "y")
	require.NoError(t, err)

	waiting, err := h.m.Waiting(ctx, "z")
	require.NoError(t, err)
	assert.Equal(t, []string{ended.CallID}, callIDs(waiting))
	waiting, err = h.m.Waiting(ctx, "y")
	require.NoError(t, err)
	assert.Empty(t, waiting)

	_, err = h.m.Leave(ctx, ended.CallID, "x")
	require.NoError(t, err)

	// call-2: y is the only invitee and declines.
	h.clock.Advance(time.Minute)
	declined := h.initiate(t, "x", "y")
	_, err = h.m.Decline(ctx, declined.CallID, "y")
	require.NoError(t, err)

	missed, err := h.m.Missed(ctx, "z", Page{})
	require.NoError(t, err)
	assert.Equal(t, []string{ended.CallID}, callIDs(missed))
	assert.Equal(t, ParticipantMissed, statusOf(missed[0], "z"))

	missed, err = h.m.Missed(ctx, "y", Page{})
	require.NoError(t, err)
	assert.Equal(t, []string{declined.CallID}, callIDs(missed), "declining an ended call is not a miss")

	missed, err = h.m.Missed(ctx, "x", Page{})
	require.NoError(t, err)
	assert.Empty(t, missed)

	waiting, err = h.m.Waiting(ctx, "z")
	require.NoError(t, err)
	assert.Empty(t, waiting)
}

func TestQueries_MarkSeen(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	c := h.initiate(t, "x", "y", "z")
	_, err := h.m.Leave(ctx, c.CallID, "x")
	require.NoError(t, err)

	live := func() Call {
		h.clock.Advance(time.Minute)
		return h.initiate(t, "x", "z")
	}()

	updated, err := h.m.MarkSeen(ctx, "z", []string{c.CallID, c.CallID, "missing", live.CallID})
	require.NoError(t, err)
	assert.Equal(t, []string{c.CallID}, updated)

	missed, err := h.m.Missed(ctx, "z", Page{})
	require.NoError(t, err)
	assert.Empty(t, missed)
	got, err := h.m.Get(ctx, c.CallID, "z")
	require.NoError(t, err)
	assert.Equal(t, ParticipantSeen, statusOf(got, "z"))

	updated, err = h.m.MarkSeen(ctx, "z", []string{c.CallID})
	require.NoError(t, err)
	assert.Empty(t, updated, "already acknowledged")

	updated, err = h.m.MarkSeen(ctx, "z", nil)
	require.NoError(t, err)
	assert.Empty(t, updated)

	tooMany := make([]string, maxSeenBatch+1)
	for i := range tooMany {
		tooMany[i] = fmt.Sprintf("c%d", i)
	}
	_, err = h.m.MarkSeen(ctx, "z", tooMany)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestQueries_HistoryPagesNewestFirst(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		c := h.initiate(t, "x", "y")
		_, err := h.m.Leave(ctx, c.CallID, "x")
		require.NoError(t, err)
		h.clock.Advance(time.Second)
	}

	page, err := h.m.History(ctx, "y", Page{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"call-3", "call-2"}, callIDs(page))

	page, err = h.m.History(ctx, "y", Page{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"call-1"}, callIDs(page))
	assert.Equal(t, ParticipantMissed, statusOf(page[0], "y"))

	page, err = h.m.History(ctx, "z", Page{})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestPage_Normalize(t *testing.T) {
	assert.Equal(t, Page{Limit: defaultPageLimit}, Page{}.normalize())
	assert.Equal(t, Page{Limit: maxPageLimit, Offset: 0}, Page{Limit: 1000, Offset: -3}.normalize())
}
