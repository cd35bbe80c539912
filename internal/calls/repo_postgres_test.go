package calls

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A nil *sql.DB panics on use, so these tests also prove no query is sent.
func TestPostgresRepo_MalformedCallIDIsNotFound(t *testing.T) {
	repo := NewPostgresRepo(nil)
	ctx := context.Background()

	_, err := repo.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.Get(ctx, "1; DROP TABLE calls")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.Update(ctx, Call{CallID: "abc"}, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresRepo_MalformedCallIDSkippedByMarkSeen(t *testing.T) {
	m := NewManager(Deps{Repo: NewPostgresRepo(nil)}, 0)

	updated, err := m.MarkSeen(context.Background(), "z", []string{"abc", "not-a-call"})
	require.NoError(t, err)
	assert.Empty(t, updated)

	_, err = m.Get(context.Background(), "abc", "z")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSchema_CallIDColumnIsText(t *testing.T) {
	assert.Regexp(t, regexp.MustCompile(`call_id\s+TEXT NOT NULL UNIQUE`), Schema[0])
}

func TestBuildQuery_UserScopedByStatus(t *testing.T) {
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	q, args := buildQuery(Filter{
		UserID:       "z",
		UserStatuses: []ParticipantStatus{ParticipantMissed, ParticipantDeclined},
		Statuses:     []Status{StatusEnded},
		From:         from,
		Limit:        20,
		Offset:       40,
	})

	assert.True(t, strings.HasPrefix(q, "SELECT doc, version FROM calls WHERE "))
	assert.Contains(t, q, "status IN ($1)")
	assert.Contains(t, q, "created_at >= $2")
	assert.Contains(t, q, "(doc -> 'participants' @> $3::jsonb OR doc -> 'participants' @> $4::jsonb)")
	assert.True(t, strings.HasSuffix(q, "ORDER BY created_at DESC, id DESC LIMIT $5 OFFSET $6"))
	require.Len(t, args, 6)
	assert.Equal(t, "ended", args[0])
	assert.Equal(t, from, args[1])
	assert.Equal(t, `[{"status":"missed","user_id":"z"}]`, args[2])
	assert.Equal(t, 20, args[4])
	assert.Equal(t, 40, args[5])
}

func TestBuildQuery_NoFilter(t *testing.T) {
	q, args := buildQuery(Filter{})
	assert.Equal(t, "SELECT doc, version FROM calls ORDER BY created_at DESC, id DESC", q)
	assert.Empty(t, args)
}
