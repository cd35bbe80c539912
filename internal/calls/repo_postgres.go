package calls

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"telecom-calls/pkg/utils"
)

// Schema creates the calls table.
//
// The full document lives in doc (JSONB); the scalar columns are copies used for indexing.
// calls_one_live_per_conversation makes concurrent initiates converge on one live call.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS calls (
  id              BIGSERIAL PRIMARY KEY,
  call_id         TEXT NOT NULL UNIQUE,
  conversation_id TEXT NOT NULL,
  initiator_id    TEXT NOT NULL,
  status          TEXT NOT NULL,
  doc             JSONB NOT NULL,
  version         BIGINT NOT NULL,
  created_at      TIMESTAMPTZ NOT NULL,
  updated_at      TIMESTAMPTZ NOT NULL
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS calls_one_live_per_conversation
  ON calls (conversation_id) WHERE status IN ('initiated', 'ringing', 'active')`,
	`CREATE INDEX IF NOT EXISTS calls_created_at_idx ON calls (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS calls_participants_idx ON calls USING GIN ((doc -> 'participants') jsonb_path_ops)`,
}

const liveConstraint = "calls_one_live_per_conversation"

// PostgresRepo stores call documents in Postgres via database/sql (pgx stdlib driver).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Create(ctx context.Context, c Call) (Call, error) {
	c.Version = 1
	c.UpdatedAt = c.CreatedAt
	doc, err := json.Marshal(c)
	if err != nil {
		return Call{}, err
	}
	const q = `
INSERT INTO calls (call_id, conversation_id, initiator_id, status, doc, version, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`
	_, err = r.db.ExecContext(ctx, q,
		c.CallID,
		c.ConversationID,
		c.InitiatorID,
		string(c.Status),
		doc,
		c.Version,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if utils.IsUniqueViolation(err, liveConstraint) {
			return Call{}, ErrLiveCallExists
		}
		return Call{}, fmt.Errorf("%w: insert call: %v", ErrUnavailable, err)
	}
	return c, nil
}

// Call ids are minted as UUIDs, so anything else taken from a URL cannot name a stored call.
func mintedCallID(callID string) bool { return uuid.Validate(callID) == nil }

func (r *PostgresRepo) Get(ctx context.Context, callID string) (Call, error) {
	if !mintedCallID(callID) {
		return Call{}, ErrNotFound
	}
	const q = `SELECT doc, version FROM calls WHERE call_id = $1`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, callID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, fmt.Errorf("%w: get call: %v", ErrUnavailable, err)
	}
	return c, nil
}

// Update writes c only if the stored version still equals expectedVersion.
// The existence check runs in the same transaction so NotFound and Conflict are told apart reliably.
func (r *PostgresRepo) Update(ctx context.Context, c Call, expectedVersion int64) (Call, error) {
	if !mintedCallID(c.CallID) {
		return Call{}, ErrNotFound
	}
	c.Version = expectedVersion + 1
	doc, err := json.Marshal(c)
	if err != nil {
		return Call{}, err
	}

	err = utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		const q = `
UPDATE calls
SET status = $1, initiator_id = $2, doc = $3, version = $4, updated_at = $5
WHERE call_id = $6 AND version = $7
`
		res, err := tx.ExecContext(ctx, q,
			string(c.Status),
			c.InitiatorID,
			doc,
			c.Version,
			c.UpdatedAt,
			c.CallID,
			expectedVersion,
		)
		if err != nil {
			return fmt.Errorf("%w: update call: %v", ErrUnavailable, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: update call: %v", ErrUnavailable, err)
		}
		if n == 1 {
			return nil
		}

		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM calls WHERE call_id = $1)`, c.CallID).Scan(&exists); err != nil {
			return fmt.Errorf("%w: check call: %v", ErrUnavailable, err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	})
	if err != nil {
		return Call{}, err
	}
	return c, nil
}

func (r *PostgresRepo) FindLiveByConversation(ctx context.Context, conversationID string) (Call, bool, error) {
	const q = `
SELECT doc, version FROM calls
WHERE conversation_id = $1 AND status IN ('initiated', 'ringing', 'active')
LIMIT 1
`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, conversationID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, false, nil
		}
		return Call{}, false, fmt.Errorf("%w: find live call: %v", ErrUnavailable, err)
	}
	return c, true, nil
}

func (r *PostgresRepo) Query(ctx context.Context, f Filter) ([]Call, error) {
	q, args := buildQuery(f)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query calls: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	out := make([]Call, 0)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan call: %v", ErrUnavailable, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: query calls: %v", ErrUnavailable, err)
	}
	return out, nil
}

// buildQuery translates a Filter into SQL. Roster predicates use JSONB containment on doc->'participants'.
func buildQuery(f Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.ConversationID != "" {
		where = append(where, "conversation_id = "+arg(f.ConversationID))
	}
	if len(f.Statuses) > 0 {
		ph := make([]string, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			ph = append(ph, arg(string(s)))
		}
		where = append(where, "status IN ("+strings.Join(ph, ", ")+")")
	}
	if !f.From.IsZero() {
		where = append(where, "created_at >= "+arg(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "created_at < "+arg(f.To))
	}
	if f.UserID != "" {
		if len(f.UserStatuses) == 0 {
			member, _ := json.Marshal([]map[string]string{{"user_id": f.UserID}})
			where = append(where, fmt.Sprintf("(initiator_id = %s OR doc -> 'participants' @> %s::jsonb)", arg(f.UserID), arg(string(member))))
		} else {
			ors := make([]string, 0, len(f.UserStatuses))
			for _, s := range f.UserStatuses {
				entry, _ := json.Marshal([]map[string]string{{"user_id": f.UserID, "status": string(s)}})
				ors = append(ors, "doc -> 'participants' @> "+arg(string(entry))+"::jsonb")
			}
			where = append(where, "("+strings.Join(ors, " OR ")+")")
		}
	}

	var b strings.Builder
	b.WriteString("SELECT doc, version FROM calls")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC, id DESC")
	if f.Limit > 0 {
		b.WriteString(" LIMIT " + arg(f.Limit))
	}
	if f.Offset > 0 {
		b.WriteString(" OFFSET " + arg(f.Offset))
	}
	return b.String(), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (Call, error) {
	var (
		doc     []byte
		version int64
	)
	if err := row.Scan(&doc, &version); err != nil {
		return Call{}, err
	}
	var c Call
	if err := json.Unmarshal(doc, &c); err != nil {
		return Call{}, err
	}
	c.Version = version
	return c, nil
}
