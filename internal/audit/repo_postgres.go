package audit

import (
	"context"
	"database/sql"
)

var Schema = []string{
	`CREATE TABLE IF NOT EXISTS call_audit_events (
  id              UUID PRIMARY KEY,
  call_id         TEXT NOT NULL,
  conversation_id TEXT NOT NULL DEFAULT '',
  type            TEXT NOT NULL,
  actor_user_id   TEXT NOT NULL,
  target_user_id  TEXT NOT NULL DEFAULT '',
  metadata        TEXT NOT NULL DEFAULT '',
  created_at      TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS call_audit_events_call_idx ON call_audit_events (call_id, created_at)`,
}

// PostgresRepo appends audit events to call_audit_events.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO call_audit_events (
  id, call_id, conversation_id, type, actor_user_id, target_user_id, metadata, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8
)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.CallID,
		e.ConversationID,
		string(e.Type),
		e.ActorUserID,
		e.TargetUserID,
		e.Metadata,
		e.CreatedAt,
	)
	return err
}

func (r *PostgresRepo) ListByCall(ctx context.Context, callID string) ([]Event, error) {
	const q = `
SELECT id, call_id, conversation_id, type, actor_user_id, target_user_id, metadata, created_at
FROM call_audit_events
WHERE call_id = $1
ORDER BY created_at
`
	rows, err := r.db.QueryContext(ctx, q, callID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Event, 0)
	for rows.Next() {
		var e Event
		if err := rows.Scan(
			&e.ID,
			&e.CallID,
			&e.ConversationID,
			&e.Type,
			&e.ActorUserID,
			&e.TargetUserID,
			&e.Metadata,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
