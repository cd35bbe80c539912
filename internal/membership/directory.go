package membership

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
)

// Directory answers "who belongs to this conversation". Conversation management itself lives elsewhere;
// this is the read side the call manager consults for authorization and invite filtering.
type Directory interface {
	IsConversationParticipant(ctx context.Context, userID, conversationID string) (bool, error)
	ConversationMembers(ctx context.Context, conversationID string) ([]string, error)
}

// MemoryDirectory is an in-memory Directory for tests and local development.
type MemoryDirectory struct {
	mu      sync.RWMutex
	members map[string]map[string]struct{}
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{members: map[string]map[string]struct{}{}}
}

// Add registers users as members of a conversation.
func (d *MemoryDirectory) Add(conversationID string, userIDs ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	set, ok := d.members[conversationID]
	if !ok {
		set = map[string]struct{}{}
		d.members[conversationID] = set
	}
	for _, u := range userIDs {
		set[u] = struct{}{}
	}
}

func (d *MemoryDirectory) Remove(conversationID, userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.members[conversationID], userID)
}

func (d *MemoryDirectory) IsConversationParticipant(ctx context.Context, userID, conversationID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.members[conversationID][userID]
	return ok, nil
}

// ConversationMembers returns members sorted by user id.
func (d *MemoryDirectory) ConversationMembers(ctx context.Context, conversationID string) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.members[conversationID]))
	for u := range d.members[conversationID] {
		out = append(out, u)
	}
	sort.Strings(out)
	return out, nil
}

// Schema is the read model this service expects to be kept in sync by the conversation service.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS conversation_members (
  conversation_id TEXT NOT NULL,
  user_id         TEXT NOT NULL,
  joined_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (conversation_id, user_id)
)`,
}

// PostgresDirectory reads conversation_members.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory { return &PostgresDirectory{db: db} }

func (d *PostgresDirectory) IsConversationParticipant(ctx context.Context, userID, conversationID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM conversation_members WHERE conversation_id = $1 AND user_id = $2)`
	var ok bool
	if err := d.db.QueryRowContext(ctx, q, conversationID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("membership lookup: %w", err)
	}
	return ok, nil
}

func (d *PostgresDirectory) ConversationMembers(ctx context.Context, conversationID string) ([]string, error) {
	const q = `SELECT user_id FROM conversation_members WHERE conversation_id = $1 ORDER BY user_id`
	rows, err := d.db.QueryContext(ctx, q, conversationID)
	if err != nil {
		return nil, fmt.Errorf("membership lookup: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
