package audit

import (
	"context"
	"regexp"
	"testing"
	"time"
)

func TestService_AppendRequiresCallActorAndType(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	ctx := context.Background()

	if err := svc.Append(ctx, Event{ActorUserID: "u", Type: EventTypeLock}); err == nil {
		t.Fatalf("expected error without call_id")
	}
	if err := svc.Append(ctx, Event{CallID: "c", Type: EventTypeLock}); err == nil {
		t.Fatalf("expected error without actor")
	}
	if err := svc.Append(ctx, Event{CallID: "c", ActorUserID: "u", Type: "wallet_credit"}); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

func TestService_LogModerationAppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	svc.clock = func() time.Time { return time.Unix(1700000000, 0) }

	if err := svc.LogModeration(context.Background(), "c1", "conv", "mod", "remove", "y", ""); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := svc.LogModeration(context.Background(), "c2", "conv", "mod", "lock", "", ""); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs, err := svc.ForCall(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(evs) != 1 {
		t.Fatalf("expected 1 event for c1, got %d", len(evs))
	}
	if evs[0].Type != EventTypeRemove || evs[0].TargetUserID != "y" {
		t.Fatalf("unexpected event: %+v", evs[0])
	}
	if evs[0].ID == "" || !evs[0].CreatedAt.Equal(time.Unix(1700000000, 0).UTC()) {
		t.Fatalf("expected id and timestamp to be stamped: %+v", evs[0])
	}
	if len(repo.Events()) != 2 {
		t.Fatalf("expected 2 events total")
	}
}

func TestSchema_CallIDAcceptsAnyText(t *testing.T) {
	if !regexp.MustCompile(`call_id\s+TEXT NOT NULL,`).MatchString(Schema[0]) {
		t.Fatalf("expected call_id to be a TEXT column: %s", Schema[0])
	}
}
