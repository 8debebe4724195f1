package stripewebhook

import (
	"context"
	"fmt"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type fakeIdempotencyStore struct {
	data map[string]string
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{data: make(map[string]string)}
}

func (s *fakeIdempotencyStore) Get(ctx context.Context, key string) (string, error) {
	val, ok := s.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return val, nil
}

func (s *fakeIdempotencyStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = fmt.Sprintf("%v", value)
	return true, nil
}

func (s *fakeIdempotencyStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("km:idempotency:%s:%s", scope, id)
}

func (s *fakeIdempotencyStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func TestGuardMarkThenIsMarked(t *testing.T) {
	store := newFakeIdempotencyStore()
	guard, err := NewIdempotencyGuard(store, time.Minute, "stripe_webhook")
	if err != nil {
		t.Fatalf("NewIdempotencyGuard: %v", err)
	}

	marked, err := guard.IsMarked(context.Background(), "evt_1")
	if err != nil {
		t.Fatalf("IsMarked: %v", err)
	}
	if marked {
		t.Fatal("unseen event should not be marked")
	}

	if err := guard.Mark(context.Background(), "evt_1"); err != nil {
		t.Fatalf("Mark: %v", err)
	}

	marked, err = guard.IsMarked(context.Background(), "evt_1")
	if err != nil {
		t.Fatalf("IsMarked after Mark: %v", err)
	}
	if !marked {
		t.Fatal("marked event should report as marked")
	}
}

func TestGuardRequiresEventID(t *testing.T) {
	guard, err := NewIdempotencyGuard(newFakeIdempotencyStore(), time.Minute, "stripe_webhook")
	if err != nil {
		t.Fatalf("NewIdempotencyGuard: %v", err)
	}
	if _, err := guard.IsMarked(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty event id")
	}
	if err := guard.Mark(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty event id")
	}
}
