package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/keymint-labs/keymint-backend/pkg/redis"
)

// IdempotencyGuard is a redis fast-path in front of the durable ledger.
// An event id is marked only after its mutation has committed, so a hit
// always means "durably applied" and redeliveries can be acked without
// touching the database. The ledger remains the authoritative dedup
// record; a guard miss (or redis outage) just falls through to it.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// IsMarked reports whether the event id was already marked as applied.
func (g *IdempotencyGuard) IsMarked(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	key := g.store.IdempotencyKey(g.scope, eventID)
	val, err := g.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("get idempotency key: %w", err)
	}
	return val != "", nil
}

// Mark records the event id as applied. Call it only after the
// mutation has committed.
func (g *IdempotencyGuard) Mark(ctx context.Context, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	key := g.store.IdempotencyKey(g.scope, eventID)
	if _, err := g.store.SetNX(ctx, key, "1", g.ttl); err != nil {
		return fmt.Errorf("set idempotency key: %w", err)
	}
	return nil
}
