// Package recovery persists the link between an open payment intent and its
// checkout draft across a gateway redirect. The shopper may return on a fresh
// session, so the record lives server side in Redis rather than in whatever
// state the browser kept.
package recovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Record is what survives the redirect: enough to find the draft again and
// to verify the intent it was charged under.
type Record struct {
	DraftID     string    `json:"draft_id"`
	ShopperID   string    `json:"shopper_id"`
	IntentRef   string    `json:"intent_ref"`
	Amount      int64     `json:"amount"`
	Currency    string    `json:"currency"`
	PersistedAt time.Time `json:"persisted_at"`
}

// Store keeps recovery records in Redis keyed by intent reference.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func key(intentRef string) string {
	return "checkout:recovery:" + intentRef
}

// Put writes the record before the shopper is handed to the gateway. The TTL
// bounds how long an abandoned redirect can be resumed.
func (s *Store) Put(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal recovery record: %w", err)
	}
	if err := s.client.Set(ctx, key(rec.IntentRef), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store recovery record: %w", err)
	}
	return nil
}

// Take reads and deletes the record in one round trip. The read once
// semantics make a replayed return URL a no-op: the second caller sees no
// record and cannot trigger a second commit. Returns nil when no record
// exists.
func (s *Store) Take(ctx context.Context, intentRef string) (*Record, error) {
	data, err := s.client.GetDel(ctx, key(intentRef)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("take recovery record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal recovery record: %w", err)
	}
	return &rec, nil
}

// Restore puts a record back after a commit failed for a retryable reason,
// so the shopper can resume again without being charged twice.
func (s *Store) Restore(ctx context.Context, rec Record) error {
	return s.Put(ctx, rec)
}

// Clear drops the record, used when the draft is cancelled with an intent
// still open.
func (s *Store) Clear(ctx context.Context, intentRef string) error {
	if err := s.client.Del(ctx, key(intentRef)).Err(); err != nil {
		return fmt.Errorf("clear recovery record: %w", err)
	}
	return nil
}
