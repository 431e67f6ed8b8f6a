package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	custom_errors "ecosystem-dashboard/internal/errors"
	"ecosystem-dashboard/internal/model"
)

const (
	DefaultBucket = "dashboard"
	DefaultKey    = "data"
)

// Store publishes and serves the combined snapshot through a JetStream key/value bucket.
// A Put replaces the whole document, so readers never observe a partial snapshot.
type Store struct {
	kv  jetstream.KeyValue
	key string
}

// NewStore binds to bucket, creating it if needed.
func NewStore(ctx context.Context, nc *nats.Conn, bucket, key string) (*Store, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "published dashboard snapshot",
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to bind key/value bucket %q: %w", bucket, err)
	}
	return &Store{kv: kv, key: key}, nil
}

// Publish replaces the current snapshot.
func (s *Store) Publish(ctx context.Context, snap *model.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if _, err := s.kv.Put(ctx, s.key, data); err != nil {
		return custom_errors.Persistence("publish snapshot", err)
	}
	return nil
}

// LatestRaw returns the published snapshot document as stored.
func (s *Store) LatestRaw(ctx context.Context) ([]byte, error) {
	entry, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, custom_errors.ErrNoSnapshot
	}
	if err != nil {
		return nil, custom_errors.Persistence("read snapshot", err)
	}
	return entry.Value(), nil
}

// Latest returns the decoded published snapshot.
func (s *Store) Latest(ctx context.Context) (*model.Snapshot, error) {
	data, err := s.LatestRaw(ctx)
	if err != nil {
		return nil, err
	}
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}
