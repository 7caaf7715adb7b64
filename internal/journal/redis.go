// internal/journal/redis.go
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kou050223/duelclient/internal/protocol"
	"github.com/redis/go-redis/v9"
)

// DefaultKey is the Redis list inbound frames are appended to.
const DefaultKey = "duel_frames"

// Entry is one journaled inbound frame.
type Entry struct {
	Type       string          `json:"type"`
	ReceivedAt int64           `json:"received_at"`
	UserID     string          `json:"user_id,omitempty"`
	DuelID     string          `json:"duel_id,omitempty"`
	Raw        json.RawMessage `json:"raw"`
}

// Journal appends every inbound frame to a Redis list for replay and debugging.
type Journal struct {
	rdb    *redis.Client
	key    string
	userID func() string
	duelID func() string
	now    func() time.Time
}

// Connect opens a Redis client at addr and checks it with a ping.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// New returns a journal writing to key (DefaultKey when empty). userID and
// duelID are read per frame and may be nil.
func New(rdb *redis.Client, key string, userID, duelID func() string) *Journal {
	if key == "" {
		key = DefaultKey
	}
	return &Journal{rdb: rdb, key: key, userID: userID, duelID: duelID, now: time.Now}
}

// Record serializes the frame and pushes it to the journal list.
func (j *Journal) Record(ctx context.Context, f protocol.Frame, raw []byte) error {
	e := Entry{
		Type:       f.Type,
		ReceivedAt: j.now().UnixMilli(),
		Raw:        json.RawMessage(raw),
	}
	if j.userID != nil {
		e.UserID = j.userID()
	}
	if j.duelID != nil {
		e.DuelID = j.duelID()
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal journal entry: %w", err)
	}
	if err := j.rdb.RPush(ctx, j.key, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", j.key, err)
	}
	return nil
}

// Recent returns up to n of the newest entries, oldest first.
func (j *Journal) Recent(ctx context.Context, n int64) ([]Entry, error) {
	vals, err := j.rdb.LRange(ctx, j.key, -n, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read Redis list '%s': %w", j.key, err)
	}
	entries := make([]Entry, 0, len(vals))
	for _, v := range vals {
		var e Entry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}
