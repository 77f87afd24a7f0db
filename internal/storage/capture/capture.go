// Package capture is a read-only storage backend fed by the capture tool.
//
// The capture tool pushes freshly captured packages into Redis: the bytes go
// under a per-file key, a listing entry goes into a hash, and the file ID is
// announced on a channel so open sessions can pick it up.
package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/l10nmonster/lqa-boss-sub001/internal/apperr"
	"github.com/l10nmonster/lqa-boss-sub001/internal/job"
	"github.com/l10nmonster/lqa-boss-sub001/internal/storage"
)

// Name is the registry name of this backend.
const Name = "capture"

// Redis layout.
const (
	FilePrefix = "lqaboss:capture:file:"
	IndexKey   = "lqaboss:capture:index"
	Channel    = "lqaboss:capture:new"
)

// Store implements storage.Backend over a Redis client.
type Store struct {
	rdb    *redis.Client
	logger *slog.Logger
}

var _ storage.Backend = (*Store)(nil)

// Connect parses redisURL, pings the server and returns a Store.
func Connect(ctx context.Context, redisURL string, logger *slog.Logger) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return New(rdb, logger), nil
}

func New(rdb *redis.Client, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{rdb: rdb, logger: logger.With("backend", Name)}
}

// Close releases the Redis connection.
func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) Name() string { return Name }

func (s *Store) Capabilities() storage.Capabilities {
	return storage.Capabilities{}
}

func (s *Store) LoadFile(ctx context.Context, id string) ([]byte, error) {
	b, err := s.rdb.Get(ctx, FilePrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperr.New(apperr.CodeNotFound, "capture "+id, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", id, err)
	}
	return b, nil
}

// SaveFile is not supported; captured packages are immutable.
func (s *Store) SaveFile(context.Context, string, *job.Job) error {
	return storage.ErrUnsupported
}

// LoadAutoSaveData always reports no companion.
func (s *Store) LoadAutoSaveData(context.Context, string, string) (*job.Job, error) {
	return nil, nil
}

// entry is the JSON value stored in the index hash.
type entry struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	CapturedAt int64  `json:"capturedAt"`
}

func decodeEntry(id, raw string) (storage.FileInfo, error) {
	var e entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return storage.FileInfo{}, fmt.Errorf("index entry %s: %w", id, err)
	}
	fi := storage.FileInfo{ID: id, Name: e.Name, Size: e.Size}
	if e.CapturedAt > 0 {
		fi.UpdatedAt = time.UnixMilli(e.CapturedAt).UTC()
	}
	return fi, nil
}

// ListFiles returns every indexed capture, newest first. location is ignored.
func (s *Store) ListFiles(ctx context.Context, _ string) ([]storage.FileInfo, error) {
	all, err := s.rdb.HGetAll(ctx, IndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	out := make([]storage.FileInfo, 0, len(all))
	for id, raw := range all {
		fi, err := decodeEntry(id, raw)
		if err != nil {
			s.logger.Warn("capture.index.corrupt", "id", id, "err", err)
			continue
		}
		out = append(out, fi)
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(files []storage.FileInfo) {
	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].UpdatedAt.Equal(files[j].UpdatedAt) {
			return files[i].UpdatedAt.After(files[j].UpdatedAt)
		}
		return files[i].ID < files[j].ID
	})
}

// Push stores a captured package and announces it. It is what the capture
// tool calls; tests and the pack command use it too.
func (s *Store) Push(ctx context.Context, id, name string, data []byte, at time.Time) error {
	raw, err := json.Marshal(entry{Name: name, Size: int64(len(data)), CapturedAt: at.UnixMilli()})
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, FilePrefix+id, data, 0)
		p.HSet(ctx, IndexKey, id, string(raw))
		p.Publish(ctx, Channel, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis push %s: %w", id, err)
	}
	return nil
}

// Watch forwards announced file IDs until ctx is done. The returned channel
// is closed when the subscription ends.
func (s *Store) Watch(ctx context.Context) (<-chan string, error) {
	sub := s.rdb.Subscribe(ctx, Channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}
	out := make(chan string)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- m.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
