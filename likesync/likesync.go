// Package likesync mirrors live like counts into Redis and periodically copies
// them into the contents.likes_count cache column.
package likesync

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"starmap/logging"
	"starmap/metrics"
)

const (
	keyPrefix = "markers:likes:"
	// dirtyKey holds ids whose counter changed since the last sync.
	dirtyKey = "markers:likes:dirty"
)

// CountWriter persists a like count for one marker.
type CountWriter interface {
	SetLikesCount(ctx context.Context, id string, n int64) error
}

type Syncer struct {
	rdb      *redis.Client
	store    CountWriter
	interval time.Duration
}

func New(rdb *redis.Client, store CountWriter, interval time.Duration) *Syncer {
	return &Syncer{rdb: rdb, store: store, interval: interval}
}

// Record stores the latest count for id and marks it for the next sync.
func (s *Syncer) Record(ctx context.Context, id string, likes int64) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, keyPrefix+id, likes, 0)
		pipe.SAdd(ctx, dirtyKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record likes for %s: %w", id, err)
	}
	return nil
}

// Sync copies every dirty counter into the store and returns how many were
// written. Ids that fail stay dirty for the next round.
func (s *Syncer) Sync(ctx context.Context) (int, error) {
	ids, err := s.rdb.SMembers(ctx, dirtyKey).Result()
	if err != nil {
		return 0, fmt.Errorf("list dirty markers: %w", err)
	}

	synced := 0
	for _, id := range ids {
		raw, err := s.rdb.Get(ctx, keyPrefix+id).Result()
		if err == redis.Nil {
			if err := s.clearDirty(ctx, id); err != nil {
				return synced, err
			}
			continue
		}
		if err != nil {
			return synced, fmt.Errorf("read likes for %s: %w", id, err)
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			logging.Warn().Str("marker", id).Str("value", raw).Msg("dropping malformed like counter")
			if err := s.clearDirty(ctx, id); err != nil {
				return synced, err
			}
			continue
		}
		if err := s.store.SetLikesCount(ctx, id, n); err != nil {
			metrics.LikeSyncErrors.Inc()
			logging.Warn().Err(err).Str("marker", id).Msg("like sync failed")
			continue
		}
		if err := s.clearDirty(ctx, id); err != nil {
			return synced, err
		}
		synced++
	}
	metrics.LikesSynced.Add(float64(synced))
	return synced, nil
}

func (s *Syncer) clearDirty(ctx context.Context, id string) error {
	if err := s.rdb.SRem(ctx, dirtyKey, id).Err(); err != nil {
		return fmt.Errorf("clear dirty flag for %s: %w", id, err)
	}
	return nil
}

// Run syncs on every tick until ctx is cancelled, then flushes once more.
func (s *Syncer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if n, err := s.Sync(flushCtx); err != nil {
				logging.Warn().Err(err).Msg("final like sync failed")
			} else {
				logging.Info().Int("synced", n).Msg("like counters flushed")
			}
			return nil
		case <-ticker.C:
			n, err := s.Sync(ctx)
			if err != nil {
				metrics.LikeSyncErrors.Inc()
				logging.Error().Err(err).Msg("like sync round failed")
				continue
			}
			logging.Debug().Int("synced", n).Msg("like sync round done")
		}
	}
}
