package likesync

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type memWriter struct {
	mu     sync.Mutex
	counts map[string]int64
	fail   map[string]bool
}

func newMemWriter() *memWriter {
	return &memWriter{counts: map[string]int64{}, fail: map[string]bool{}}
}

func (w *memWriter) SetLikesCount(_ context.Context, id string, n int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail[id] {
		return errors.New("boom")
	}
	w.counts[id] = n
	return nil
}

func (w *memWriter) get(id string) (int64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n, ok := w.counts[id]
	return n, ok
}

func newTestSyncer(t *testing.T, w CountWriter) (*Syncer, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb, w, 10*time.Millisecond), mr
}

func TestRecordAndSync(t *testing.T) {
	w := newMemWriter()
	s, mr := newTestSyncer(t, w)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, "m1", 1))
	require.NoError(t, s.Record(ctx, "m1", 2))
	require.NoError(t, s.Record(ctx, "m2", 5))

	got, err := mr.Get(keyPrefix + "m1")
	require.NoError(t, err)
	require.Equal(t, "2", got)

	n, err := s.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	c, ok := w.get("m1")
	require.True(t, ok)
	require.Equal(t, int64(2), c)
	c, ok = w.get("m2")
	require.True(t, ok)
	require.Equal(t, int64(5), c)

	n, err = s.Sync(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestSyncKeepsFailedIDsDirty(t *testing.T) {
	w := newMemWriter()
	w.fail["m1"] = true
	s, mr := newTestSyncer(t, w)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, "m1", 3))
	n, err := s.Sync(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	ok, err := mr.SIsMember(dirtyKey, "m1")
	require.NoError(t, err)
	require.True(t, ok)

	w.mu.Lock()
	w.fail["m1"] = false
	w.mu.Unlock()
	n, err = s.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestSyncDropsMalformedCounter(t *testing.T) {
	w := newMemWriter()
	s, mr := newTestSyncer(t, w)

	require.NoError(t, mr.Set(keyPrefix+"m1", "abc"))
	_, err := mr.SAdd(dirtyKey, "m1")
	require.NoError(t, err)

	n, err := s.Sync(context.Background())
	require.NoError(t, err)
	require.Zero(t, n)
	require.False(t, mr.Exists(dirtyKey))
}

// failSRem makes every SREM fail so dirty flags cannot be cleared.
type failSRem struct{}

func (failSRem) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (failSRem) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if strings.EqualFold(cmd.Name(), "srem") {
			err := errors.New("srem refused")
			cmd.SetErr(err)
			return err
		}
		return next(ctx, cmd)
	}
}

func (failSRem) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestSyncReportsClearFailure(t *testing.T) {
	for name, raw := range map[string]string{"malformed": "abc", "missing": ""} {
		t.Run(name, func(t *testing.T) {
			w := newMemWriter()
			s, mr := newTestSyncer(t, w)
			s.rdb.AddHook(failSRem{})

			if raw != "" {
				require.NoError(t, mr.Set(keyPrefix+"m1", raw))
			}
			_, err := mr.SAdd(dirtyKey, "m1")
			require.NoError(t, err)

			n, err := s.Sync(context.Background())
			require.ErrorContains(t, err, "clear dirty flag for m1")
			require.Zero(t, n)

			ok, err := mr.SIsMember(dirtyKey, "m1")
			require.NoError(t, err)
			require.True(t, ok)
		})
	}
}

func TestRunFlushesOnCancel(t *testing.T) {
	w := newMemWriter()
	s, _ := newTestSyncer(t, w)
	s.interval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Record(ctx, "m1", 4))

	done := make(chan error)
	go func() { done <- s.Run(ctx) }()
	cancel()
	require.NoError(t, <-done)

	c, ok := w.get("m1")
	require.True(t, ok)
	require.Equal(t, int64(4), c)
}
