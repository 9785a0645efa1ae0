// Package service routes marker operations to the relational store when it
// was enabled at startup, and to the file store when it was not or when a
// relational call fails. A failed call never disables the relational store.
package service

import (
	"context"
	"errors"

	"starmap/logging"
	"starmap/metrics"
	"starmap/storage"
)

// LikeRecorder is told about every like the relational store accepts.
type LikeRecorder interface {
	Record(ctx context.Context, id string, likes int64) error
}

type Service struct {
	primary  storage.Store
	fallback storage.Store
	likes    LikeRecorder
}

type Option func(*Service)

// WithPrimary enables the relational store. Omit it when the database could
// not be reached at startup.
func WithPrimary(s storage.Store) Option {
	return func(svc *Service) { svc.primary = s }
}

func WithLikeRecorder(r LikeRecorder) Option {
	return func(svc *Service) { svc.likes = r }
}

func New(fallback storage.Store, opts ...Option) *Service {
	svc := &Service{fallback: fallback}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// DatabaseEnabled reports the startup decision.
func (s *Service) DatabaseEnabled() bool {
	return s.primary != nil
}

// call tries the primary store, then the fallback. ErrNotFound from the
// primary is an answer, not a failure.
func call[T any](s *Service, op string, fn func(storage.Store) (T, error)) (T, error) {
	if s.primary != nil {
		v, err := fn(s.primary)
		if err == nil || errors.Is(err, storage.ErrNotFound) {
			return v, err
		}
		metrics.StoreFallbacks.WithLabelValues(op).Inc()
		logging.Warn().Err(err).Str("op", op).Msg("relational store failed, using file store")
	}
	return fn(s.fallback)
}

func (s *Service) ListMarkers(ctx context.Context, f storage.Filter) ([]storage.Marker, error) {
	return call(s, "list_markers", func(st storage.Store) ([]storage.Marker, error) {
		return st.ListMarkers(ctx, f)
	})
}

func (s *Service) CreateMarker(ctx context.Context, in storage.MarkerInput) (storage.Marker, error) {
	m := in.Normalize()
	return call(s, "create_marker", func(st storage.Store) (storage.Marker, error) {
		return st.CreateMarker(ctx, m)
	})
}

func (s *Service) Featured(ctx context.Context) ([]storage.Marker, error) {
	return call(s, "featured", func(st storage.Store) ([]storage.Marker, error) {
		return st.Featured(ctx)
	})
}

func (s *Service) Stats(ctx context.Context) (storage.Stats, error) {
	return call(s, "stats", func(st storage.Store) (storage.Stats, error) {
		return st.Stats(ctx)
	})
}

func (s *Service) LikeMarker(ctx context.Context, id string) (int64, error) {
	return call(s, "like_marker", func(st storage.Store) (int64, error) {
		n, err := st.LikeMarker(ctx, id)
		if err == nil && st == s.primary && s.likes != nil {
			if rerr := s.likes.Record(ctx, id, n); rerr != nil {
				logging.Warn().Err(rerr).Str("marker", id).Msg("like counter not recorded")
			}
		}
		return n, err
	})
}

// Seed fills whichever store is active with sample markers if it is empty.
func (s *Service) Seed(ctx context.Context, markers []storage.NewMarker) (bool, error) {
	if s.primary != nil {
		return s.primary.Seed(ctx, markers)
	}
	return s.fallback.Seed(ctx, markers)
}
