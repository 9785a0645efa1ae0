// Package filestore keeps every marker in a single JSON document. It is the
// fallback backend: each mutation reloads the whole document and rewrites it,
// with no locking between concurrent writers.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"starmap/storage"
)

// LikesReported is returned by LikeMarker. Likes are not persisted in file
// mode; the constant keeps clients working.
const LikesReported = 1

type document struct {
	Markers []storage.Marker `json:"markers"`
	Stats   storage.Stats    `json:"stats"`
}

type Store struct {
	path string
	now  func() time.Time
}

var _ storage.Store = (*Store)(nil)

func New(path string) *Store {
	return &Store{path: path, now: time.Now}
}

func (s *Store) Path() string {
	return s.path
}

// Ensure writes an empty document if the file does not exist yet.
func (s *Store) Ensure() error {
	_, err := os.Stat(s.path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", s.path, err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	return s.save(&document{Markers: []storage.Marker{}})
}

func (s *Store) load() (*document, error) {
	if err := s.Ensure(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	doc := &document{}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	if doc.Markers == nil {
		doc.Markers = []storage.Marker{}
	}
	return doc, nil
}

// save replaces the document by writing a sibling temp file and renaming it
// over the original. Concurrent load/save cycles can still lose updates.
func (s *Store) save(doc *document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) ListMarkers(_ context.Context, f storage.Filter) ([]storage.Marker, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	limit := 0
	if f.RecentOnly {
		limit = storage.RecentLimit
	}
	return newestFirst(doc.Markers, f.WithImages, limit), nil
}

func (s *Store) Featured(_ context.Context) ([]storage.Marker, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	return newestFirst(doc.Markers, true, storage.FeaturedLimit), nil
}

// newestFirst relies on DateLayout sorting lexicographically in time order.
func newestFirst(markers []storage.Marker, withImages bool, limit int) []storage.Marker {
	out := make([]storage.Marker, 0, len(markers))
	for _, m := range markers {
		if withImages && !m.HasImage() {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date > out[j].Date
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Store) CreateMarker(_ context.Context, in storage.NewMarker) (storage.Marker, error) {
	doc, err := s.load()
	if err != nil {
		return storage.Marker{}, err
	}
	m := s.marker(in)
	doc.Markers = append(doc.Markers, m)
	recount(doc)
	if err := s.save(doc); err != nil {
		return storage.Marker{}, err
	}
	return m, nil
}

func (s *Store) marker(in storage.NewMarker) storage.Marker {
	return storage.Marker{
		ID:        uuid.NewString(),
		Nickname:  in.Nickname,
		Location:  in.Location,
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		Message:   in.Message,
		Image:     in.Image,
		Likes:     0,
		Date:      s.now().Format(storage.DateLayout),
	}
}

// recount derives marker, photo and city totals from the marker list.
// TotalComments is left untouched.
func recount(doc *document) {
	cities := make(map[string]struct{})
	var photos int64
	for _, m := range doc.Markers {
		if m.HasImage() {
			photos++
		}
		if m.Location != "" {
			cities[m.Location] = struct{}{}
		}
	}
	doc.Stats.TotalMarkers = int64(len(doc.Markers))
	doc.Stats.TotalPhotos = photos
	doc.Stats.TotalCities = int64(len(cities))
}

func (s *Store) Stats(_ context.Context) (storage.Stats, error) {
	doc, err := s.load()
	if err != nil {
		return storage.Stats{}, err
	}
	return doc.Stats, nil
}

func (s *Store) LikeMarker(_ context.Context, _ string) (int64, error) {
	return LikesReported, nil
}

func (s *Store) Seed(_ context.Context, markers []storage.NewMarker) (bool, error) {
	doc, err := s.load()
	if err != nil {
		return false, err
	}
	if len(doc.Markers) > 0 {
		return false, nil
	}
	for _, in := range markers {
		doc.Markers = append(doc.Markers, s.marker(in))
	}
	recount(doc)
	doc.Stats.TotalComments = int64(len(markers))
	if err := s.save(doc); err != nil {
		return false, err
	}
	return true, nil
}
