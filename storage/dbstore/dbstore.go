// Package dbstore is the relational marker backend built on gorm. A marker is
// stored as a users row (found or created by nickname), a fresh locations row
// and a contents row.
package dbstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"starmap/logging"
	"starmap/models"
	"starmap/storage"
)

type Options struct {
	MaxOpenConns int
	MaxIdleConns int
	LogSQL       bool
}

// Open connects to MySQL, verifies the connection and creates missing tables.
// Any error here means the relational backend is unusable for this process.
func Open(ctx context.Context, dsn string, opts Options) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: NewLogger(opts.LogSQL)})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the tables and the singleton statistics row.
func Migrate(ctx context.Context, db *gorm.DB) error {
	db = db.WithContext(ctx)
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	stats := models.Statistics{ID: statsRowID}
	if err := db.FirstOrCreate(&stats, models.Statistics{ID: statsRowID}).Error; err != nil {
		return fmt.Errorf("init statistics: %w", err)
	}
	return nil
}

type Store struct {
	db  *gorm.DB
	agg *Aggregator
}

var _ storage.Store = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db, agg: NewAggregator(db)}
}

type markerRow struct {
	ID        string
	Nickname  string
	City      string
	Latitude  float64
	Longitude float64
	Message   string
	ImageURL  *string
	CreatedAt time.Time
}

func (r markerRow) marker(likes int64) storage.Marker {
	return storage.Marker{
		ID:        r.ID,
		Nickname:  r.Nickname,
		Location:  r.City,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Message:   r.Message,
		Image:     r.ImageURL,
		Likes:     likes,
		Date:      r.CreatedAt.Format(storage.DateLayout),
	}
}

func (s *Store) ListMarkers(ctx context.Context, f storage.Filter) ([]storage.Marker, error) {
	limit := 0
	if f.RecentOnly {
		limit = storage.RecentLimit
	}
	return s.markers(ctx, f.WithImages, limit)
}

func (s *Store) Featured(ctx context.Context) ([]storage.Marker, error) {
	return s.markers(ctx, true, storage.FeaturedLimit)
}

func (s *Store) markers(ctx context.Context, withImages bool, limit int) ([]storage.Marker, error) {
	db := s.db.WithContext(ctx)
	q := db.Table("contents").
		Select("contents.id, users.nickname, locations.city, locations.latitude, locations.longitude, " +
			"contents.message, contents.image_url, contents.created_at").
		Joins("JOIN users ON users.id = contents.user_id").
		Joins("JOIN locations ON locations.id = contents.location_id")
	if withImages {
		q = q.Where("contents.image_url IS NOT NULL AND contents.image_url <> ''")
	}
	q = q.Order("contents.created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []markerRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("query markers: %w", err)
	}

	out := make([]storage.Marker, 0, len(rows))
	for _, r := range rows {
		likes, err := s.countLikes(db, r.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, r.marker(likes))
	}
	return out, nil
}

func (s *Store) countLikes(db *gorm.DB, contentID string) (int64, error) {
	var n int64
	if err := db.Model(&models.Like{}).Where("content_id = ?", contentID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count likes for %s: %w", contentID, err)
	}
	return n, nil
}

func (s *Store) CreateMarker(ctx context.Context, in storage.NewMarker) (storage.Marker, error) {
	var row markerRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		row, err = insertMarker(tx, in)
		return err
	})
	if err != nil {
		return storage.Marker{}, fmt.Errorf("create marker: %w", err)
	}

	// The marker is committed at this point; a stale statistics row is
	// repaired by the next successful refresh.
	if _, err := s.agg.Refresh(ctx); err != nil {
		logging.Warn().Err(err).Str("marker", row.ID).Msg("statistics refresh failed")
	}
	return row.marker(0), nil
}

// insertMarker must run inside a transaction.
func insertMarker(tx *gorm.DB, in storage.NewMarker) (markerRow, error) {
	user, err := findOrCreateUser(tx, in.Nickname)
	if err != nil {
		return markerRow{}, err
	}

	loc := models.Location{
		UserID:    user.ID,
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		City:      in.Location,
		Address:   in.Location,
	}
	if err := tx.Create(&loc).Error; err != nil {
		return markerRow{}, fmt.Errorf("insert location: %w", err)
	}

	content := models.Content{
		ID:         uuid.NewString(),
		LocationID: loc.ID,
		UserID:     user.ID,
		Message:    in.Message,
		ImageURL:   in.Image,
	}
	if err := tx.Create(&content).Error; err != nil {
		return markerRow{}, fmt.Errorf("insert content: %w", err)
	}

	return markerRow{
		ID:        content.ID,
		Nickname:  user.Nickname,
		City:      loc.City,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Message:   content.Message,
		ImageURL:  content.ImageURL,
		CreatedAt: content.CreatedAt,
	}, nil
}

// findOrCreateUser matches on nickname, not username. New users get a
// generated username to satisfy the unique constraint.
func findOrCreateUser(tx *gorm.DB, nickname string) (models.User, error) {
	var user models.User
	err := tx.Where("nickname = ?", nickname).First(&user).Error
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return user, fmt.Errorf("find user: %w", err)
	}

	user = models.User{
		Username:         "user_" + uuid.NewString(),
		Nickname:         nickname,
		RegistrationDate: time.Now(),
		IsActive:         true,
	}
	if err := tx.Create(&user).Error; err != nil {
		return user, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

// LikeMarker appends an anonymous like. Nothing stops repeated likes.
func (s *Store) LikeMarker(ctx context.Context, id string) (int64, error) {
	db := s.db.WithContext(ctx)

	var content models.Content
	err := db.Select("id").Where("id = ?", id).First(&content).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, storage.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("find content: %w", err)
	}

	if err := db.Create(&models.Like{ContentID: content.ID}).Error; err != nil {
		return 0, fmt.Errorf("insert like: %w", err)
	}
	return s.countLikes(db, content.ID)
}

// SetLikesCount overwrites the cached likes_count column.
func (s *Store) SetLikesCount(ctx context.Context, id string, n int64) error {
	err := s.db.WithContext(ctx).Model(&models.Content{}).
		Where("id = ?", id).
		Update("likes_count", n).Error
	if err != nil {
		return fmt.Errorf("update likes_count for %s: %w", id, err)
	}
	return nil
}

func (s *Store) Stats(ctx context.Context) (storage.Stats, error) {
	var st models.Statistics
	if err := s.db.WithContext(ctx).First(&st, statsRowID).Error; err != nil {
		return storage.Stats{}, fmt.Errorf("load statistics: %w", err)
	}
	return storage.Stats{
		TotalMarkers:  st.TotalMarkers,
		TotalCities:   st.TotalCities,
		TotalPhotos:   st.TotalPhotos,
		TotalComments: st.TotalComments,
	}, nil
}

func (s *Store) Seed(ctx context.Context, markers []storage.NewMarker) (bool, error) {
	db := s.db.WithContext(ctx)
	var n int64
	if err := db.Model(&models.Content{}).Count(&n).Error; err != nil {
		return false, fmt.Errorf("count contents: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		for _, in := range markers {
			if _, err := insertMarker(tx, in); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("seed markers: %w", err)
	}
	if _, err := s.agg.Refresh(ctx); err != nil {
		return true, err
	}
	return true, nil
}
