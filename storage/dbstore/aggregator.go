package dbstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"starmap/models"
)

const statsRowID = 1

// Aggregator rebuilds the statistics row from full-table counts.
type Aggregator struct {
	db *gorm.DB
}

func NewAggregator(db *gorm.DB) *Aggregator {
	return &Aggregator{db: db}
}

// Refresh recounts every table and overwrites the singleton statistics row.
// total_markers and total_comments both mirror the content count.
func (a *Aggregator) Refresh(ctx context.Context) (models.Statistics, error) {
	var st models.Statistics
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		counts := []struct {
			name  string
			query *gorm.DB
			dst   *int64
		}{
			{"users", tx.Model(&models.User{}), &st.TotalUsers},
			{"locations", tx.Model(&models.Location{}), &st.TotalLocations},
			{"contents", tx.Model(&models.Content{}), &st.TotalContents},
			{"photos", tx.Model(&models.Content{}).Where("image_url IS NOT NULL"), &st.TotalPhotos},
			{"likes", tx.Model(&models.Like{}), &st.TotalLikes},
			{"cities", tx.Model(&models.Location{}).Where("city IS NOT NULL AND city <> ''").Distinct("city"), &st.TotalCities},
		}
		for _, c := range counts {
			if err := c.query.Count(c.dst).Error; err != nil {
				return fmt.Errorf("count %s: %w", c.name, err)
			}
		}

		st.ID = statsRowID
		st.TotalMarkers = st.TotalContents
		st.TotalComments = st.TotalContents
		st.UpdatedAt = time.Now()
		return tx.Save(&st).Error
	})
	if err != nil {
		return models.Statistics{}, fmt.Errorf("refresh statistics: %w", err)
	}
	return st, nil
}
