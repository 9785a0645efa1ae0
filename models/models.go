package models

import (
	"time"
)

type User struct {
	ID               uint   `gorm:"primaryKey"`
	Username         string `gorm:"type:varchar(50);unique;not null"`
	Nickname         string `gorm:"type:varchar(50);not null"`
	AvatarURL        string `gorm:"type:text"`
	RegistrationDate time.Time
	LastLogin        *time.Time
	IsActive         bool `gorm:"default:true"`
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Locations []Location `gorm:"constraint:OnDelete:CASCADE;"`
	Contents  []Content  `gorm:"constraint:OnDelete:CASCADE;"`
	Likes     []Like     `gorm:"constraint:OnDelete:CASCADE;"`
}

type Location struct {
	ID        uint    `gorm:"primaryKey"`
	UserID    uint    `gorm:"not null;index"`
	Latitude  float64 `gorm:"type:decimal(10,8);not null"`
	Longitude float64 `gorm:"type:decimal(11,8);not null"`
	Address   string  `gorm:"type:varchar(255)"`
	City      string  `gorm:"type:varchar(100);index"`
	Province  string  `gorm:"type:varchar(100)"`
	Country   string  `gorm:"type:varchar(100);default:'中国'"`
	Timezone  string  `gorm:"type:varchar(50)"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Contents []Content `gorm:"constraint:OnDelete:CASCADE;"`
}

// Content is one posted marker. LikesCount is a cache refreshed by the like
// syncer; listings count Like rows instead.
type Content struct {
	ID         string  `gorm:"type:varchar(50);primaryKey"`
	LocationID uint    `gorm:"not null;index"`
	UserID     uint    `gorm:"not null;index"`
	Message    string  `gorm:"type:text"`
	ImagePath  *string `gorm:"type:text"`
	ImageURL   *string `gorm:"type:text"`
	LikesCount int64   `gorm:"default:0"`
	ViewCount  int64   `gorm:"default:0"`
	IsFeatured bool    `gorm:"default:false"`
	Status     string  `gorm:"type:varchar(20);default:'published'"` // published, pending, rejected

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time

	Likes []Like `gorm:"constraint:OnDelete:CASCADE;"`
}

// Like has a (content_id, user_id) unique index, but the like endpoint has no
// user identity, so UserID stays NULL and duplicates are allowed.
type Like struct {
	ID        uint   `gorm:"primaryKey"`
	ContentID string `gorm:"type:varchar(50);not null;uniqueIndex:idx_content_user"`
	UserID    *uint  `gorm:"uniqueIndex:idx_content_user"`
	CreatedAt time.Time
}

type Statistics struct {
	ID             uint `gorm:"primaryKey"`
	TotalUsers     int64
	TotalLocations int64
	TotalContents  int64
	TotalPhotos    int64
	TotalLikes     int64
	TotalCities    int64
	TotalMarkers   int64
	TotalComments  int64
	UpdatedAt      time.Time
}

func (Statistics) TableName() string {
	return "statistics"
}

// All lists every table in creation order.
func All() []any {
	return []any{&User{}, &Location{}, &Content{}, &Like{}, &Statistics{}}
}
