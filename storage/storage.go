// Package storage defines the marker persistence contract shared by the
// relational store and the JSON file store.
package storage

import (
	"context"
	"errors"
)

const (
	// DefaultNickname is stored when a marker is posted without a nickname.
	DefaultNickname = "匿名用户"

	// DefaultLatitude and DefaultLongitude point at the geographic centre of
	// China and stand in for an unknown location.
	DefaultLatitude  = 35.86166
	DefaultLongitude = 104.195397

	// RecentLimit caps ListMarkers when Filter.RecentOnly is set.
	RecentLimit = 20
	// FeaturedLimit caps Featured.
	FeaturedLimit = 10

	// DateLayout is the wire format of Marker.Date.
	DateLayout = "2006-01-02 15:04:05"
)

// ErrNotFound is returned when a marker id does not exist.
var ErrNotFound = errors.New("marker not found")

// Marker is the flattened user + location + content view sent to clients.
type Marker struct {
	ID        string  `json:"id"`
	Nickname  string  `json:"nickname"`
	Location  string  `json:"location"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Message   string  `json:"message"`
	Image     *string `json:"image"`
	Likes     int64   `json:"likes"`
	Date      string  `json:"date"`
}

// HasImage reports whether the marker carries a non-empty image URL.
func (m Marker) HasImage() bool {
	return m.Image != nil && *m.Image != ""
}

// MarkerInput is the body of a marker post. Every field is optional.
type MarkerInput struct {
	Nickname  *string  `json:"nickname"`
	Location  *string  `json:"location"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Message   *string  `json:"message"`
	Image     *string  `json:"image"`
}

// NewMarker is a MarkerInput with defaults applied.
type NewMarker struct {
	Nickname  string
	Location  string
	Latitude  float64
	Longitude float64
	Message   string
	Image     *string
}

// Normalize fills in defaults for absent fields. An empty image is treated as
// no image.
func (in MarkerInput) Normalize() NewMarker {
	m := NewMarker{
		Nickname:  DefaultNickname,
		Latitude:  DefaultLatitude,
		Longitude: DefaultLongitude,
	}
	if in.Nickname != nil && *in.Nickname != "" {
		m.Nickname = *in.Nickname
	}
	if in.Location != nil {
		m.Location = *in.Location
	}
	if in.Latitude != nil {
		m.Latitude = *in.Latitude
	}
	if in.Longitude != nil {
		m.Longitude = *in.Longitude
	}
	if in.Message != nil {
		m.Message = *in.Message
	}
	if in.Image != nil && *in.Image != "" {
		img := *in.Image
		m.Image = &img
	}
	return m
}

type Filter struct {
	WithImages bool
	RecentOnly bool
}

// Stats are the global counters shown on the front page.
type Stats struct {
	TotalMarkers  int64 `json:"totalMarkers"`
	TotalCities   int64 `json:"totalCities"`
	TotalPhotos   int64 `json:"totalPhotos"`
	TotalComments int64 `json:"totalComments"`
}

// Store is implemented by every persistence backend.
type Store interface {
	ListMarkers(ctx context.Context, f Filter) ([]Marker, error)
	CreateMarker(ctx context.Context, in NewMarker) (Marker, error)
	Featured(ctx context.Context) ([]Marker, error)
	Stats(ctx context.Context) (Stats, error)
	// LikeMarker records one like and returns the resulting like count.
	LikeMarker(ctx context.Context, id string) (int64, error)
	// Seed inserts the markers when the store is empty and reports whether
	// it did.
	Seed(ctx context.Context, markers []NewMarker) (bool, error)
}

func ptr[T any](v T) *T { return &v }

// SampleMarkers is the demo content seeded into an empty store.
func SampleMarkers() []NewMarker {
	return []NewMarker{
		{Nickname: "旅行者小明", Location: "北京", Latitude: 39.9042, Longitude: 116.4074, Message: "故宫的雪景真美！", Image: ptr("https://picsum.photos/id/1015/800/600")},
		{Nickname: "摄影爱好者", Location: "上海", Latitude: 31.2304, Longitude: 121.4737, Message: "外滩夜景，灯火辉煌", Image: ptr("https://picsum.photos/id/1016/800/600")},
		{Nickname: "城市探险家", Location: "广州", Latitude: 23.1291, Longitude: 113.2644, Message: "广州塔下的美食街", Image: ptr("https://picsum.photos/id/1019/800/600")},
		{Nickname: "旅行者小明", Location: "深圳", Latitude: 22.5431, Longitude: 114.0579, Message: "深圳湾公园的日落", Image: ptr("https://picsum.photos/id/1039/800/600")},
		{Nickname: "摄影爱好者", Location: "成都", Latitude: 30.5728, Longitude: 104.0668, Message: "成都火锅真是太香了！", Image: ptr("https://picsum.photos/id/292/800/600")},
	}
}
