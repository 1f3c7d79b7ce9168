package model

import (
	"time"

	"geoattend-backend/internal/geo"
)

// Site represents an administrator-configured geofence: a circular zone
// inside which attendance check-in is permitted. The engine only reads
// sites; creation and editing live in the admin surface.
type Site struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:128;not null" json:"name"`
	CenterLat float64   `gorm:"not null" json:"centerLat"`
	CenterLng float64   `gorm:"not null" json:"centerLng"`
	RadiusKm  float64   `gorm:"not null" json:"radiusKm"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Center returns the site's center as a coordinate.
func (s Site) Center() geo.Coordinate {
	return geo.Coordinate{Lat: s.CenterLat, Lng: s.CenterLng}
}
