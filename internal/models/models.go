package models

import (
	"database/sql"
	"time"
)

// Location is a named place the service keeps warm in the outlook cache.
type Location struct {
	Name      string
	Latitude  float64
	Longitude float64
	Active    bool
}

// UserContext is what the bot remembers about a chat user between messages.
type UserContext struct {
	UserID        string
	LastCity      sql.NullString
	Latitude      sql.NullFloat64
	Longitude     sql.NullFloat64
	PreferredCrop sql.NullString
	// LocationSource is how the coordinates were obtained: gps, geocoded or clarified.
	LocationSource sql.NullString
	UpdatedAt      time.Time
}

// HasLocation reports whether the user's last coordinates are known.
func (u *UserContext) HasLocation() bool {
	return u != nil && u.Latitude.Valid && u.Longitude.Valid
}

// SharedLocation reports whether the remembered coordinates came from a
// location the user shared.
func (u *UserContext) SharedLocation() bool {
	return u.HasLocation() && u.LocationSource.String == "gps"
}

// CachedOutlook is a serialized seasonal forecast for one coordinate and day.
type CachedOutlook struct {
	CacheKey   string
	Latitude   float64
	Longitude  float64
	ForDate    time.Time
	Payload    []byte
	ComputedAt time.Time
	ExpiresAt  time.Time
}

// PendingClarification is a place question awaiting the user's choice.
// Options holds the JSON-encoded candidates.
type PendingClarification struct {
	UserID    string
	Query     string
	QueryType string
	Options   []byte
	ExpiresAt time.Time
}
