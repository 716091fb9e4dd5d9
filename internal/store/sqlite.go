package store

import (
	"database/sql"
	"time"

	"github.com/lox/rainseason/internal/models"
)

type Store struct {
	db  *sql.DB
	loc *time.Location
}

// New wraps db. loc is the local timezone used for calendar-day keys.
func New(db *sql.DB, loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{db: db, loc: loc}
}

func (s *Store) UpsertLocation(l models.Location) error {
	_, err := s.db.Exec(`
		INSERT INTO locations (name, latitude, longitude, active)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			active = excluded.active
	`, l.Name, l.Latitude, l.Longitude, l.Active)
	return err
}

func (s *Store) GetActiveLocations() ([]models.Location, error) {
	rows, err := s.db.Query(`SELECT name, latitude, longitude, active FROM locations WHERE active = TRUE ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []models.Location
	for rows.Next() {
		var l models.Location
		if err := rows.Scan(&l.Name, &l.Latitude, &l.Longitude, &l.Active); err != nil {
			return nil, err
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

// GetCachedOutlook returns the cached outlook for key, or nil when there is
// none or it expired before now.
func (s *Store) GetCachedOutlook(key string, now time.Time) (*models.CachedOutlook, error) {
	row := s.db.QueryRow(`
		SELECT cache_key, latitude, longitude, for_date, payload, computed_at, expires_at
		FROM outlook_cache
		WHERE cache_key = ? AND expires_at > ?
	`, key, now.Unix())

	var c models.CachedOutlook
	var forDate string
	var computedAt, expiresAt int64
	err := row.Scan(&c.CacheKey, &c.Latitude, &c.Longitude, &forDate, &c.Payload, &computedAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	c.ForDate, err = time.ParseInLocation("2006-01-02", forDate, s.loc)
	if err != nil {
		return nil, err
	}
	c.ComputedAt = time.Unix(computedAt, 0).UTC()
	c.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	return &c, nil
}

func (s *Store) PutCachedOutlook(c models.CachedOutlook) error {
	_, err := s.db.Exec(`
		INSERT INTO outlook_cache (cache_key, latitude, longitude, for_date, payload, computed_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			for_date = excluded.for_date,
			payload = excluded.payload,
			computed_at = excluded.computed_at,
			expires_at = excluded.expires_at
	`, c.CacheKey, c.Latitude, c.Longitude, c.ForDate.In(s.loc).Format("2006-01-02"),
		c.Payload, c.ComputedAt.Unix(), c.ExpiresAt.Unix())
	return err
}

// DeleteExpiredOutlooks removes cache rows that expired at or before now.
func (s *Store) DeleteExpiredOutlooks(now time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM outlook_cache WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// GetUserContext returns what is remembered about userID, or nil when
// nothing was saved within ttl of now.
func (s *Store) GetUserContext(userID string, now time.Time, ttl time.Duration) (*models.UserContext, error) {
	row := s.db.QueryRow(`
		SELECT user_id, last_city, latitude, longitude, preferred_crop, location_source, updated_at
		FROM user_context
		WHERE user_id = ? AND updated_at > ?
	`, userID, now.Add(-ttl).Unix())

	var u models.UserContext
	var updatedAt int64
	err := row.Scan(&u.UserID, &u.LastCity, &u.Latitude, &u.Longitude, &u.PreferredCrop, &u.LocationSource, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &u, nil
}

// SaveUserContext upserts u. Null fields keep their stored value, except that
// a shared (gps) location always replaces the city, even with null, so an old
// name never sits next to new coordinates.
func (s *Store) SaveUserContext(u models.UserContext) error {
	_, err := s.db.Exec(`
		INSERT INTO user_context (user_id, last_city, latitude, longitude, preferred_crop, location_source, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			last_city = CASE
				WHEN excluded.location_source = 'gps' THEN excluded.last_city
				ELSE COALESCE(excluded.last_city, user_context.last_city)
			END,
			latitude = COALESCE(excluded.latitude, user_context.latitude),
			longitude = COALESCE(excluded.longitude, user_context.longitude),
			preferred_crop = COALESCE(excluded.preferred_crop, user_context.preferred_crop),
			location_source = COALESCE(excluded.location_source, user_context.location_source),
			updated_at = excluded.updated_at
	`, u.UserID, u.LastCity, u.Latitude, u.Longitude, u.PreferredCrop, u.LocationSource, u.UpdatedAt.Unix())
	return err
}

func (s *Store) SavePendingClarification(p models.PendingClarification) error {
	_, err := s.db.Exec(`
		INSERT INTO pending_clarifications (user_id, query, query_type, options, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			query = excluded.query,
			query_type = excluded.query_type,
			options = excluded.options,
			expires_at = excluded.expires_at
	`, p.UserID, p.Query, p.QueryType, string(p.Options), p.ExpiresAt.Unix())
	return err
}

// GetPendingClarification returns the open question for userID, or nil when
// there is none or it expired before now.
func (s *Store) GetPendingClarification(userID string, now time.Time) (*models.PendingClarification, error) {
	row := s.db.QueryRow(`
		SELECT user_id, query, query_type, options, expires_at
		FROM pending_clarifications
		WHERE user_id = ? AND expires_at > ?
	`, userID, now.Unix())

	var p models.PendingClarification
	var options string
	var expiresAt int64
	err := row.Scan(&p.UserID, &p.Query, &p.QueryType, &options, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.Options = []byte(options)
	p.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	return &p, nil
}

func (s *Store) DeletePendingClarification(userID string) error {
	_, err := s.db.Exec(`DELETE FROM pending_clarifications WHERE user_id = ?`, userID)
	return err
}
