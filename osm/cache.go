package osm

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/apex/log"
)

const (
	// CacheGridSize is the grid size in meters for coordinate rounding
	CacheGridSize = 100.0
	// CacheTTL is how long cached results are valid
	CacheTTL = 30 * 24 * time.Hour
)

// CachedLocationService wraps the Nominatim client with database caching so
// nearby coordinates reuse one lookup.
type CachedLocationService struct {
	client *Client
	db     *sql.DB
}

func NewCachedLocationService(db *sql.DB, client *Client) *CachedLocationService {
	return &CachedLocationService{client: client, db: db}
}

// CreateCacheTable creates the location cache table if it doesn't exist
func (s *CachedLocationService) CreateCacheTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS osm_location_cache (
			id INT AUTO_INCREMENT PRIMARY KEY,
			lat_grid DOUBLE NOT NULL,
			lon_grid DOUBLE NOT NULL,
			address_json JSON NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			expires_at TIMESTAMP NOT NULL,
			UNIQUE KEY idx_lat_lon (lat_grid, lon_grid),
			INDEX idx_expires (expires_at)
		)
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create osm_location_cache table: %w", err)
	}
	log.Info("osm_location_cache table verified/created")
	return nil
}

// roundToGrid rounds a coordinate to the cache grid size so nearby points
// share a cache cell.
func roundToGrid(coord float64) float64 {
	metersPerDegree := 111320.0
	gridDegrees := CacheGridSize / metersPerDegree
	return math.Round(coord/gridDegrees) * gridDegrees
}

// GetAddress retrieves the reverse-geocoded address, using the cache when
// possible. Failures are the caller's problem to degrade on; this service
// never fabricates an address.
func (s *CachedLocationService) GetAddress(lat, lon float64) (*Address, error) {
	latGrid := roundToGrid(lat)
	lonGrid := roundToGrid(lon)

	addr, err := s.getFromCache(latGrid, lonGrid)
	if err == nil && addr != nil {
		return addr, nil
	}

	addr, err = s.client.ReverseGeocode(lat, lon)
	if err != nil {
		return nil, err
	}

	if err := s.saveToCache(latGrid, lonGrid, addr); err != nil {
		log.Warnf("Failed to cache geocode result: %v", err)
	}
	return addr, nil
}

func (s *CachedLocationService) getFromCache(latGrid, lonGrid float64) (*Address, error) {
	var addressJSON string
	err := s.db.QueryRow(`
		SELECT address_json
		FROM osm_location_cache
		WHERE lat_grid = ? AND lon_grid = ? AND expires_at > NOW()
	`, latGrid, lonGrid).Scan(&addressJSON)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	var addr Address
	if err := json.Unmarshal([]byte(addressJSON), &addr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached address: %w", err)
	}
	return &addr, nil
}

func (s *CachedLocationService) saveToCache(latGrid, lonGrid float64, addr *Address) error {
	addressJSON, err := json.Marshal(addr)
	if err != nil {
		return fmt.Errorf("failed to marshal address: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO osm_location_cache (lat_grid, lon_grid, address_json, expires_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			address_json = VALUES(address_json),
			expires_at = VALUES(expires_at),
			created_at = NOW()
	`, latGrid, lonGrid, string(addressJSON), time.Now().Add(CacheTTL))
	if err != nil {
		return fmt.Errorf("failed to save to cache: %w", err)
	}
	return nil
}

// CleanExpiredCache removes expired cache entries
func (s *CachedLocationService) CleanExpiredCache() (int64, error) {
	result, err := s.db.Exec("DELETE FROM osm_location_cache WHERE expires_at < NOW()")
	if err != nil {
		return 0, fmt.Errorf("failed to clean expired cache: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows, nil
}
