package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"civic-reports-service/models"

	"github.com/apex/log"
	"github.com/golang/geo/s2"
	geojson "github.com/paulmach/go.geojson"
)

const earthRadiusKm = 6371.01

// WardsService resolves coordinates to wards and municipalities.
// Containment runs against the MySQL spatial index; the nearest-centroid
// fallback is computed in-process over ward centroids.
type WardsService struct {
	db            *sql.DB
	maxDistanceKm float64
}

func NewWardsService(db *sql.DB, maxDistanceKm float64) *WardsService {
	return &WardsService{db: db, maxDistanceKm: maxDistanceKm}
}

// LoadWardFiles reads all GeoJSON files in dir and upserts ward reference
// data plus the spatial index. Ward features carry ward_number, municipality
// and optionally municipal_id properties.
func (s *WardsService) LoadWardFiles(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read ward files dir: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".geojson") {
			continue
		}
		n, err := s.loadWardFile(ctx, filepath.Join(dir, entry.Name()), entry.Name())
		if err != nil {
			log.Errorf("Failed to load ward file %s: %v", entry.Name(), err)
			return err
		}
		loaded += n
	}
	log.Infof("Loaded %d wards from %s", loaded, dir)
	return nil
}

func (s *WardsService) loadWardFile(ctx context.Context, path, fileID string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	collection, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	loaded := 0
	for _, feature := range collection.Features {
		wardNumber, err := intProperty(feature, "ward_number")
		if err != nil {
			log.Warnf("Skipping feature without ward_number in %s: %v", fileID, err)
			continue
		}
		municipality, ok := feature.Properties["municipality"].(string)
		if !ok || municipality == "" {
			log.Warnf("Skipping ward %d without municipality in %s", wardNumber, fileID)
			continue
		}

		lat, lng, err := geometryCentroid(feature.Geometry)
		if err != nil {
			return 0, fmt.Errorf("ward %d: %w", wardNumber, err)
		}

		geomJSON, err := feature.Geometry.MarshalJSON()
		if err != nil {
			return 0, fmt.Errorf("ward %d: failed to marshal geometry: %w", wardNumber, err)
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO wards
			(ward_number, municipality, geometry_json, centroid_lat, centroid_lng)
			VALUES (?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				municipality = VALUES(municipality),
				geometry_json = VALUES(geometry_json),
				centroid_lat = VALUES(centroid_lat),
				centroid_lng = VALUES(centroid_lng)`,
			wardNumber, municipality, string(geomJSON), lat, lng); err != nil {
			return 0, fmt.Errorf("ward %d: failed to upsert: %w", wardNumber, err)
		}

		wkt, err := GeometryToWKT(feature.Geometry)
		if err != nil {
			return 0, fmt.Errorf("ward %d: %w", wardNumber, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM ward_index WHERE ward_number = ?`, wardNumber); err != nil {
			return 0, fmt.Errorf("ward %d: failed to clear index: %w", wardNumber, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ward_index (ward_number, geom) VALUES (?, ST_GeomFromText(?, 4326))`,
			wardNumber, wkt); err != nil {
			return 0, fmt.Errorf("ward %d: failed to index geometry: %w", wardNumber, err)
		}

		// Make sure the owning municipality record exists. The counter is
		// left untouched for existing rows.
		municipalID, _ := intProperty(feature, "municipal_id")
		if _, err := tx.ExecContext(ctx, `INSERT INTO municipalities
			(name, ward_file_id, municipal_id, last_assigned_id)
			VALUES (?, ?, ?, 0)
			ON DUPLICATE KEY UPDATE ward_file_id = VALUES(ward_file_id)`,
			municipality, fileID, municipalID); err != nil {
			return 0, fmt.Errorf("municipality %s: failed to upsert: %w", municipality, err)
		}

		loaded++
	}

	return loaded, tx.Commit()
}

// ResolveWard finds the ward containing the point, falling back to the
// nearest ward centroid within the configured radius. Returns
// ErrUnresolvableLocation when nothing is close enough.
func (s *WardsService) ResolveWard(ctx context.Context, longitude, latitude float64) (*models.Ward, error) {
	row := s.db.QueryRowContext(ctx, `SELECT w.ward_number, w.municipality, w.centroid_lat, w.centroid_lng
		FROM ward_index wi
		JOIN wards w ON w.ward_number = wi.ward_number
		WHERE ST_Contains(wi.geom, ST_GeomFromText(?, 4326))
		LIMIT 1`, PointToWKT(longitude, latitude))

	ward := &models.Ward{}
	err := row.Scan(&ward.Number, &ward.Municipality, &ward.CentroidLat, &ward.CentroidLng)
	if err == nil {
		return ward, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to query ward containment: %w", err)
	}

	return s.nearestWard(ctx, longitude, latitude)
}

// nearestWard scans ward centroids and picks the closest one within the
// fallback radius.
func (s *WardsService) nearestWard(ctx context.Context, longitude, latitude float64) (*models.Ward, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ward_number, municipality, centroid_lat, centroid_lng FROM wards`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ward centroids: %w", err)
	}
	defer rows.Close()

	point := s2.LatLngFromDegrees(latitude, longitude)
	var best *models.Ward
	bestKm := s.maxDistanceKm

	for rows.Next() {
		ward := &models.Ward{}
		if err := rows.Scan(&ward.Number, &ward.Municipality, &ward.CentroidLat, &ward.CentroidLng); err != nil {
			return nil, fmt.Errorf("failed to scan ward: %w", err)
		}
		centroid := s2.LatLngFromDegrees(ward.CentroidLat, ward.CentroidLng)
		km := point.Distance(centroid).Radians() * earthRadiusKm
		if km <= bestKm {
			best = ward
			bestKm = km
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate wards: %w", err)
	}

	if best == nil {
		return nil, ErrUnresolvableLocation
	}
	log.Infof("No containing ward; using nearest ward %d at %.2f km", best.Number, bestKm)
	return best, nil
}

// MunicipalityForWard fetches the ward's owning municipality. A ward whose
// municipality record is missing is a data-integrity failure, not a
// not-serviceable one.
func (s *WardsService) MunicipalityForWard(ctx context.Context, ward *models.Ward) (*models.Municipality, error) {
	m := &models.Municipality{}
	err := s.db.QueryRowContext(ctx,
		`SELECT name, ward_file_id, municipal_id, last_assigned_id FROM municipalities WHERE name = ?`,
		ward.Municipality).Scan(&m.Name, &m.WardFileID, &m.MunicipalID, &m.LastAssignedID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: ward %d -> %q", ErrDataIntegrity, ward.Number, ward.Municipality)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query municipality: %w", err)
	}
	return m, nil
}

func intProperty(feature *geojson.Feature, key string) (int, error) {
	raw, exists := feature.Properties[key]
	if !exists {
		return 0, fmt.Errorf("%s not found in properties", key)
	}
	switch v := raw.(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, fmt.Errorf("unexpected %s type: %T", key, v)
	}
}

// geometryCentroid averages the exterior-ring vertices of the polygon (or
// the first polygon of a multi-polygon). Good enough for the nearest-ward
// fallback; wards are small and roughly convex.
func geometryCentroid(g *geojson.Geometry) (lat, lng float64, err error) {
	var ring [][]float64
	switch {
	case g.IsPolygon() && len(g.Polygon) > 0:
		ring = g.Polygon[0]
	case g.IsMultiPolygon() && len(g.MultiPolygon) > 0 && len(g.MultiPolygon[0]) > 0:
		ring = g.MultiPolygon[0][0]
	default:
		return 0, 0, fmt.Errorf("unsupported geometry type: %s", g.Type)
	}
	if len(ring) == 0 {
		return 0, 0, fmt.Errorf("empty polygon ring")
	}
	for _, point := range ring {
		lng += point[0]
		lat += point[1]
	}
	n := float64(len(ring))
	return lat / n, lng / n, nil
}
