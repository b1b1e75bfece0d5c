package database

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"civic-reports-service/models"
)

const containmentQuery = `SELECT w.ward_number, w.municipality, w.centroid_lat, w.centroid_lng`

func TestResolveWardContainment(t *testing.T) {
	it(func() {
		svc := NewWardsService(db, 10.0)

		mock.ExpectQuery(containmentQuery).
			WillReturnRows(sqlmock.NewRows(
				[]string{"ward_number", "municipality", "centroid_lat", "centroid_lng"}).
				AddRow(12, "Northfield", 12.95, 77.60))

		ward, err := svc.ResolveWard(context.Background(), 77.60, 12.95)
		if err != nil {
			t.Fatalf("ResolveWard: unexpected error: %v", err)
		}
		if ward.Number != 12 || ward.Municipality != "Northfield" {
			t.Errorf("ResolveWard: ward = %+v, want ward 12 Northfield", ward)
		}
	})
}

func TestResolveWardNearestFallback(t *testing.T) {
	it(func() {
		svc := NewWardsService(db, 10.0)

		mock.ExpectQuery(containmentQuery).
			WillReturnRows(sqlmock.NewRows(
				[]string{"ward_number", "municipality", "centroid_lat", "centroid_lng"}))
		// Ward 3 is about 1.5 km away, ward 9 about 30 km.
		mock.ExpectQuery(`SELECT ward_number, municipality, centroid_lat, centroid_lng FROM wards`).
			WillReturnRows(sqlmock.NewRows(
				[]string{"ward_number", "municipality", "centroid_lat", "centroid_lng"}).
				AddRow(9, "Eastvale", 13.20, 77.75).
				AddRow(3, "Northfield", 12.96, 77.61))

		ward, err := svc.ResolveWard(context.Background(), 77.60, 12.95)
		if err != nil {
			t.Fatalf("ResolveWard: unexpected error: %v", err)
		}
		if ward.Number != 3 {
			t.Errorf("ResolveWard: ward = %+v, want nearest ward 3", ward)
		}
	})
}

func TestResolveWardBeyondRadius(t *testing.T) {
	it(func() {
		svc := NewWardsService(db, 10.0)

		mock.ExpectQuery(containmentQuery).
			WillReturnRows(sqlmock.NewRows(
				[]string{"ward_number", "municipality", "centroid_lat", "centroid_lng"}))
		// Only centroid is ~150 km away.
		mock.ExpectQuery(`SELECT ward_number, municipality, centroid_lat, centroid_lng FROM wards`).
			WillReturnRows(sqlmock.NewRows(
				[]string{"ward_number", "municipality", "centroid_lat", "centroid_lng"}).
				AddRow(9, "Farland", 14.30, 77.60))

		_, err := svc.ResolveWard(context.Background(), 77.60, 12.95)
		if !errors.Is(err, ErrUnresolvableLocation) {
			t.Errorf("ResolveWard: error = %v, want ErrUnresolvableLocation", err)
		}
	})
}

func TestMunicipalityForWardMissingRecord(t *testing.T) {
	it(func() {
		svc := NewWardsService(db, 10.0)

		mock.ExpectQuery(`SELECT name, ward_file_id, municipal_id, last_assigned_id FROM municipalities`).
			WithArgs("Ghosttown").
			WillReturnRows(sqlmock.NewRows(
				[]string{"name", "ward_file_id", "municipal_id", "last_assigned_id"}))

		_, err := svc.MunicipalityForWard(context.Background(),
			&models.Ward{Number: 4, Municipality: "Ghosttown"})
		if !errors.Is(err, ErrDataIntegrity) {
			t.Errorf("MunicipalityForWard: error = %v, want ErrDataIntegrity", err)
		}
	})
}
