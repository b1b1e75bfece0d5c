package database

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"civic-reports-service/models"
)

func TestAssignAuthorityPicksLowTier(t *testing.T) {
	it(func() {
		svc := NewAuthorityService(db)

		mock.ExpectQuery(`SELECT id, name, email, role, level, municipality, created_at`).
			WithArgs("Northfield", models.LevelLow).
			WillReturnRows(sqlmock.NewRows(
				[]string{"id", "name", "email", "role", "level", "municipality", "created_at"}).
				AddRow("MUN1-2", "Asha", "asha@northfield.example", models.RoleAdmin,
					models.LevelLow, "Northfield", time.Now()))

		authority, err := svc.AssignAuthority(context.Background(), "Northfield")
		if err != nil {
			t.Fatalf("AssignAuthority: unexpected error: %v", err)
		}
		if authority.ID != "MUN1-2" || authority.Level != models.LevelLow {
			t.Errorf("AssignAuthority: authority = %+v, want MUN1-2 at Low", authority)
		}
	})
}

func TestAssignAuthorityNoneConfigured(t *testing.T) {
	it(func() {
		svc := NewAuthorityService(db)

		mock.ExpectQuery(`SELECT id, name, email, role, level, municipality, created_at`).
			WithArgs("Ghosttown", models.LevelLow).
			WillReturnRows(sqlmock.NewRows(
				[]string{"id", "name", "email", "role", "level", "municipality", "created_at"}))

		_, err := svc.AssignAuthority(context.Background(), "Ghosttown")
		if !errors.Is(err, ErrNoAuthority) {
			t.Errorf("AssignAuthority: error = %v, want ErrNoAuthority", err)
		}
	})
}
