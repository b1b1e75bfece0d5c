package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jknair0/beforeeach"

	"civic-reports-service/models"
)

var (
	db   *sql.DB
	mock sqlmock.Sqlmock
)

func setUp() {
	db, mock, _ = sqlmock.New()
}

func tearDown() {
	db.Close()
}

var it = beforeeach.Create(setUp, tearDown)

func testActor() *models.Actor {
	return &models.Actor{ID: "MUN1-7", Name: "Reviewer", Role: models.RoleAdmin}
}

func testReporter() *models.Actor {
	return &models.Actor{ID: "usr_abc123", Name: "Citizen", Role: models.RoleUser}
}

func TestUpdateStatusRejectDefaultsReason(t *testing.T) {
	it(func() {
		svc := NewReportsService(db, nil, nil)
		actor := testActor()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT seq FROM reports WHERE seq = \? FOR UPDATE`).
			WithArgs(int64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(42))
		mock.ExpectExec(`UPDATE reports SET status = \?, rejection_reason = \?, escalated = false WHERE seq = \?`).
			WithArgs(models.StatusRejected, "No reason provided", int64(42)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO report_history`).
			WithArgs(int64(42), models.ActionRejected, actor.ID, actor.Name, actor.Role, "No reason provided", "").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := svc.UpdateStatus(context.Background(), actor, 42,
			&models.UpdateStatusRequest{Status: models.StatusRejected})
		if err != nil {
			t.Errorf("UpdateStatus: unexpected error: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestUpdateStatusRejectWithReason(t *testing.T) {
	it(func() {
		svc := NewReportsService(db, nil, nil)
		actor := testActor()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT seq FROM reports WHERE seq = \? FOR UPDATE`).
			WithArgs(int64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(42))
		mock.ExpectExec(`UPDATE reports SET status = \?, rejection_reason = \?, escalated = false WHERE seq = \?`).
			WithArgs(models.StatusRejected, "Duplicate", int64(42)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO report_history`).
			WithArgs(int64(42), models.ActionRejected, actor.ID, actor.Name, actor.Role, "Duplicate", "").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := svc.UpdateStatus(context.Background(), actor, 42,
			&models.UpdateStatusRequest{Status: models.StatusRejected, RejectionReason: "Duplicate"})
		if err != nil {
			t.Errorf("UpdateStatus: unexpected error: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestUpdateStatusSolvedClearsReason(t *testing.T) {
	it(func() {
		svc := NewReportsService(db, nil, nil)
		actor := testActor()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT seq FROM reports WHERE seq = \? FOR UPDATE`).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(7))
		mock.ExpectExec(`UPDATE reports SET status = \?, rejection_reason = NULL WHERE seq = \?`).
			WithArgs(models.StatusSolved, int64(7)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO report_history`).
			WithArgs(int64(7), models.ActionApproved, actor.ID, actor.Name, actor.Role, "fixed", "").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := svc.UpdateStatus(context.Background(), actor, 7,
			&models.UpdateStatusRequest{Status: models.StatusSolved, Notes: "fixed"})
		if err != nil {
			t.Errorf("UpdateStatus: unexpected error: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestUpdateStatusUnknownStatus(t *testing.T) {
	it(func() {
		svc := NewReportsService(db, nil, nil)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT seq FROM reports WHERE seq = \? FOR UPDATE`).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(7))
		mock.ExpectRollback()

		err := svc.UpdateStatus(context.Background(), testActor(), 7,
			&models.UpdateStatusRequest{Status: "archived"})
		if !errors.Is(err, ErrInvalidStatus) {
			t.Errorf("UpdateStatus: error = %v, want ErrInvalidStatus", err)
		}
	})
}

func TestUpdateStatusMissingReport(t *testing.T) {
	it(func() {
		svc := NewReportsService(db, nil, nil)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT seq FROM reports WHERE seq = \? FOR UPDATE`).
			WithArgs(int64(99)).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		err := svc.UpdateStatus(context.Background(), testActor(), 99,
			&models.UpdateStatusRequest{Status: models.StatusSolved})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("UpdateStatus: error = %v, want ErrNotFound", err)
		}
	})
}

func TestResubmitResetsHistory(t *testing.T) {
	it(func() {
		svc := NewReportsService(db, nil, nil)
		reporter := testReporter()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT reporter_id, status, COALESCE\(media_url, ''\), COALESCE\(media_type, 'image'\)`).
			WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows(
				[]string{"reporter_id", "status", "media_url", "media_type"}).
				AddRow(reporter.ID, models.StatusRejected, "https://cdn.example/r5.jpg", "image"))
		// No media in the resubmission; the stored attachment is kept.
		mock.ExpectExec(`UPDATE reports SET`).
			WithArgs("Park gate issue", "parks", "The gate latch does not close",
				models.SeverityLow, true, "https://cdn.example/r5.jpg", "image",
				models.StatusPending, int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM report_history WHERE report_seq = \?`).
			WithArgs(int64(5)).
			WillReturnResult(sqlmock.NewResult(0, 3))
		mock.ExpectExec(`INSERT INTO report_history`).
			WithArgs(int64(5), models.ActionCreated, reporter.ID, reporter.Name, reporter.Role,
				"Report resubmitted after rejection", "").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		check, err := svc.Resubmit(context.Background(), reporter, 5, &models.ResubmitRequest{
			Title:       "Park gate issue",
			Category:    "parks",
			Description: "The gate latch does not close",
			Severity:    models.SeverityLow,
		})
		if err != nil {
			t.Fatalf("Resubmit: unexpected error: %v", err)
		}
		if check.Severity != models.SeverityLow || !check.AIVerified {
			t.Errorf("Resubmit: check = %+v, want verified low", check)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestResubmitNotOwner(t *testing.T) {
	it(func() {
		svc := NewReportsService(db, nil, nil)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT reporter_id, status, COALESCE\(media_url, ''\), COALESCE\(media_type, 'image'\)`).
			WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows(
				[]string{"reporter_id", "status", "media_url", "media_type"}).
				AddRow("usr_other", models.StatusRejected, "", "image"))
		mock.ExpectRollback()

		_, err := svc.Resubmit(context.Background(), testReporter(), 5, &models.ResubmitRequest{
			Title: "t", Category: "c", Description: "d", Severity: models.SeverityLow,
		})
		if !errors.Is(err, ErrNotOwner) {
			t.Errorf("Resubmit: error = %v, want ErrNotOwner", err)
		}
	})
}

func TestResubmitNotRejected(t *testing.T) {
	it(func() {
		svc := NewReportsService(db, nil, nil)
		reporter := testReporter()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT reporter_id, status, COALESCE\(media_url, ''\), COALESCE\(media_type, 'image'\)`).
			WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows(
				[]string{"reporter_id", "status", "media_url", "media_type"}).
				AddRow(reporter.ID, models.StatusPending, "", "image"))
		mock.ExpectRollback()

		_, err := svc.Resubmit(context.Background(), reporter, 5, &models.ResubmitRequest{
			Title: "t", Category: "c", Description: "d", Severity: models.SeverityLow,
		})
		if !errors.Is(err, ErrNotRejected) {
			t.Errorf("Resubmit: error = %v, want ErrNotRejected", err)
		}
	})
}

func TestCreateReportPersistsInitialHistory(t *testing.T) {
	it(func() {
		svc := NewReportsService(db, NewWardsService(db, 10.0), NewAuthorityService(db))
		reporter := testReporter()
		now := time.Now()

		mock.ExpectQuery(`SELECT w.ward_number, w.municipality, w.centroid_lat, w.centroid_lng`).
			WillReturnRows(sqlmock.NewRows(
				[]string{"ward_number", "municipality", "centroid_lat", "centroid_lng"}).
				AddRow(12, "Northfield", 12.95, 77.60))
		mock.ExpectQuery(`SELECT name, ward_file_id, municipal_id, last_assigned_id FROM municipalities`).
			WithArgs("Northfield").
			WillReturnRows(sqlmock.NewRows(
				[]string{"name", "ward_file_id", "municipal_id", "last_assigned_id"}).
				AddRow("Northfield", "northfield.geojson", 1, 4))
		mock.ExpectQuery(`SELECT id, name, email, role, level, municipality, created_at`).
			WithArgs("Northfield", models.LevelLow).
			WillReturnRows(sqlmock.NewRows(
				[]string{"id", "name", "email", "role", "level", "municipality", "created_at"}).
				AddRow("MUN1-2", "Asha", "asha@northfield.example", models.RoleAdmin,
					models.LevelLow, "Northfield", now))

		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO reports`).
			WithArgs("Huge pothole", "roads", "Deep pothole near the bus stop",
				models.SeverityMedium, true, reporter.ID, reporter.Name,
				77.60, 12.95, 12, "Northfield", "", "", "", "", "", "image",
				models.StatusPending, "MUN1-2", models.LevelLow, true).
			WillReturnResult(sqlmock.NewResult(31, 1))
		mock.ExpectExec(`INSERT INTO report_history`).
			WithArgs(int64(31), models.ActionCreated, reporter.ID, reporter.Name,
				reporter.Role, "Report created", "").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		mock.ExpectQuery(`SELECT seq, title, category, description, severity, ai_verified`).
			WithArgs(int64(31)).
			WillReturnRows(sqlmock.NewRows([]string{
				"seq", "title", "category", "description", "severity", "ai_verified",
				"reporter_id", "reporter_name", "longitude", "latitude", "ward_number",
				"municipality", "building", "street", "locality", "property_type",
				"media_url", "media_type", "status", "assigned_to", "assigned_role",
				"escalated", "rejection_reason", "created_at", "updated_at"}).
				AddRow(31, "Huge pothole", "roads", "Deep pothole near the bus stop",
					models.SeverityMedium, true, reporter.ID, reporter.Name,
					77.60, 12.95, 12, "Northfield", "", "", "", "", "", "image",
					models.StatusPending, "MUN1-2", models.LevelLow, true, nil, now, now))
		mock.ExpectQuery(`SELECT id, report_seq, action, actor_id`).
			WithArgs(int64(31)).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "report_seq", "action", "actor_id", "actor_name", "actor_role",
				"notes", "recipient", "created_at"}).
				AddRow(1, 31, models.ActionCreated, reporter.ID, reporter.Name,
					reporter.Role, "Report created", "", now))

		report, check, err := svc.CreateReport(context.Background(), reporter,
			&models.CreateReportRequest{
				Title:       "Huge pothole",
				Category:    "roads",
				Description: "Deep pothole near the bus stop",
				Severity:    models.SeverityMedium,
				Coordinates: []float64{77.60, 12.95},
			})
		if err != nil {
			t.Fatalf("CreateReport: unexpected error: %v", err)
		}
		if report.Status != models.StatusPending {
			t.Errorf("CreateReport: status = %q, want %q", report.Status, models.StatusPending)
		}
		if len(report.History) != 1 || report.History[0].Action != models.ActionCreated {
			t.Errorf("CreateReport: history = %+v, want exactly one created entry", report.History)
		}
		if !check.AIVerified || check.Severity != models.SeverityMedium {
			t.Errorf("CreateReport: check = %+v, want verified medium", check)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestCreateReportNoAuthorityWritesNothing(t *testing.T) {
	it(func() {
		svc := NewReportsService(db, NewWardsService(db, 10.0), NewAuthorityService(db))

		mock.ExpectQuery(`SELECT w.ward_number, w.municipality, w.centroid_lat, w.centroid_lng`).
			WillReturnRows(sqlmock.NewRows(
				[]string{"ward_number", "municipality", "centroid_lat", "centroid_lng"}).
				AddRow(12, "Northfield", 12.95, 77.60))
		mock.ExpectQuery(`SELECT name, ward_file_id, municipal_id, last_assigned_id FROM municipalities`).
			WithArgs("Northfield").
			WillReturnRows(sqlmock.NewRows(
				[]string{"name", "ward_file_id", "municipal_id", "last_assigned_id"}).
				AddRow("Northfield", "northfield.geojson", 1, 4))
		mock.ExpectQuery(`SELECT id, name, email, role, level, municipality, created_at`).
			WithArgs("Northfield", models.LevelLow).
			WillReturnRows(sqlmock.NewRows(
				[]string{"id", "name", "email", "role", "level", "municipality", "created_at"}))

		_, _, err := svc.CreateReport(context.Background(), testReporter(),
			&models.CreateReportRequest{
				Title:       "Huge pothole",
				Description: "Deep pothole near the bus stop",
				Severity:    models.SeverityMedium,
				Coordinates: []float64{77.60, 12.95},
			})
		if !errors.Is(err, ErrNoAuthority) {
			t.Errorf("CreateReport: error = %v, want ErrNoAuthority", err)
		}
		// No transaction was opened, so nothing could have been written.
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestForwardReassignClearsRejectionReason(t *testing.T) {
	it(func() {
		svc := NewReportsService(db, nil, NewAuthorityService(db))
		actor := testActor()
		now := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT seq FROM reports WHERE seq = \? FOR UPDATE`).
			WithArgs(int64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(42))
		mock.ExpectQuery(`SELECT id, name, email, role, level, municipality, created_at`).
			WithArgs("MUN1-9").
			WillReturnRows(sqlmock.NewRows(
				[]string{"id", "name", "email", "role", "level", "municipality", "created_at"}).
				AddRow("MUN1-9", "Head", "head@northfield.example", models.RoleAdminHead,
					models.LevelMedium, "Northfield", now))
		mock.ExpectExec(`UPDATE reports SET status = \?, assigned_to = \?, assigned_role = \?, rejection_reason = NULL WHERE seq = \?`).
			WithArgs(models.StatusForwarded, "MUN1-9", models.LevelMedium, int64(42)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO report_history`).
			WithArgs(int64(42), models.ActionForwarded, actor.ID, actor.Name, actor.Role,
				"needs a higher tier", "MUN1-9").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := svc.Forward(context.Background(), actor, 42, &models.ForwardRequest{
			AssignTo: "MUN1-9",
			Notes:    "needs a higher tier",
		})
		if err != nil {
			t.Errorf("Forward: unexpected error: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestForwardTransferClearsRejectionReason(t *testing.T) {
	it(func() {
		svc := NewReportsService(db, nil, nil)
		actor := testActor()

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT seq FROM reports WHERE seq = \? FOR UPDATE`).
			WithArgs(int64(42)).
			WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(42))
		mock.ExpectExec(`UPDATE reports SET status = \?, rejection_reason = NULL`).
			WithArgs(models.StatusForwarded, "Westbrook", int64(42)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO report_history`).
			WithArgs(int64(42), models.ActionTransferred, actor.ID, actor.Name, actor.Role,
				"outside our boundary", "Westbrook").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := svc.Forward(context.Background(), actor, 42, &models.ForwardRequest{
			Municipality: "Westbrook",
			Notes:        "outside our boundary",
		})
		if err != nil {
			t.Errorf("Forward: unexpected error: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestForwardRequiresTarget(t *testing.T) {
	it(func() {
		svc := NewReportsService(db, nil, nil)
		err := svc.Forward(context.Background(), testActor(), 1, &models.ForwardRequest{})
		if !errors.Is(err, ErrValidation) {
			t.Errorf("Forward: error = %v, want ErrValidation", err)
		}
	})
}

func TestCreateReportValidation(t *testing.T) {
	it(func() {
		svc := NewReportsService(db, nil, nil)
		reporter := testReporter()

		testCases := []struct {
			name string
			req  *models.CreateReportRequest
		}{
			{
				name: "Missing title",
				req: &models.CreateReportRequest{
					Description: "d", Coordinates: []float64{77.1, 12.9}, Severity: models.SeverityLow,
				},
			},
			{
				name: "Missing coordinates",
				req: &models.CreateReportRequest{
					Title: "t", Description: "d", Severity: models.SeverityLow,
				},
			},
			{
				name: "Coordinates out of range",
				req: &models.CreateReportRequest{
					Title: "t", Description: "d", Coordinates: []float64{200, 12.9}, Severity: models.SeverityLow,
				},
			},
			{
				name: "Unknown severity",
				req: &models.CreateReportRequest{
					Title: "t", Description: "d", Coordinates: []float64{77.1, 12.9}, Severity: "critical",
				},
			},
		}

		for _, testCase := range testCases {
			_, _, err := svc.CreateReport(context.Background(), reporter, testCase.req)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("%s: error = %v, want ErrValidation", testCase.name, err)
			}
		}
	})
}
