package database

import (
	"context"
	"database/sql"
	"fmt"

	"civic-reports-service/models"
	"civic-reports-service/severity"

	"github.com/apex/log"
)

const defaultRejectionReason = "No reason provided"

const reportColumns = `seq, title, category, description, severity, ai_verified,
	reporter_id, reporter_name, longitude, latitude, ward_number, municipality,
	building, street, locality, property_type, media_url, media_type,
	status, assigned_to, assigned_role, escalated, rejection_reason,
	created_at, updated_at`

// ReportsService owns the report lifecycle: creation, review transitions and
// the audit history. All multi-table writes run in one transaction so a
// failed transition never leaves partial state.
type ReportsService struct {
	db          *sql.DB
	wards       *WardsService
	authorities *AuthorityService
}

func NewReportsService(db *sql.DB, wards *WardsService, authorities *AuthorityService) *ReportsService {
	return &ReportsService{db: db, wards: wards, authorities: authorities}
}

// CreateReport validates the submission, resolves the ward and the owning
// authority, cross-checks the declared severity and persists the report with
// its initial history entry. Resolution failures abort before anything is
// written.
func (s *ReportsService) CreateReport(ctx context.Context, reporter *models.Actor, req *models.CreateReportRequest) (*models.Report, *models.SeverityCheck, error) {
	if err := validateCreate(req); err != nil {
		return nil, nil, err
	}
	lng, lat := req.Coordinates[0], req.Coordinates[1]

	ward, err := s.wards.ResolveWard(ctx, lng, lat)
	if err != nil {
		return nil, nil, err
	}
	municipality, err := s.wards.MunicipalityForWard(ctx, ward)
	if err != nil {
		return nil, nil, err
	}
	assignee, err := s.authorities.AssignAuthority(ctx, municipality.Name)
	if err != nil {
		return nil, nil, err
	}

	predicted := severity.Classify(req.Title, req.Description, req.Category)
	cmp := severity.CompareSeverities(predicted.Severity, req.Severity, predicted.Confidence)
	check := &models.SeverityCheck{
		Severity:        cmp.FinalSeverity,
		Confidence:      cmp.Confidence,
		MatchedKeywords: predicted.MatchedKeywords,
		AIVerified:      cmp.AIVerified,
		Warning:         cmp.Warning,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	mediaType := req.MediaType
	if mediaType == "" {
		mediaType = "image"
	}
	result, err := tx.ExecContext(ctx, `INSERT INTO reports
		(title, category, description, severity, ai_verified,
		 reporter_id, reporter_name, longitude, latitude, ward_number, municipality,
		 building, street, locality, property_type, media_url, media_type,
		 status, assigned_to, assigned_role, escalated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.Title, req.Category, req.Description, cmp.FinalSeverity, cmp.AIVerified,
		reporter.ID, reporter.Name, lng, lat, ward.Number, municipality.Name,
		req.Building, req.Street, req.Locality, req.PropertyType, req.MediaURL, mediaType,
		models.StatusPending, assignee.ID, assignee.Level, true)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert report: %w", err)
	}
	seq, err := result.LastInsertId()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get report seq: %w", err)
	}

	if err := appendHistory(ctx, tx, seq, models.ActionCreated, reporter, "Report created", ""); err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Infof("Report %d created in ward %d (%s), assigned to %s",
		seq, ward.Number, municipality.Name, assignee.ID)

	report, err := s.GetReport(ctx, seq)
	if err != nil {
		return nil, nil, err
	}
	return report, check, nil
}

// UpdateStatus applies a review transition: approve to solved, reject with a
// reason, or reset back to pending. Each transition appends its audit entry.
func (s *ReportsService) UpdateStatus(ctx context.Context, actor *models.Actor, seq int64, req *models.UpdateStatusRequest) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockReport(ctx, tx, seq); err != nil {
		return err
	}

	switch req.Status {
	case models.StatusSolved:
		if _, err := tx.ExecContext(ctx,
			`UPDATE reports SET status = ?, rejection_reason = NULL WHERE seq = ?`,
			models.StatusSolved, seq); err != nil {
			return fmt.Errorf("failed to update report: %w", err)
		}
		if err := appendHistory(ctx, tx, seq, models.ActionApproved, actor, req.Notes, ""); err != nil {
			return err
		}

	case models.StatusRejected:
		reason := req.RejectionReason
		if reason == "" {
			reason = defaultRejectionReason
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE reports SET status = ?, rejection_reason = ?, escalated = false WHERE seq = ?`,
			models.StatusRejected, reason, seq); err != nil {
			return fmt.Errorf("failed to update report: %w", err)
		}
		if err := appendHistory(ctx, tx, seq, models.ActionRejected, actor, reason, ""); err != nil {
			return err
		}

	case models.StatusPending:
		if _, err := tx.ExecContext(ctx,
			`UPDATE reports SET status = ?, rejection_reason = NULL WHERE seq = ?`,
			models.StatusPending, seq); err != nil {
			return fmt.Errorf("failed to update report: %w", err)
		}
		if err := appendHistory(ctx, tx, seq, models.ActionPending, actor, req.Notes, ""); err != nil {
			return err
		}

	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, req.Status)
	}

	return tx.Commit()
}

// Forward reassigns the report to another authority, or records a transfer to
// an external municipality in the description when no assignee is given.
func (s *ReportsService) Forward(ctx context.Context, actor *models.Actor, seq int64, req *models.ForwardRequest) error {
	if req.AssignTo == "" && req.Municipality == "" {
		return fmt.Errorf("%w: forward needs assign_to or municipality", ErrValidation)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := lockReport(ctx, tx, seq); err != nil {
		return err
	}

	if req.AssignTo != "" {
		assignee, err := s.authorities.GetAuthority(ctx, req.AssignTo)
		if err != nil {
			return fmt.Errorf("failed to resolve forward target: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE reports SET status = ?, assigned_to = ?, assigned_role = ?, rejection_reason = NULL WHERE seq = ?`,
			models.StatusForwarded, assignee.ID, assignee.Level, seq); err != nil {
			return fmt.Errorf("failed to reassign report: %w", err)
		}
		if err := appendHistory(ctx, tx, seq, models.ActionForwarded, actor, req.Notes, assignee.ID); err != nil {
			return err
		}
	} else {
		if _, err := tx.ExecContext(ctx,
			`UPDATE reports SET status = ?, rejection_reason = NULL,
				description = CONCAT(description, '\n\n[Transferred to ', ?, ']')
			 WHERE seq = ?`,
			models.StatusForwarded, req.Municipality, seq); err != nil {
			return fmt.Errorf("failed to record transfer: %w", err)
		}
		if err := appendHistory(ctx, tx, seq, models.ActionTransferred, actor, req.Notes, req.Municipality); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Resubmit lets the reporter edit a rejected report and put it back in the
// queue. The history is replaced with a single fresh created entry; the
// resubmission is treated as a new case, not a continuation of the old audit
// trail.
func (s *ReportsService) Resubmit(ctx context.Context, reporter *models.Actor, seq int64, req *models.ResubmitRequest) (*models.SeverityCheck, error) {
	if severity.Rank(req.Severity) == 0 {
		return nil, fmt.Errorf("%w: unknown severity %q", ErrValidation, req.Severity)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var ownerID, status, mediaURL, mediaType string
	err = tx.QueryRowContext(ctx,
		`SELECT reporter_id, status, COALESCE(media_url, ''), COALESCE(media_type, 'image')
		 FROM reports WHERE seq = ? FOR UPDATE`, seq).
		Scan(&ownerID, &status, &mediaURL, &mediaType)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query report: %w", err)
	}
	if ownerID != reporter.ID {
		return nil, ErrNotOwner
	}
	if status != models.StatusRejected {
		return nil, ErrNotRejected
	}

	// New media replaces the old; a resubmission without media keeps what was
	// already attached.
	if req.MediaURL != "" {
		mediaURL = req.MediaURL
		mediaType = req.MediaType
	}
	if mediaType == "" {
		mediaType = "image"
	}

	predicted := severity.Classify(req.Title, req.Description, req.Category)
	cmp := severity.CompareSeverities(predicted.Severity, req.Severity, predicted.Confidence)
	check := &models.SeverityCheck{
		Severity:        cmp.FinalSeverity,
		Confidence:      cmp.Confidence,
		MatchedKeywords: predicted.MatchedKeywords,
		AIVerified:      cmp.AIVerified,
		Warning:         cmp.Warning,
	}

	if _, err := tx.ExecContext(ctx, `UPDATE reports SET
			title = ?, category = ?, description = ?, severity = ?, ai_verified = ?,
			media_url = ?, media_type = ?,
			status = ?, rejection_reason = NULL, escalated = true
		WHERE seq = ?`,
		req.Title, req.Category, req.Description, cmp.FinalSeverity, cmp.AIVerified,
		mediaURL, mediaType, models.StatusPending, seq); err != nil {
		return nil, fmt.Errorf("failed to update report: %w", err)
	}

	// Full history reset, the one exception to append-only.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM report_history WHERE report_seq = ?`, seq); err != nil {
		return nil, fmt.Errorf("failed to reset history: %w", err)
	}
	if err := appendHistory(ctx, tx, seq, models.ActionCreated, reporter,
		"Report resubmitted after rejection", ""); err != nil {
		return nil, err
	}

	return check, tx.Commit()
}

// SetAIVerified overrides the verification flag, used when the advisory
// photo/category check fails after creation.
func (s *ReportsService) SetAIVerified(ctx context.Context, seq int64, verified bool) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE reports SET ai_verified = ? WHERE seq = ?`, verified, seq); err != nil {
		return fmt.Errorf("failed to update verification flag: %w", err)
	}
	return nil
}

// GetReport fetches a report with its full history.
func (s *ReportsService) GetReport(ctx context.Context, seq int64) (*models.Report, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE seq = ?`, seq)
	report, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query report: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, report_seq, action, actor_id,
			actor_name, actor_role, COALESCE(notes, ''), COALESCE(recipient, ''), created_at
		FROM report_history WHERE report_seq = ? ORDER BY id`, seq)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var h models.HistoryEntry
		if err := rows.Scan(&h.ID, &h.ReportSeq, &h.Action, &h.ActorID,
			&h.ActorName, &h.ActorRole, &h.Notes, &h.Recipient, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		report.History = append(report.History, h)
	}
	return report, rows.Err()
}

// ListForReporter returns all reports submitted by the citizen.
func (s *ReportsService) ListForReporter(ctx context.Context, reporterID string) ([]*models.Report, error) {
	return s.list(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE reporter_id = ? ORDER BY seq DESC`,
		reporterID)
}

// ListForAuthority applies the visibility rule: Low-tier actors see all
// escalated reports for their municipality, higher tiers only what is
// explicitly assigned to them.
func (s *ReportsService) ListForAuthority(ctx context.Context, authority *models.Authority) ([]*models.Report, error) {
	if authority.Level == models.LevelLow {
		return s.list(ctx,
			`SELECT `+reportColumns+` FROM reports
			 WHERE municipality = ? AND escalated = true ORDER BY seq DESC`,
			authority.Municipality)
	}
	return s.list(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE assigned_to = ? ORDER BY seq DESC`,
		authority.ID)
}

// ReportsSince returns reports newer than the given seq, for the live feed.
func (s *ReportsService) ReportsSince(ctx context.Context, seq int64) ([]*models.Report, error) {
	return s.list(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE seq > ? ORDER BY seq`, seq)
}

func (s *ReportsService) list(ctx context.Context, query string, args ...any) ([]*models.Report, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	reports := []*models.Report{}
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*models.Report, error) {
	r := &models.Report{}
	var rejectionReason sql.NullString
	err := row.Scan(&r.Seq, &r.Title, &r.Category, &r.Description, &r.Severity,
		&r.AIVerified, &r.ReporterID, &r.ReporterName, &r.Longitude, &r.Latitude,
		&r.WardNumber, &r.Municipality, &r.Building, &r.Street, &r.Locality,
		&r.PropertyType, &r.MediaURL, &r.MediaType, &r.Status, &r.AssignedTo,
		&r.AssignedRole, &r.Escalated, &rejectionReason, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if rejectionReason.Valid {
		r.RejectionReason = &rejectionReason.String
	}
	return r, nil
}

func lockReport(ctx context.Context, tx *sql.Tx, seq int64) error {
	var got int64
	err := tx.QueryRowContext(ctx,
		`SELECT seq FROM reports WHERE seq = ? FOR UPDATE`, seq).Scan(&got)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock report: %w", err)
	}
	return nil
}

func appendHistory(ctx context.Context, tx *sql.Tx, seq int64, action string, actor *models.Actor, notes, recipient string) error {
	if _, err := tx.ExecContext(ctx, `INSERT INTO report_history
		(report_seq, action, actor_id, actor_name, actor_role, notes, recipient)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		seq, action, actor.ID, actor.Name, actor.Role, notes, recipient); err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

func validateCreate(req *models.CreateReportRequest) error {
	if req.Title == "" || req.Description == "" {
		return fmt.Errorf("%w: title and description are required", ErrValidation)
	}
	if len(req.Coordinates) != 2 {
		return fmt.Errorf("%w: coordinates must be [lng, lat]", ErrValidation)
	}
	lng, lat := req.Coordinates[0], req.Coordinates[1]
	if lng < -180 || lng > 180 || lat < -90 || lat > 90 {
		return fmt.Errorf("%w: coordinates out of range", ErrValidation)
	}
	if severity.Rank(req.Severity) == 0 {
		return fmt.Errorf("%w: unknown severity %q", ErrValidation, req.Severity)
	}
	return nil
}
