package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"civic-reports-service/models"

	"github.com/apex/log"
	"golang.org/x/crypto/bcrypt"
)

// AuthorityService handles administrative actors and report ownership
// assignment.
type AuthorityService struct {
	db *sql.DB
}

func NewAuthorityService(db *sql.DB) *AuthorityService {
	return &AuthorityService{db: db}
}

// AssignAuthority picks the front-line contact for a new report: the Low-tier
// actor affiliated with the municipality. No such actor means report creation
// must fail outright, no orphaned reports are permitted.
func (s *AuthorityService) AssignAuthority(ctx context.Context, municipality string) (*models.Authority, error) {
	a := &models.Authority{}
	err := s.db.QueryRowContext(ctx, `SELECT id, name, email, role, level, municipality, created_at
		FROM authorities
		WHERE municipality = ? AND level = ?
		ORDER BY created_at
		LIMIT 1`, municipality, models.LevelLow).
		Scan(&a.ID, &a.Name, &a.Email, &a.Role, &a.Level, &a.Municipality, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w for municipality %q", ErrNoAuthority, municipality)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query authority: %w", err)
	}
	return a, nil
}

// GetAuthority fetches an administrative actor by id.
func (s *AuthorityService) GetAuthority(ctx context.Context, id string) (*models.Authority, error) {
	a := &models.Authority{}
	err := s.db.QueryRowContext(ctx, `SELECT id, name, email, role, level, municipality, created_at
		FROM authorities WHERE id = ?`, id).
		Scan(&a.ID, &a.Name, &a.Email, &a.Role, &a.Level, &a.Municipality, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.New("authority not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query authority: %w", err)
	}
	return a, nil
}

// ResolveProfile implements the profile capability for administrative actors.
func (s *AuthorityService) ResolveProfile(ctx context.Context, id string) (*models.Actor, error) {
	a, err := s.GetAuthority(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.Actor{ID: a.ID, Name: a.Name, Role: a.Role}, nil
}

// RegisterAuthority provisions an administrative actor. Administrative heads
// get a staff-facing id minted from the municipality's counter; the counter
// increment and the insert commit together.
func (s *AuthorityService) RegisterAuthority(ctx context.Context, req models.RegisterAuthorityRequest) (*models.Authority, error) {
	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var municipalID, lastAssigned int
	err = tx.QueryRowContext(ctx,
		`SELECT municipal_id, last_assigned_id FROM municipalities WHERE name = ? FOR UPDATE`,
		req.Municipality).Scan(&municipalID, &lastAssigned)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("unknown municipality %q", req.Municipality)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query municipality: %w", err)
	}

	lastAssigned++
	if _, err := tx.ExecContext(ctx,
		`UPDATE municipalities SET last_assigned_id = ? WHERE name = ?`,
		lastAssigned, req.Municipality); err != nil {
		return nil, fmt.Errorf("failed to advance municipality counter: %w", err)
	}

	id := fmt.Sprintf("MUN%d-%d", municipalID, lastAssigned)
	if _, err := tx.ExecContext(ctx, `INSERT INTO authorities
		(id, name, email, password_hash, role, level, municipality)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, req.Name, req.Email, string(passwordHash), req.Role, req.Level, req.Municipality); err != nil {
		return nil, fmt.Errorf("failed to insert authority: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Infof("Registered %s %s for %s", req.Role, id, req.Municipality)
	return &models.Authority{
		ID:           id,
		Name:         req.Name,
		Email:        req.Email,
		Role:         req.Role,
		Level:        req.Level,
		Municipality: req.Municipality,
	}, nil
}

// Authenticate checks authority credentials and returns the actor id.
func (s *AuthorityService) Authenticate(ctx context.Context, email, password string) (string, error) {
	var id, passwordHash string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, password_hash FROM authorities WHERE email = ?`, email).
		Scan(&id, &passwordHash)
	if err == sql.ErrNoRows {
		return "", errors.New("invalid credentials")
	}
	if err != nil {
		return "", fmt.Errorf("failed to query authority: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return "", errors.New("invalid credentials")
	}
	return id, nil
}
