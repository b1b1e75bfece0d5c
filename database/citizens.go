package database

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"civic-reports-service/models"

	"golang.org/x/crypto/bcrypt"
)

const otpTTL = 10 * time.Minute

// CitizenService handles reporter accounts.
type CitizenService struct {
	db *sql.DB
}

func NewCitizenService(db *sql.DB) *CitizenService {
	return &CitizenService{db: db}
}

// Register creates a citizen account with email/password credentials.
func (s *CitizenService) Register(ctx context.Context, req models.RegisterRequest) (*models.Citizen, error) {
	var existing string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM citizens WHERE email = ?`, req.Email).Scan(&existing)
	if err == nil {
		return nil, errors.New("user already exists")
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to check user existence: %w", err)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	id := generateCitizenID()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO citizens (id, name, email, password_hash) VALUES (?, ?, ?, ?)`,
		id, req.Name, req.Email, string(passwordHash)); err != nil {
		return nil, fmt.Errorf("failed to insert citizen: %w", err)
	}

	return &models.Citizen{ID: id, Name: req.Name, Email: req.Email}, nil
}

// GetCitizen fetches a citizen by id.
func (s *CitizenService) GetCitizen(ctx context.Context, id string) (*models.Citizen, error) {
	c := &models.Citizen{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, created_at FROM citizens WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Email, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.New("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query citizen: %w", err)
	}
	return c, nil
}

// ResolveProfile implements the profile capability for citizens.
func (s *CitizenService) ResolveProfile(ctx context.Context, id string) (*models.Actor, error) {
	c, err := s.GetCitizen(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.Actor{ID: c.ID, Name: c.Name, Role: models.RoleUser}, nil
}

// IssueOTP mints a fresh verification code for the account and stores it with
// its expiry. The caller is responsible for delivering the code.
func (s *CitizenService) IssueOTP(ctx context.Context, email string) (string, error) {
	code := generateOTP()
	result, err := s.db.ExecContext(ctx,
		`UPDATE citizens SET otp_code = ?, otp_expires_at = ? WHERE email = ?`,
		code, time.Now().Add(otpTTL), email)
	if err != nil {
		return "", fmt.Errorf("failed to store verification code: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("failed to store verification code: %w", err)
	}
	if rows == 0 {
		return "", errors.New("user not found")
	}
	return code, nil
}

// VerifyOTP marks the account email-verified when the code matches and has
// not expired. The code is single-use; a successful check clears it.
func (s *CitizenService) VerifyOTP(ctx context.Context, email, code string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE citizens SET email_verified = true, otp_code = NULL, otp_expires_at = NULL
		 WHERE email = ? AND otp_code = ? AND otp_expires_at > NOW()`,
		email, code)
	if err != nil {
		return fmt.Errorf("failed to verify code: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to verify code: %w", err)
	}
	if rows == 0 {
		return errors.New("invalid or expired verification code")
	}
	return nil
}

// Authenticate checks citizen credentials and returns the citizen id.
func (s *CitizenService) Authenticate(ctx context.Context, email, password string) (string, error) {
	var id, passwordHash string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, password_hash FROM citizens WHERE email = ?`, email).
		Scan(&id, &passwordHash)
	if err == sql.ErrNoRows {
		return "", errors.New("invalid credentials")
	}
	if err != nil {
		return "", fmt.Errorf("failed to query citizen: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return "", errors.New("invalid credentials")
	}
	return id, nil
}

func generateCitizenID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return "usr_" + hex.EncodeToString(b)
}

func generateOTP() string {
	b := make([]byte, 4)
	rand.Read(b)
	return fmt.Sprintf("%06d", binary.BigEndian.Uint32(b)%1000000)
}
