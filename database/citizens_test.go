package database

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func TestVerifyOTP(t *testing.T) {
	it(func() {
		svc := NewCitizenService(db)

		mock.ExpectExec(`UPDATE citizens SET email_verified = true, otp_code = NULL, otp_expires_at = NULL`).
			WithArgs("citizen@example.com", "123456").
			WillReturnResult(sqlmock.NewResult(0, 1))

		if err := svc.VerifyOTP(context.Background(), "citizen@example.com", "123456"); err != nil {
			t.Errorf("VerifyOTP: unexpected error: %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestVerifyOTPWrongOrExpiredCode(t *testing.T) {
	it(func() {
		svc := NewCitizenService(db)

		mock.ExpectExec(`UPDATE citizens SET email_verified = true, otp_code = NULL, otp_expires_at = NULL`).
			WithArgs("citizen@example.com", "000000").
			WillReturnResult(sqlmock.NewResult(0, 0))

		if err := svc.VerifyOTP(context.Background(), "citizen@example.com", "000000"); err == nil {
			t.Error("VerifyOTP accepted a wrong or expired code")
		}
	})
}

func TestIssueOTPUnknownEmail(t *testing.T) {
	it(func() {
		svc := NewCitizenService(db)

		mock.ExpectExec(`UPDATE citizens SET otp_code = \?, otp_expires_at = \?`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		if _, err := svc.IssueOTP(context.Background(), "nobody@example.com"); err == nil {
			t.Error("IssueOTP issued a code for an unknown email")
		}
	})
}

func TestIssueOTPStoresCode(t *testing.T) {
	it(func() {
		svc := NewCitizenService(db)

		mock.ExpectExec(`UPDATE citizens SET otp_code = \?, otp_expires_at = \?`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		code, err := svc.IssueOTP(context.Background(), "citizen@example.com")
		if err != nil {
			t.Fatalf("IssueOTP: unexpected error: %v", err)
		}
		if len(code) != 6 {
			t.Errorf("IssueOTP: code = %q, want six digits", code)
		}
	})
}
