package database

import (
	"database/sql"
	"fmt"

	"github.com/apex/log"
)

// InitSchema creates the necessary database tables if they don't exist
func InitSchema(db *sql.DB) error {
	log.Info("Initializing civic-reports-service database schema...")

	reportsTableSQL := `
	CREATE TABLE IF NOT EXISTS reports(
		seq BIGINT NOT NULL AUTO_INCREMENT,
		title VARCHAR(255) NOT NULL,
		category VARCHAR(64),
		description TEXT NOT NULL,
		severity ENUM('Low', 'Medium', 'High') NOT NULL,
		ai_verified BOOL NOT NULL DEFAULT false,
		reporter_id VARCHAR(64) NOT NULL,
		reporter_name VARCHAR(255) NOT NULL,
		longitude DOUBLE NOT NULL,
		latitude DOUBLE NOT NULL,
		ward_number INT NOT NULL,
		municipality VARCHAR(255) NOT NULL,
		building VARCHAR(255),
		street VARCHAR(255),
		locality VARCHAR(255),
		property_type VARCHAR(64),
		media_url VARCHAR(512),
		media_type ENUM('image', 'video') DEFAULT 'image',
		status ENUM('pending', 'solved', 'rejected', 'forwarded') NOT NULL DEFAULT 'pending',
		assigned_to VARCHAR(64) NOT NULL,
		assigned_role ENUM('Low', 'Medium', 'High') NOT NULL DEFAULT 'Low',
		escalated BOOL NOT NULL DEFAULT true,
		rejection_reason TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (seq),
		INDEX reporter_index (reporter_id),
		INDEX assigned_index (assigned_to),
		INDEX municipality_index (municipality),
		INDEX status_index (status)
	)`
	if _, err := db.Exec(reportsTableSQL); err != nil {
		return fmt.Errorf("failed to create reports table: %w", err)
	}
	log.Info("Reports table created/verified")

	historyTableSQL := `
	CREATE TABLE IF NOT EXISTS report_history(
		id BIGINT NOT NULL AUTO_INCREMENT,
		report_seq BIGINT NOT NULL,
		action ENUM('created', 'approved', 'rejected', 'forwarded', 'transferred', 'pending') NOT NULL,
		actor_id VARCHAR(64) NOT NULL,
		actor_name VARCHAR(255) NOT NULL,
		actor_role VARCHAR(32) NOT NULL,
		notes TEXT,
		recipient VARCHAR(255),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		INDEX report_seq_index (report_seq)
	)`
	if _, err := db.Exec(historyTableSQL); err != nil {
		return fmt.Errorf("failed to create report_history table: %w", err)
	}
	log.Info("Report_history table created/verified")

	wardsTableSQL := `
	CREATE TABLE IF NOT EXISTS wards(
		ward_number INT NOT NULL,
		municipality VARCHAR(255) NOT NULL,
		geometry_json JSON NOT NULL,
		centroid_lat DOUBLE NOT NULL,
		centroid_lng DOUBLE NOT NULL,
		PRIMARY KEY (ward_number),
		INDEX municipality_index (municipality)
	)`
	if _, err := db.Exec(wardsTableSQL); err != nil {
		return fmt.Errorf("failed to create wards table: %w", err)
	}
	log.Info("Wards table created/verified")

	wardIndexTableSQL := `
	CREATE TABLE IF NOT EXISTS ward_index(
		ward_number INT NOT NULL,
		geom GEOMETRY NOT NULL SRID 4326,
		SPATIAL INDEX(geom)
	)`
	if _, err := db.Exec(wardIndexTableSQL); err != nil {
		return fmt.Errorf("failed to create ward_index table: %w", err)
	}
	log.Info("Ward_index table created/verified")

	municipalitiesTableSQL := `
	CREATE TABLE IF NOT EXISTS municipalities(
		name VARCHAR(255) NOT NULL,
		ward_file_id VARCHAR(255),
		municipal_id INT NOT NULL,
		last_assigned_id INT NOT NULL DEFAULT 0,
		PRIMARY KEY (name)
	)`
	if _, err := db.Exec(municipalitiesTableSQL); err != nil {
		return fmt.Errorf("failed to create municipalities table: %w", err)
	}
	log.Info("Municipalities table created/verified")

	authoritiesTableSQL := `
	CREATE TABLE IF NOT EXISTS authorities(
		id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		role ENUM('admin', 'adminHead') NOT NULL,
		level ENUM('Low', 'Medium', 'High') NOT NULL,
		municipality VARCHAR(255) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		UNIQUE KEY email_unique (email),
		INDEX municipality_level_index (municipality, level)
	)`
	if _, err := db.Exec(authoritiesTableSQL); err != nil {
		return fmt.Errorf("failed to create authorities table: %w", err)
	}
	log.Info("Authorities table created/verified")

	citizensTableSQL := `
	CREATE TABLE IF NOT EXISTS citizens(
		id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		email_verified BOOL NOT NULL DEFAULT false,
		otp_code VARCHAR(8),
		otp_expires_at TIMESTAMP NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		UNIQUE KEY email_unique (email)
	)`
	if _, err := db.Exec(citizensTableSQL); err != nil {
		return fmt.Errorf("failed to create citizens table: %w", err)
	}
	log.Info("Citizens table created/verified")

	return nil
}
