package utils

import (
	"database/sql"
	"fmt"
	"time"

	"civic-reports-service/config"

	"github.com/apex/log"
	_ "github.com/go-sql-driver/mysql"
)

func mysqlAddress(cfg *config.Config) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
}

func DBConnect(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", mysqlAddress(cfg))
	if err != nil {
		log.Errorf("Failed to connect to the database: %v", err)
		return nil, err
	}
	db.SetConnMaxLifetime(time.Minute * 3)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	log.Info("Established db connection.")
	return db, nil
}
