package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"agt_platform/internal/platform/config"
	"agt_platform/internal/platform/logger"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

//go:embed schema.sql
var schemaSQL string

// Connect opens the pgx-backed pool and verifies it.
func Connect(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DBConnStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err = db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	logger.Get().Info().Str("host", cfg.DBHost).Str("db", cfg.DBName).Msg("Successfully connected to PostgreSQL database")
	return db, nil
}

// OpenGorm wraps an existing pool so gorm and database/sql share connections.
func OpenGorm(db *sql.DB) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("error opening gorm session: %w", err)
	}
	return gdb, nil
}

// Migrate applies the idempotent schema. Every statement uses IF NOT EXISTS.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("error applying schema: %w", err)
	}
	logger.Get().Info().Msg("Database schema is up to date")
	return nil
}

func Close(db *sql.DB) {
	if db != nil {
		db.Close()
		logger.Get().Info().Msg("Database connection closed")
	}
}
