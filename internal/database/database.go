package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	log "github.com/sirupsen/logrus"

	"yatube/internal/config"
)

func Connect(cfg *config.Config) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.WithFields(log.Fields{"host": cfg.DBHost, "db": cfg.DBName}).Info("Connected to database successfully")
	return db, nil
}

// TxRunner runs a function inside a database transaction.
// Repositories take the *sqlx.Tx so several writes commit together.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

type sqlxTxRunner struct {
	db *sqlx.DB
}

func NewTxRunner(db *sqlx.DB) TxRunner {
	return &sqlxTxRunner{db: db}
}

// InTx commits when fn returns nil and rolls back otherwise.
func (r *sqlxTxRunner) InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
