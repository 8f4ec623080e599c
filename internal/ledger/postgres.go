// Copyright (c) 2025 Billpay
// Licensed under the MIT License. See LICENSE file in the project root for details.

package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"billpay/cli/internal/logging"
)

const createTable = `CREATE TABLE IF NOT EXISTS billpay_receipts (
	id               BIGSERIAL PRIMARY KEY,
	transaction_id   TEXT NOT NULL,
	status           TEXT NOT NULL,
	success          BOOLEAN NOT NULL,
	amount           NUMERIC(14,2) NOT NULL,
	currency         TEXT NOT NULL,
	account_value    TEXT NOT NULL,
	country_code     TEXT NOT NULL DEFAULT '',
	service_name     TEXT NOT NULL DEFAULT '',
	provider_name    TEXT NOT NULL DEFAULT '',
	product_id       TEXT NOT NULL DEFAULT '',
	product_name     TEXT NOT NULL DEFAULT '',
	mode             TEXT NOT NULL,
	reference_number TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL
)`

const insertReceipt = `INSERT INTO billpay_receipts (
	transaction_id, status, success, amount, currency, account_value,
	country_code, service_name, provider_name, product_id, product_name,
	mode, reference_number, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

const selectRecent = `SELECT transaction_id, status, success, amount::float8, currency, account_value,
	country_code, service_name, provider_name, product_id, product_name,
	mode, reference_number, created_at
FROM billpay_receipts ORDER BY created_at DESC, id DESC LIMIT $1`

// PostgresStore persists receipts in a billpay_receipts table.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// NewPostgresStore connects to dsn, verifies the connection and creates the
// receipts table when missing.
func NewPostgresStore(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStore, error) {
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctxPing, dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: open pool: %w", err)
	}
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ledger: ping: %w", err)
	}
	if _, err := pool.Exec(ctxPing, createTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ledger: create table: %w", err)
	}
	return &PostgresStore{pool: pool, log: logging.OrNop(logger).Named("ledger")}, nil
}

// Record inserts r inside a transaction.
func (s *PostgresStore) Record(ctx context.Context, r Receipt) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("ledger: acquire: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ledger: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if _, err := tx.Exec(ctx, insertReceipt,
		r.TransactionID, r.Status, r.Success, r.Amount, r.Currency, r.AccountValue,
		r.CountryCode, r.ServiceName, r.ProviderName, r.ProductID, r.ProductName,
		r.Mode, r.ReferenceNumber, r.CreatedAt,
	); err != nil {
		return fmt.Errorf("ledger: insert: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ledger: commit: %w", err)
	}
	s.log.Debug("receipt recorded", zap.String("transaction_id", r.TransactionID))
	return nil
}

// Recent returns up to limit receipts, newest first. limit <= 0 means 20.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Receipt, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, selectRecent, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: query: %w", err)
	}
	defer rows.Close()

	var out []Receipt
	for rows.Next() {
		var r Receipt
		if err := rows.Scan(
			&r.TransactionID, &r.Status, &r.Success, &r.Amount, &r.Currency, &r.AccountValue,
			&r.CountryCode, &r.ServiceName, &r.ProviderName, &r.ProductID, &r.ProductName,
			&r.Mode, &r.ReferenceNumber, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ledger: scan: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: rows: %w", err)
	}
	return out, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() { s.pool.Close() }
