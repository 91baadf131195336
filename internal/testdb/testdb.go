// Package testdb opens throwaway in-memory databases for repository and
// engine tests. The schema mirrors the production migrations with SQLite
// equivalents for the Postgres-only pieces (uuid generation, enum types).
// Generated ids use the canonical dashed form so rows created through a
// column default stay findable by uuid.UUID bind parameters.
package testdb

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var schema = []string{
	`CREATE TABLE users (
		id TEXT PRIMARY KEY NOT NULL DEFAULT (lower(hex(randomblob(4))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(6)))),
		name TEXT NOT NULL,
		phone TEXT,
		role TEXT NOT NULL,
		village TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE shops (
		id TEXT PRIMARY KEY NOT NULL DEFAULT (lower(hex(randomblob(4))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(6)))),
		name TEXT NOT NULL,
		owner_user_id TEXT NOT NULL,
		phone TEXT,
		address TEXT,
		categories TEXT,
		default_commission_rate NUMERIC NOT NULL DEFAULT 5,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE products (
		id TEXT PRIMARY KEY NOT NULL DEFAULT (lower(hex(randomblob(4))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(6)))),
		shop_id TEXT NOT NULL,
		name TEXT NOT NULL,
		unit TEXT NOT NULL DEFAULT 'kg',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE transactions (
		id TEXT PRIMARY KEY NOT NULL DEFAULT (lower(hex(randomblob(4))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(6)))),
		shop_id TEXT NOT NULL,
		farmer_id TEXT NOT NULL,
		buyer_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		quantity NUMERIC NOT NULL,
		unit_price NUMERIC NOT NULL,
		commission_rate NUMERIC NOT NULL,
		total_amount NUMERIC NOT NULL,
		commission_amount NUMERIC NOT NULL,
		farmer_earning NUMERIC NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CHECK (total_amount = commission_amount + farmer_earning)
	)`,
	`CREATE TABLE transaction_idempotency_keys (
		key TEXT PRIMARY KEY NOT NULL,
		buyer_id TEXT NOT NULL,
		farmer_id TEXT NOT NULL,
		shop_id TEXT NOT NULL,
		total_amount NUMERIC NOT NULL,
		transaction_id TEXT,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE payments (
		id TEXT PRIMARY KEY NOT NULL DEFAULT (lower(hex(randomblob(4))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(6)))),
		shop_id TEXT NOT NULL,
		payer_role TEXT NOT NULL,
		payee_role TEXT NOT NULL,
		counterparty_id TEXT,
		transaction_id TEXT,
		amount NUMERIC NOT NULL,
		allocated_amount NUMERIC NOT NULL DEFAULT 0,
		method TEXT NOT NULL DEFAULT 'cash',
		status TEXT NOT NULL DEFAULT 'pending',
		cancelled_at DATETIME,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE payment_allocations (
		id TEXT PRIMARY KEY NOT NULL DEFAULT (lower(hex(randomblob(4))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(6)))),
		payment_id TEXT NOT NULL,
		transaction_id TEXT NOT NULL,
		allocated_amount NUMERIC NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT ux_payment_allocations_payment_tx UNIQUE (payment_id, transaction_id)
	)`,
	`CREATE TABLE expenses (
		id TEXT PRIMARY KEY NOT NULL DEFAULT (lower(hex(randomblob(4))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(6)))),
		user_id TEXT NOT NULL,
		shop_id TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		description TEXT,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE expense_settlements (
		id TEXT PRIMARY KEY NOT NULL DEFAULT (lower(hex(randomblob(4))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(6)))),
		expense_id TEXT NOT NULL,
		payment_id TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE ledger_entries (
		id TEXT PRIMARY KEY NOT NULL DEFAULT (lower(hex(randomblob(4))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(6)))),
		user_id TEXT NOT NULL,
		shop_id TEXT NOT NULL,
		direction TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		type TEXT NOT NULL,
		reference_type TEXT NOT NULL,
		reference_id TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE user_balances (
		id TEXT PRIMARY KEY NOT NULL DEFAULT (lower(hex(randomblob(4))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(2))) || '-' || lower(hex(randomblob(6)))),
		user_id TEXT NOT NULL,
		shop_id TEXT NOT NULL,
		balance NUMERIC NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 0,
		last_updated DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT ux_user_balances_user_shop UNIQUE (user_id, shop_id)
	)`,
}

// Open returns a fresh in-memory database with the full schema applied.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("applying schema: %v", err)
		}
	}

	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

// TxRunner adapts a raw gorm handle to the services' transaction interface.
type TxRunner struct {
	DB *gorm.DB
}

// WithTx runs fn inside a database transaction.
func (r TxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.DB.WithContext(ctx).Transaction(fn)
}
