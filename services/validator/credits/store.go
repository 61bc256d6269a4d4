// Copyright (C) 2026 rosroyros
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package credits persists paid-tier citation credit balances. The ledger
// is the only durable state the validator consults; job records themselves
// live in memory only.
package credits

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrUnknownUser is returned when no ledger row exists for a token.
var ErrUnknownUser = errors.New("unknown user token")

// ErrInsufficientBalance is returned when a deduction would take a balance
// below zero. The ledger never goes negative.
var ErrInsufficientBalance = errors.New("insufficient credit balance")

// Ledger wraps the SQL database with credit helpers.
type Ledger struct {
	db *sql.DB
}

// Open opens (creating if needed) the credit ledger at the given path.
// Use ":memory:" for tests.
func Open(dataSourceName string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open credit ledger: %w", err)
	}
	l := &Ledger{db: db}
	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// initSchema initializes the ledger schema.
func (l *Ledger) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS credits (
		user_token TEXT PRIMARY KEY,
		balance INTEGER NOT NULL CHECK (balance >= 0),
		updated_at DATETIME NOT NULL
	);
	`
	_, err := l.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to init ledger schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Balance returns the current credit balance for a user token.
func (l *Ledger) Balance(ctx context.Context, userToken string) (int, error) {
	var balance int
	err := l.db.QueryRowContext(ctx,
		`SELECT balance FROM credits WHERE user_token = ?`, userToken).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUnknownUser
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return balance, nil
}

// Deduct removes n credits from a user's balance in a single conditional
// UPDATE, so concurrent deductions can never drive the balance negative.
func (l *Ledger) Deduct(ctx context.Context, userToken string, n int) error {
	if n <= 0 {
		return nil
	}
	res, err := l.db.ExecContext(ctx,
		`UPDATE credits SET balance = balance - ?, updated_at = ? WHERE user_token = ? AND balance >= ?`,
		n, time.Now().UTC(), userToken, n)
	if err != nil {
		return fmt.Errorf("failed to deduct credits: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read deduct result: %w", err)
	}
	if affected == 0 {
		// Either the row is missing or the balance is too low.
		if _, berr := l.Balance(ctx, userToken); errors.Is(berr, ErrUnknownUser) {
			return ErrUnknownUser
		}
		return ErrInsufficientBalance
	}
	return nil
}

// Grant adds n credits to a user's balance, creating the row if needed.
// Called by the billing webhook path, and by tests to seed balances.
func (l *Ledger) Grant(ctx context.Context, userToken string, n int) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO credits (user_token, balance, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_token) DO UPDATE SET balance = balance + ?, updated_at = ?`,
		userToken, n, time.Now().UTC(), n, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to grant credits: %w", err)
	}
	return nil
}
