package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tomyedwab/mobetta/engine"
)

const usersSchema = `CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY,
	name TEXT,
	email TEXT,
	description TEXT
)`

const descriptionText = "This is a longer description for user %d to test string performance with more substantial text content that will benefit from zero-copy access. "

type seedOptions struct {
	Path     string
	Rows     int
	Encoding string
}

// seedUsers creates the users table and fills it with generated rows in one
// transaction.
func seedUsers(ctx context.Context, opts seedOptions, logger *slog.Logger) error {
	enc, err := engine.NormalizeEncoding(opts.Encoding)
	if err != nil {
		return err
	}

	db, err := sqlx.Connect("sqlite3", opts.Path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", opts.Path, err)
	}
	defer db.Close()
	// The encoding pragma is per connection and only takes effect on an
	// empty database.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA encoding = '%s'", enc)); err != nil {
		return fmt.Errorf("failed to set encoding: %w", err)
	}
	if _, err := db.ExecContext(ctx, usersSchema); err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insert, err := tx.PreparexContext(ctx, "INSERT INTO users (name, email, description) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer insert.Close()

	for i := 0; i < opts.Rows; i++ {
		desc := strings.Repeat(fmt.Sprintf(descriptionText, i), 3)
		if _, err := insert.ExecContext(ctx, fmt.Sprintf("User%d", i), fmt.Sprintf("user%d@example.com", i), desc); err != nil {
			return fmt.Errorf("failed to insert user %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	var count int
	if err := db.GetContext(ctx, &count, "SELECT count(*) FROM users"); err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	logger.Info("Seeded users table", "path", opts.Path, "encoding", enc, "inserted", opts.Rows, "total", count)
	return nil
}
