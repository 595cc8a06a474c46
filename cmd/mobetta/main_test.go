package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedTestDB(t *testing.T, rows int, encoding string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bench.db")
	if err := seedUsers(context.Background(), seedOptions{Path: path, Rows: rows, Encoding: encoding}, testLogger()); err != nil {
		t.Fatalf("seedUsers returned error: %v", err)
	}
	return path
}

func TestSeedUsers(t *testing.T) {
	path := seedTestDB(t, 25, "UTF-16")

	db := sqlx.MustConnect("sqlite3", path)
	defer db.Close()

	var count int
	if err := db.Get(&count, "SELECT count(*) FROM users"); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if count != 25 {
		t.Errorf("count = %d, want 25", count)
	}

	var enc string
	if err := db.Get(&enc, "PRAGMA encoding"); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if !strings.HasPrefix(enc, "UTF-16") {
		t.Errorf("encoding = %q, want UTF-16", enc)
	}

	var email string
	if err := db.Get(&email, "SELECT email FROM users WHERE name = 'User7'"); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if email != "user7@example.com" {
		t.Errorf("email = %q", email)
	}
}

func TestRunQueryCSV(t *testing.T) {
	path := seedTestDB(t, 3, "UTF-8")
	var out bytes.Buffer

	err := runQuery(context.Background(), &out, queryOptions{
		Path:   path,
		SQL:    "SELECT id, name FROM users ORDER BY id",
		Format: "csv",
	}, testLogger())
	if err != nil {
		t.Fatalf("runQuery returned error: %v", err)
	}
	want := "id,name\r\n1,User0\r\n2,User1\r\n3,User2\r\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestRunQueryThroughProxy(t *testing.T) {
	path := seedTestDB(t, 2, "UTF-8")
	var out bytes.Buffer

	err := runQuery(context.Background(), &out, queryOptions{
		Path:  path,
		SQL:   "SELECT id, email FROM users ORDER BY id",
		Proxy: true,
	}, testLogger())
	if err != nil {
		t.Fatalf("runQuery returned error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines: %q", len(lines), out.String())
	}
	var row map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &row); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if row["email"] != "user1@example.com" || row["id"] != float64(2) {
		t.Errorf("row = %v", row)
	}
}

func TestRunQueryRejectsBadSQL(t *testing.T) {
	path := seedTestDB(t, 1, "UTF-8")
	err := runQuery(context.Background(), io.Discard, queryOptions{Path: path, SQL: "SELEC 1", Format: "csv"}, testLogger())
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestRunBench(t *testing.T) {
	path := seedTestDB(t, 50, "UTF-8")

	res, err := runBench(context.Background(), benchOptions{
		Path:        path,
		Connections: 3,
		Iterations:  2,
		MinAliasLen: 16,
	}, testLogger())
	if err != nil {
		t.Fatalf("runBench returned error: %v", err)
	}
	if res.Rows != 3*2*50 {
		t.Errorf("Rows = %d, want %d", res.Rows, 3*2*50)
	}
	// Every description is long enough to alias; every name is short enough
	// to copy.
	if res.Stats.Aliased < uint64(res.Rows) {
		t.Errorf("Aliased = %d, want at least %d", res.Stats.Aliased, res.Rows)
	}
	if res.Stats.Copied < uint64(res.Rows) {
		t.Errorf("Copied = %d, want at least %d", res.Stats.Copied, res.Rows)
	}
	if res.Stats.Promoted != 0 {
		t.Errorf("Promoted = %d, the bench never asks for owned strings", res.Stats.Promoted)
	}
	res.Log(testLogger())
}
