package driver

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/tomyedwab/mobetta/database"
	"github.com/tomyedwab/mobetta/sqlproxy/host"
	"github.com/tomyedwab/mobetta/sqlproxy/types"
)

type user struct {
	ID     int64          `db:"id"`
	Name   string         `db:"name"`
	Email  sql.NullString `db:"email"`
	Avatar []byte         `db:"avatar"`
}

// setupProxyDB returns an sqlx handle whose queries run through an SQLHost.
func setupProxyDB(t *testing.T) (*sqlx.DB, *host.SQLHost) {
	t.Helper()
	conn, err := database.Open(database.Memory)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	h := host.NewSQLHost(conn, nil)

	db := sqlx.NewDb(sql.OpenDB(NewConnector(h.HandleRequest)), driverName)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		db.Close()
		conn.Close()
	})

	db.MustExec(`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, email TEXT, avatar BLOB)`)
	db.MustExec(`INSERT INTO users (name, email, avatar) VALUES
		('Alice', 'alice@example.com', x'ff00'),
		('Bob', NULL, NULL),
		('Charlie', 'charlie@example.com', NULL)`)
	return db, h
}

func TestSelectThroughProxy(t *testing.T) {
	db, _ := setupProxyDB(t)

	var users []user
	if err := db.Select(&users, "SELECT id, name, email, avatar FROM users ORDER BY id"); err != nil {
		t.Fatalf("Select returned error: %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("got %d users, want 3", len(users))
	}
	if users[0].Name != "Alice" || users[0].Email.String != "alice@example.com" || string(users[0].Avatar) != "\xff\x00" {
		t.Errorf("users[0] = %+v", users[0])
	}
	if users[1].Email.Valid {
		t.Errorf("Bob's email should be NULL, got %+v", users[1].Email)
	}
	if users[2].ID != 3 {
		t.Errorf("users[2].ID = %d", users[2].ID)
	}

	var count int
	if err := db.Get(&count, "SELECT count(*) FROM users"); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d", count)
	}
}

func TestExecResult(t *testing.T) {
	db, _ := setupProxyDB(t)

	res, err := db.Exec("INSERT INTO users (name) VALUES ('Dana')")
	if err != nil {
		t.Fatalf("Exec returned error: %v", err)
	}
	if id, _ := res.LastInsertId(); id != 4 {
		t.Errorf("LastInsertId = %d, want 4", id)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		t.Errorf("RowsAffected = %d, want 1", n)
	}

	stmt, err := db.Preparex("DELETE FROM users WHERE email IS NULL")
	if err != nil {
		t.Fatalf("Preparex returned error: %v", err)
	}
	defer stmt.Close()
	res, err = stmt.Exec()
	if err != nil {
		t.Fatalf("stmt.Exec returned error: %v", err)
	}
	if n, _ := res.RowsAffected(); n != 2 {
		t.Errorf("RowsAffected = %d, want 2", n)
	}
}

func TestPreparedStatementRunsTwice(t *testing.T) {
	db, _ := setupProxyDB(t)

	stmt, err := db.Preparex("SELECT name FROM users ORDER BY id")
	if err != nil {
		t.Fatalf("Preparex returned error: %v", err)
	}
	defer stmt.Close()

	for pass := 0; pass < 2; pass++ {
		var names []string
		if err := stmt.Select(&names); err != nil {
			t.Fatalf("pass %d: Select returned error: %v", pass, err)
		}
		if len(names) != 3 || names[0] != "Alice" {
			t.Errorf("pass %d: names = %v", pass, names)
		}
	}
}

func TestTransactions(t *testing.T) {
	db, _ := setupProxyDB(t)

	tx := db.MustBegin()
	tx.MustExec("INSERT INTO users (name) VALUES ('Rolled back')")
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback returned error: %v", err)
	}

	tx = db.MustBegin()
	tx.MustExec("INSERT INTO users (name) VALUES ('Committed')")
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit returned error: %v", err)
	}

	var names []string
	if err := db.Select(&names, "SELECT name FROM users WHERE id > 3 ORDER BY id"); err != nil {
		t.Fatalf("Select returned error: %v", err)
	}
	if len(names) != 1 || names[0] != "Committed" {
		t.Errorf("names = %v", names)
	}
}

func TestHostErrorsAreTyped(t *testing.T) {
	db, _ := setupProxyDB(t)

	_, err := db.Exec("INSERT INTO users (id, name) VALUES (1, 'Duplicate')")
	var hostErr *types.HostError
	if !errors.As(err, &hostErr) {
		t.Fatalf("expected *types.HostError, got %v", err)
	}
	if hostErr.Kind != types.KindQuery {
		t.Errorf("Kind = %q, want %q", hostErr.Kind, types.KindQuery)
	}

	_, err = db.Query("SELECT * FROM missing")
	if !errors.As(err, &hostErr) || hostErr.Kind != types.KindPrepare {
		t.Errorf("expected a prepare HostError, got %v", err)
	}

	if _, err := db.Exec("SELECT 1", 42); !errors.Is(err, ErrArgsNotSupported) {
		t.Errorf("expected ErrArgsNotSupported, got %v", err)
	}
}

func TestStatementsAreReleased(t *testing.T) {
	db, h := setupProxyDB(t)

	for i := 0; i < 5; i++ {
		var n int
		if err := db.Get(&n, "SELECT count(*) FROM users"); err != nil {
			t.Fatalf("Get returned error: %v", err)
		}
	}
	if n := h.OpenStatements(); n != 0 {
		t.Errorf("host still holds %d statements", n)
	}
}
