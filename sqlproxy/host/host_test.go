package host

import (
	"encoding/json"
	"testing"

	"github.com/tomyedwab/mobetta/database"
	"github.com/tomyedwab/mobetta/sqlproxy/types"
)

func setupTestHost(t *testing.T) *SQLHost {
	t.Helper()
	conn, err := database.Open(database.Memory)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := conn.Exec(`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, avatar BLOB);
		INSERT INTO users VALUES (1, 'Alice', x'0102'), (2, '日本語テキストです、長い', NULL);`); err != nil {
		t.Fatalf("Exec returned error: %v", err)
	}
	return NewSQLHost(conn, nil)
}

func call[T any](t *testing.T, h *SQLHost, req types.SQLRequest) T {
	t.Helper()
	payload, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	respPayload, err := h.HandleRequest(payload)
	if err != nil {
		t.Fatalf("HandleRequest returned error: %v", err)
	}
	var resp T
	if err := json.Unmarshal(respPayload, &resp); err != nil {
		t.Fatalf("Unmarshal(%s) returned error: %v", respPayload, err)
	}
	return resp
}

func TestPrepareStepGet(t *testing.T) {
	h := setupTestHost(t)

	prep := call[types.GeneralResponse](t, h, types.SQLRequest{Command: types.CmdPrepare, SQL: "SELECT id, name, avatar FROM users ORDER BY id"})
	if prep.Error != "" {
		t.Fatalf("prepare error: %s", prep.Error)
	}
	if len(prep.Columns) != 3 || prep.Columns[1] != "name" {
		t.Fatalf("Columns = %v", prep.Columns)
	}

	step := call[types.StepResponse](t, h, types.SQLRequest{Command: types.CmdStep, StmtID: prep.StmtID})
	if !step.HasRow {
		t.Fatalf("step: %+v", step)
	}
	got := call[types.ValueResponse](t, h, types.SQLRequest{Command: types.CmdGet, StmtID: prep.StmtID, Name: "name"})
	if got.Value.Kind != "text" || got.Value.Text != "Alice" {
		t.Errorf("get name = %+v", got)
	}
	got = call[types.ValueResponse](t, h, types.SQLRequest{Command: types.CmdGet, StmtID: prep.StmtID, Column: 2})
	if got.Value.Kind != "blob" || string(got.Value.Blob) != "\x01\x02" {
		t.Errorf("get avatar = %+v", got)
	}

	next := call[types.RowResponse](t, h, types.SQLRequest{Command: types.CmdNext, StmtID: prep.StmtID})
	if next.Done || len(next.Row) != 3 {
		t.Fatalf("next = %+v", next)
	}
	if next.Row[1].Interface() != "日本語テキストです、長い" {
		t.Errorf("name = %#v", next.Row[1].Interface())
	}
	if next.Row[2].Interface() != nil {
		t.Errorf("avatar = %#v, want nil", next.Row[2].Interface())
	}

	next = call[types.RowResponse](t, h, types.SQLRequest{Command: types.CmdNext, StmtID: prep.StmtID})
	if !next.Done {
		t.Fatalf("expected done, got %+v", next)
	}

	fin := call[types.GeneralResponse](t, h, types.SQLRequest{Command: types.CmdFinalize, StmtID: prep.StmtID})
	if fin.Error != "" {
		t.Fatalf("finalize error: %s", fin.Error)
	}
	fin = call[types.GeneralResponse](t, h, types.SQLRequest{Command: types.CmdFinalize, StmtID: prep.StmtID})
	if fin.Error != "" {
		t.Fatalf("second finalize error: %s", fin.Error)
	}
	if h.OpenStatements() != 0 {
		t.Errorf("OpenStatements = %d", h.OpenStatements())
	}
}

func TestErrorKinds(t *testing.T) {
	h := setupTestHost(t)
	prep := call[types.GeneralResponse](t, h, types.SQLRequest{Command: types.CmdPrepare, SQL: "SELECT id FROM users"})

	tests := []struct {
		name string
		req  types.SQLRequest
		kind string
	}{
		{"bad sql", types.SQLRequest{Command: types.CmdPrepare, SQL: "SELEC 1"}, types.KindPrepare},
		{"bad exec", types.SQLRequest{Command: types.CmdExec, SQL: "INSERT INTO nope VALUES (1)"}, types.KindQuery},
		{"get before step", types.SQLRequest{Command: types.CmdGet, StmtID: prep.StmtID}, types.KindNoCurrentRow},
		{"unknown statement", types.SQLRequest{Command: types.CmdStep, StmtID: "missing"}, types.KindProtocol},
		{"unknown command", types.SQLRequest{Command: "explode"}, types.KindProtocol},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := call[types.GeneralResponse](t, h, tt.req)
			if resp.Error == "" {
				t.Fatal("expected an error")
			}
			if resp.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q (error %q)", resp.Kind, tt.kind, resp.Error)
			}
		})
	}

	call[types.StepResponse](t, h, types.SQLRequest{Command: types.CmdStep, StmtID: prep.StmtID})
	for _, tt := range []struct {
		req  types.SQLRequest
		kind string
	}{
		{types.SQLRequest{Command: types.CmdGet, StmtID: prep.StmtID, Name: "nope"}, types.KindUnknownColumn},
		{types.SQLRequest{Command: types.CmdGet, StmtID: prep.StmtID, Column: 7}, types.KindIndexRange},
	} {
		resp := call[types.GeneralResponse](t, h, tt.req)
		if resp.Kind != tt.kind {
			t.Errorf("Kind = %q, want %q", resp.Kind, tt.kind)
		}
	}
}

func TestExecReportsChanges(t *testing.T) {
	h := setupTestHost(t)

	resp := call[types.ExecResponse](t, h, types.SQLRequest{Command: types.CmdExec, SQL: "INSERT INTO users (name) VALUES ('Charlie')"})
	if resp.Error != "" {
		t.Fatalf("exec error: %s", resp.Error)
	}
	if resp.RowsAffected != 1 || resp.LastInsertID != 3 {
		t.Errorf("exec = %+v, want 1 row and id 3", resp)
	}

	resp = call[types.ExecResponse](t, h, types.SQLRequest{Command: types.CmdExec, SQL: "UPDATE users SET avatar = NULL"})
	if resp.RowsAffected != 3 {
		t.Errorf("RowsAffected = %d, want 3", resp.RowsAffected)
	}
}

func TestResetAndCloseConn(t *testing.T) {
	h := setupTestHost(t)
	prep := call[types.GeneralResponse](t, h, types.SQLRequest{Command: types.CmdPrepare, SQL: "SELECT name FROM users ORDER BY id"})

	first := call[types.RowResponse](t, h, types.SQLRequest{Command: types.CmdNext, StmtID: prep.StmtID})
	call[types.GeneralResponse](t, h, types.SQLRequest{Command: types.CmdReset, StmtID: prep.StmtID})
	again := call[types.RowResponse](t, h, types.SQLRequest{Command: types.CmdNext, StmtID: prep.StmtID})
	if first.Row[0].Text != "Alice" || again.Row[0].Text != "Alice" {
		t.Errorf("reset did not rewind: %+v then %+v", first, again)
	}

	row := call[types.RowResponse](t, h, types.SQLRequest{Command: types.CmdRow, StmtID: prep.StmtID})
	if len(row.Row) != 1 || row.Row[0].Text != "Alice" {
		t.Errorf("row = %+v", row)
	}

	call[types.GeneralResponse](t, h, types.SQLRequest{Command: types.CmdPrepare, SQL: "SELECT 1"})
	if h.OpenStatements() != 2 {
		t.Fatalf("OpenStatements = %d, want 2", h.OpenStatements())
	}
	closed := call[types.GeneralResponse](t, h, types.SQLRequest{Command: types.CmdCloseConn})
	if closed.Error != "" {
		t.Fatalf("close_conn error: %s", closed.Error)
	}
	if h.OpenStatements() != 0 {
		t.Errorf("OpenStatements = %d after close_conn", h.OpenStatements())
	}
}
