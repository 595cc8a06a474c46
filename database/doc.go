// Package database opens a SQLite database and walks query results one row at
// a time without copying text columns unless it has to.
//
// A Conn owns one engine connection. Conn.Prepare compiles a statement into a
// Stmt, which moves through the states Ready, HasRow, Done and Finalized:
//
//	stmt, err := conn.Prepare("SELECT id, name FROM users")
//	if err != nil {
//		return err
//	}
//	defer stmt.Finalize()
//	for stmt.Step() ... // or: for row, err := range stmt.All()
//
// Text values returned while the statement sits on a row alias the memory the
// engine decoded the row into. Reading them costs no copy. Keeping them is also
// safe. The SQLite engine never rewrites that memory, so a retained value
// keeps reading the text it was produced with at no cost. An engine that
// reuses a row buffer gets outstanding aliases copied out (or the buffer handed
// off) before the statement moves on. Call String() on a text value to get an
// owned Go string.
//
// A Conn and its statements are meant to be used by one goroutine at a time.
package database
