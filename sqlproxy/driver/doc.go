// Package driver implements a database/sql/driver that proxies SQL to a host
// serving the cursor protocol of package sqlproxy/types, usually an
// sqlproxy/host.SQLHost wrapping a zero-copy database.Conn.
//
// Requests and responses are JSON. Every statement lives on the host; the
// driver only holds its ID and walks it row by row with the 'next' command, so
// a large result set is never materialized on either side.
//
// Usage:
//
//  1. Import the driver package. This registers the driver with the name "sqlproxy".
//     import _ "github.com/tomyedwab/mobetta/sqlproxy/driver"
//
//  2. Set the function that carries requests to the host, then open the
//     database as usual:
//
//	driver.SetHostHandler(sqlHost.HandleRequest)
//	db, err := sql.Open("sqlproxy", "") // DSN is ignored
//
//     Alternatively, bind a host function to one pool without touching the
//     global handler:
//
//	db := sql.OpenDB(driver.NewConnector(sqlHost.HandleRequest))
//
//  3. Use the *sql.DB (or an sqlx.DB wrapping it) to run queries and
//     transactions.
//
// Implemented Interfaces:
//
// - driver.Driver
// - driver.Connector
// - driver.Conn and driver.ExecerContext
// - driver.Stmt
// - driver.Tx
// - driver.Result
// - driver.Rows
//
// Limitations:
//
//   - Parameter binding is not supported; queries with arguments fail with
//     ErrArgsNotSupported.
//   - The host serializes all requests. A pool should be limited to one open
//     connection per host, since the host holds a single database connection.
//   - Contexts are accepted but not forwarded to the host.
//   - Host failures are returned wrapping a *types.HostError whose Kind tells
//     them apart.
package driver
