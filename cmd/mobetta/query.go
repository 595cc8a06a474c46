package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/tomyedwab/mobetta/database"
	"github.com/tomyedwab/mobetta/export"
	"github.com/tomyedwab/mobetta/sqlproxy/driver"
	"github.com/tomyedwab/mobetta/sqlproxy/host"
)

type queryOptions struct {
	Path        string
	SQL         string
	Format      string
	Proxy       bool
	Encoding    string
	MinAliasLen int
}

// runQuery writes the result of opts.SQL to w.
func runQuery(ctx context.Context, w io.Writer, opts queryOptions, logger *slog.Logger) error {
	conn, err := database.Open(opts.Path,
		database.WithEncoding(opts.Encoding),
		database.WithMinAliasLen(opts.MinAliasLen),
		database.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer conn.Close()

	if opts.Proxy {
		return queryThroughProxy(ctx, w, conn, opts.SQL, logger)
	}

	enc, err := export.NewEncoder(export.Format(opts.Format), w)
	if err != nil {
		return err
	}
	defer enc.Close()

	stmt, err := conn.PrepareContext(ctx, opts.SQL)
	if err != nil {
		return err
	}
	defer stmt.Finalize()

	res, err := export.Stream(ctx, stmt, enc)
	if err != nil {
		return err
	}
	logger.Info("Query exported", "rows", res.RowsProcessed, "duration", res.Duration, "aliases", stmt.AliasStats().Aliased)
	return nil
}

// queryThroughProxy runs the query with database/sql over an in-process
// SQLHost and writes each row as a JSON object.
func queryThroughProxy(ctx context.Context, w io.Writer, conn *database.Conn, query string, logger *slog.Logger) error {
	h := host.NewSQLHost(conn, logger)
	db := sqlx.NewDb(sql.OpenDB(driver.NewConnector(h.HandleRequest)), "sqlproxy")
	db.SetMaxOpenConns(1)
	defer db.Close()

	rows, err := db.QueryxContext(ctx, query)
	if err != nil {
		return fmt.Errorf("proxy query failed: %w", err)
	}
	defer rows.Close()

	out := json.NewEncoder(w)
	var count int64
	for rows.Next() {
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return fmt.Errorf("failed to scan row: %w", err)
		}
		if err := out.Encode(row); err != nil {
			return err
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating rows: %w", err)
	}
	logger.Info("Proxy query complete", "rows", count)
	return nil
}
