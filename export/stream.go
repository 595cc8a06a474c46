package export

import (
	"context"
	"fmt"
	"time"

	"github.com/tomyedwab/mobetta/database"
)

// Result contains stats about an export.
type Result struct {
	RowsProcessed int64
	Duration      time.Duration
}

// Stream walks stmt from its current position to the end and writes every row
// to encoder, then flushes it. The context is checked between rows.
func Stream(ctx context.Context, stmt *database.Stmt, encoder RowEncoder) (*Result, error) {
	start := time.Now()

	if err := encoder.WriteHeader(stmt.Columns()); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	var rowCount int64
	it := stmt.Iter()
	for it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := encoder.WriteRow(it.Row()); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", rowCount+1, err)
		}
		rowCount++
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}

	if err := encoder.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush encoder: %w", err)
	}

	return &Result{
		RowsProcessed: rowCount,
		Duration:      time.Since(start),
	}, nil
}
