package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tomyedwab/mobetta/database"
	"github.com/tomyedwab/mobetta/extstring"
)

const benchQuery = "SELECT id, name, email, description FROM users"

type benchOptions struct {
	Path        string
	Connections int
	Iterations  int
	MinAliasLen int
}

type benchResult struct {
	Rows      int64
	TextBytes int64
	Duration  time.Duration
	Stats     extstring.Stats
}

func (r *benchResult) Log(logger *slog.Logger) {
	rate := float64(r.Rows) / r.Duration.Seconds()
	logger.Info("Benchmark complete",
		"rows", r.Rows,
		"text_bytes", r.TextBytes,
		"duration", r.Duration,
		"rows_per_second", fmt.Sprintf("%.0f", rate),
		"aliased", r.Stats.Aliased,
		"copied", r.Stats.Copied,
		"promoted", r.Stats.Promoted,
		"snapshotted", r.Stats.Snapshotted,
		"detached", r.Stats.Detached,
	)
}

// runBench reads the users table over several connections at once. Each
// connection belongs to exactly one goroutine.
func runBench(ctx context.Context, opts benchOptions, logger *slog.Logger) (*benchResult, error) {
	if opts.Connections < 1 {
		opts.Connections = 1
	}
	results := make([]benchResult, opts.Connections)
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < opts.Connections; i++ {
		g.Go(func() error {
			res, err := benchConnection(ctx, opts, logger.With("conn", i))
			if err != nil {
				return fmt.Errorf("connection %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := &benchResult{Duration: time.Since(start)}
	for _, r := range results {
		total.Rows += r.Rows
		total.TextBytes += r.TextBytes
		total.Stats.Add(r.Stats)
	}
	return total, nil
}

func benchConnection(ctx context.Context, opts benchOptions, logger *slog.Logger) (benchResult, error) {
	var res benchResult
	conn, err := database.Open(opts.Path, database.WithMinAliasLen(opts.MinAliasLen), database.WithLogger(logger))
	if err != nil {
		return res, err
	}
	defer conn.Close()

	for iter := 0; iter < opts.Iterations; iter++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		stmt, err := conn.PrepareContext(ctx, benchQuery)
		if err != nil {
			return res, err
		}
		for {
			ok, err := stmt.Step()
			if err != nil {
				stmt.Finalize()
				return res, err
			}
			if !ok {
				break
			}
			for col := 1; col < stmt.ColumnCount(); col++ {
				v, err := stmt.Column(col)
				if err != nil {
					stmt.Finalize()
					return res, err
				}
				if s, ok := v.Text(); ok {
					res.TextBytes += int64(s.Len())
				}
			}
			res.Rows++
		}
		res.Stats.Add(stmt.AliasStats())
		if err := stmt.Finalize(); err != nil {
			return res, err
		}
	}
	logger.Debug("Connection finished", "rows", res.Rows)
	return res, nil
}
