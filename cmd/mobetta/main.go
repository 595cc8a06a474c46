package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tomyedwab/mobetta/config"
)

var version = "dev"

func usage() {
	fmt.Fprintf(os.Stderr, "mobetta %s\n\n", version)
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  %s seed  [--db path] [--rows n] [--encoding enc]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s query [--db path] [--format csv|jsonl] [--proxy] <sql>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s bench [--db path] [--conns n] [--iterations n]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nEnvironment variables (also read from .env):\n")
	fmt.Fprintf(os.Stderr, "  MOBETTA_DB, MOBETTA_ENCODING, MOBETTA_MIN_ALIAS_LEN, MOBETTA_LOG_LEVEL,\n")
	fmt.Fprintf(os.Stderr, "  MOBETTA_LOG_FORMAT, MOBETTA_EXPORT_FORMAT, MOBETTA_SEED_ROWS,\n")
	fmt.Fprintf(os.Stderr, "  MOBETTA_BENCH_CONNECTIONS, MOBETTA_BENCH_ITERATIONS, MOBETTA_QUERY_TIMEOUT\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	_ = godotenv.Load()
	cfg := config.Load()
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	command := os.Args[1]
	switch command {
	case "seed":
		seedCmd := flag.NewFlagSet("seed", flag.ExitOnError)
		dbPath := seedCmd.String("db", cfg.DBPath, "database file to create")
		rows := seedCmd.Int("rows", cfg.SeedRows, "number of users to insert")
		encoding := seedCmd.String("encoding", cfg.Encoding, "text encoding of a new database")
		seedCmd.Parse(os.Args[2:])
		err = seedUsers(ctx, seedOptions{Path: *dbPath, Rows: *rows, Encoding: *encoding}, logger)

	case "query":
		queryCmd := flag.NewFlagSet("query", flag.ExitOnError)
		dbPath := queryCmd.String("db", cfg.DBPath, "database file")
		format := queryCmd.String("format", cfg.ExportFormat, "output format: csv or jsonl")
		proxy := queryCmd.Bool("proxy", false, "run the query through the sqlproxy driver")
		queryCmd.Parse(os.Args[2:])
		if queryCmd.NArg() == 0 {
			fmt.Fprintf(os.Stderr, "Usage: %s query [--db path] [--format csv|jsonl] [--proxy] <sql>\n", os.Args[0])
			os.Exit(2)
		}
		qctx, cancel := context.WithTimeout(ctx, cfg.QueryTimeout)
		defer cancel()
		err = runQuery(qctx, os.Stdout, queryOptions{
			Path:        *dbPath,
			SQL:         strings.Join(queryCmd.Args(), " "),
			Format:      *format,
			Proxy:       *proxy,
			Encoding:    cfg.Encoding,
			MinAliasLen: cfg.MinAliasLen,
		}, logger)

	case "bench":
		benchCmd := flag.NewFlagSet("bench", flag.ExitOnError)
		dbPath := benchCmd.String("db", cfg.DBPath, "database file created by seed")
		conns := benchCmd.Int("conns", cfg.BenchConnections, "connections read in parallel")
		iterations := benchCmd.Int("iterations", cfg.BenchIterations, "full table reads per connection")
		minAlias := benchCmd.Int("min-alias-len", cfg.MinAliasLen, "shortest text that is aliased")
		benchCmd.Parse(os.Args[2:])
		var res *benchResult
		res, err = runBench(ctx, benchOptions{
			Path:        *dbPath,
			Connections: *conns,
			Iterations:  *iterations,
			MinAliasLen: *minAlias,
		}, logger)
		if err == nil {
			res.Log(logger)
		}

	case "version":
		fmt.Printf("mobetta %s\n", version)

	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		logger.Error("Command failed", "command", command, "error", err)
		os.Exit(1)
	}
}
