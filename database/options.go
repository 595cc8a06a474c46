package database

import (
	"log/slog"
)

// Option configures Open and NewConn.
type Option func(*options)

type options struct {
	encoding    string
	minAliasLen int
	logger      *slog.Logger
}

// WithEncoding selects the text encoding of a new database file: "UTF-8"
// (default), "UTF-16", "UTF-16le" or "UTF-16be". It cannot be changed after
// the connection is open, and an existing file keeps its own encoding.
func WithEncoding(enc string) Option {
	return func(o *options) { o.encoding = enc }
}

// WithMinAliasLen sets the shortest text value that is handed out as an alias
// of the row buffer. Shorter values are copied right away. A negative n aliases
// every non-empty value.
func WithMinAliasLen(n int) Option {
	return func(o *options) { o.minAliasLen = n }
}

// WithLogger sets the logger for connection and statement lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}
