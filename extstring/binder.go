// Package extstring hands out text values that alias a cursor's row buffer
// instead of copying it, and keeps those values readable after the cursor has
// moved on.
//
// A Binder belongs to one statement. Every String it issues is tagged with the
// binder's current generation. Before the statement steps, resets or is
// finalized it calls Invalidate. When the row buffer is reused, Invalidate
// either copies the outstanding aliases of the generation into a compact
// snapshot, or, if one of them was handed out as a raw zero-copy string,
// detaches the row buffer so the engine never writes it again. A stable buffer
// is never rewritten, so Invalidate only advances the generation. Either way a
// String kept past its row reads the bytes it had when it was produced.
//
// Binders and Strings are not safe for concurrent use; they follow the
// single-owner discipline of the statement they belong to.
package extstring

import (
	"log/slog"
)

// Buffer is the owner of the row buffer that aliases point into.
type Buffer interface {
	// Detach makes the owner stop reusing its current buffer.
	Detach()
}

// Options tunes the alias-or-copy decision.
type Options struct {
	// MinAliasLen is the shortest text that is aliased. Shorter text is copied
	// when it is bound, since tracking it costs more than the copy.
	MinAliasLen int

	// Stable reports that the Buffer never rewrites memory it handed out.
	// Aliases then need no protection when the row changes.
	Stable bool

	// Logger receives debug records for snapshots and detaches.
	Logger *slog.Logger
}

// DefaultMinAliasLen is used when Options.MinAliasLen is zero.
const DefaultMinAliasLen = 16

// Stats counts the binder's decisions over its lifetime.
type Stats struct {
	Aliased     uint64 // text issued as an alias
	Copied      uint64 // short text copied at bind time
	Promoted    uint64 // aliases turned into owned strings by String()
	Snapshotted uint64 // aliases copied out by Invalidate
	Detached    uint64 // generations whose buffer was handed off instead
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Aliased += o.Aliased
	s.Copied += o.Copied
	s.Promoted += o.Promoted
	s.Snapshotted += o.Snapshotted
	s.Detached += o.Detached
}

// Binder issues Strings for one statement.
type Binder struct {
	buf    Buffer
	minLen int
	stable bool
	logger *slog.Logger

	gen    uint64
	live   []*ref
	pinned bool
	stats  Stats
}

// NewBinder returns a binder for the row buffer owned by buf.
func NewBinder(buf Buffer, opts Options) *Binder {
	minLen := opts.MinAliasLen
	if minLen == 0 {
		minLen = DefaultMinAliasLen
	}
	if minLen < 0 {
		minLen = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Binder{buf: buf, minLen: minLen, stable: opts.Stable, logger: logger, gen: 1}
}

// Generation is the number of the row currently being served. It starts at
// one and grows by one on every Invalidate.
func (b *Binder) Generation() uint64 { return b.gen }

// Stats returns the decision counters.
func (b *Binder) Stats() Stats { return b.stats }

// Outstanding is the number of aliases of the current generation that still
// point into a reused row buffer. It is always zero for a stable buffer.
func (b *Binder) Outstanding() int { return len(b.live) }

// Bind issues a String for p, which must point into the buffer owned by the
// binder's Buffer and stay unchanged until the next Invalidate.
func (b *Binder) Bind(p []byte) String {
	if len(p) == 0 {
		return String{}
	}
	if len(p) < b.minLen {
		b.stats.Copied++
		return String{s: string(p)}
	}
	r := &ref{b: b, gen: b.gen, view: p}
	if !b.stable {
		b.live = append(b.live, r)
	}
	b.stats.Aliased++
	return String{r: r}
}

// Invalidate must be called before the row buffer can be written again. After
// it returns every String issued so far reads from memory the engine will not
// touch.
func (b *Binder) Invalidate() {
	switch {
	case b.stable:
		// Nothing issued can change.
	case b.pinned:
		b.buf.Detach()
		b.stats.Detached++
		b.logger.Debug("row buffer detached", "generation", b.gen, "aliases", len(b.live))
	case len(b.live) > 0:
		b.snapshot()
	}
	clear(b.live)
	b.live = b.live[:0]
	b.pinned = false
	b.gen++
}

// snapshot copies the aliases that were not promoted into one allocation and
// points them at it.
func (b *Binder) snapshot() {
	total, n := 0, 0
	for _, r := range b.live {
		if !r.owned {
			total += len(r.view)
			n++
		}
	}
	if n == 0 {
		return
	}
	snap := make([]byte, 0, total)
	for _, r := range b.live {
		if r.owned {
			continue
		}
		start := len(snap)
		snap = append(snap, r.view...)
		r.view = snap[start:len(snap):len(snap)]
	}
	b.stats.Snapshotted += uint64(n)
	b.logger.Debug("aliases copied on invalidate", "generation", b.gen, "aliases", n, "bytes", total)
}

func (b *Binder) pin() {
	b.pinned = true
}
