package pageindex

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config configures [Open].
type Config struct {
	// Store is the page store to index. Required.
	Store Store

	// Path is the SQLite index file. Empty selects the in-memory strategy,
	// which keeps the index for the lifetime of the [Index] only.
	//
	// The file strategy also takes an exclusive lock on Path + ".lock" so
	// only one process maintains an index file at a time.
	Path string

	// Parse extracts links and tags from content. Defaults to [ParseMarkup].
	Parse ParseFunc

	// Logger receives walker diagnostics. Defaults to a discarding logger.
	Logger *slog.Logger

	// Registerer receives the index metrics. Nil keeps metrics unregistered.
	Registerer prometheus.Registerer

	// LockTimeout bounds how long Open waits for the index file lock.
	// Defaults to 10s.
	LockTimeout time.Duration

	// LinkBatchSize is how many flagged links one walker step re-resolves.
	// Defaults to 100.
	LinkBatchSize int

	// Now returns the current time. Defaults to [time.Now].
	Now func() time.Time
}

const (
	defaultLockTimeout   = 10 * time.Second
	defaultLinkBatchSize = 100
)
