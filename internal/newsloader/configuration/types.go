package configuration

import (
	"time"

	commonconfig "github.com/newsbench/newsloader/internal/common/config"
	"github.com/newsbench/newsloader/internal/common/database"
	"github.com/newsbench/newsloader/internal/common/logging"
)

// LoaderConfiguration is the root configuration of a load.
type LoaderConfiguration struct {
	// Connection to the database holding the news schema.  Ignored when InMemory is set.
	Postgres database.PostgresConfig
	// Load into a process local store instead of postgres.  Useful for dry runs.
	InMemory bool
	// Truncate all six tables and restart their identities before loading.
	Reset bool
	// Base seed for every random choice of the run.  Zero picks a time based seed which is logged.
	Seed commonconfig.Seed
	// Number of windows loaded concurrently.  With one worker windows commit strictly in order.
	Workers int `validate:"gte=1"`
	// Upper bound on one attempt at a window, insert and commit included.  Zero disables the timeout.
	WindowTimeout time.Duration `validate:"gte=0"`
	// Upper bound on one attempt at inserting or reading back a reference table.  Zero disables the timeout.
	ReferenceTimeout time.Duration `validate:"gte=0"`
	// Render progress as a terminal progress bar instead of log lines.
	ProgressBar bool
	// Ask for confirmation before loading more than this many rows in total.  Zero never asks.
	ConfirmAboveRows int64 `validate:"gte=0"`
	Reference        ReferenceConfig
	News             NewsConfig
	Tags             TagsConfig
	Retry            RetryConfig
	Metrics          MetricsConfig
	Logging          logging.Config
}

// ReferenceConfig sizes the reference tables.
type ReferenceConfig struct {
	Sources    int      `validate:"gte=1"`
	Authors    int      `validate:"gte=1"`
	Tags       int      `validate:"gte=1"`
	Categories []string `validate:"required,min=1,unique,dive,required"`
}

// NewsConfig controls the fact table.
type NewsConfig struct {
	Total           int `validate:"gte=0"`
	BatchSize       int `validate:"gte=1"`
	TitleWords      int `validate:"gte=1"`
	ContentMaxChars int `validate:"gte=1"`
	// published_at is drawn uniformly from [PublishedUntil - PublishedWindow, PublishedUntil].
	PublishedWindow time.Duration `validate:"gt=0"`
	// Defaults to the time the run starts.
	PublishedUntil time.Time
}

// TagsConfig controls the association table.
type TagsConfig struct {
	MinPerNews int `validate:"gte=0"`
	MaxPerNews int `validate:"gte=0"`
}

// RetryConfig is the back-off policy applied to a window (and to the reference load) on transient failure.
type RetryConfig struct {
	Attempts       uint          `validate:"gte=1"`
	InitialBackoff time.Duration `validate:"gte=0"`
	MaxBackoff     time.Duration `validate:"gte=0"`
	// Maximum random jitter added to every back-off.
	MaxJitter time.Duration `validate:"gte=0"`
}

type MetricsConfig struct {
	Enabled bool
	Port    uint16
}

// TotalReferenceRows is the number of rows the reference load inserts.
func (c LoaderConfiguration) TotalReferenceRows() int64 {
	return int64(c.Reference.Sources + c.Reference.Authors + c.Reference.Tags + len(c.Reference.Categories))
}
