package controller

import (
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/newsbench/newsloader/internal/common/loadcontext"
	"github.com/newsbench/newsloader/internal/common/loaderrors"
	"github.com/newsbench/newsloader/internal/common/logging"
	"github.com/newsbench/newsloader/internal/common/util"
	"github.com/newsbench/newsloader/internal/newsloader/db"
	"github.com/newsbench/newsloader/internal/newsloader/fabricate"
	"github.com/newsbench/newsloader/internal/newsloader/generator"
	"github.com/newsbench/newsloader/internal/newsloader/metrics"
)

// Seed streams.  Every window draws keys and content from its own sources so its rows depend only on
// the run seed and the window index.
const (
	keyStream     uint64 = 1
	contentStream uint64 = 2
)

const (
	rollbackTimeout = 10 * time.Second
	resolveTimeout  = time.Minute
)

// Config controls a run of the controller.
type Config struct {
	TotalNews      int
	BatchSize      int
	Workers        int
	Seed           int64
	MinTagsPerNews int
	MaxTagsPerNews int
	// Bounds one attempt at a window.  Zero disables the timeout.
	WindowTimeout time.Duration
	News          generator.NewsOptions
}

// Summary describes what a run committed.
type Summary struct {
	Windows           int
	CommittedWindows  int
	NewsRows          int64
	TagLinksAttempted int64
	TagLinksPersisted int64
	Retries           int64
	Duration          time.Duration
}

// Controller loads news rows and their tag links window by window, committing each window in its own transaction.
type Controller struct {
	database      db.Database
	pools         generator.KeyPools
	config        Config
	retry         RetryPolicy
	reporter      Reporter
	metrics       *metrics.Metrics
	newFabricator func(seed int64) fabricate.Fabricator

	committedWindows  atomic.Int64
	tagLinksAttempted atomic.Int64
	tagLinksPersisted atomic.Int64
	retries           atomic.Int64
}

func NewController(
	database db.Database,
	pools generator.KeyPools,
	config Config,
	retry RetryPolicy,
	reporter Reporter,
	m *metrics.Metrics,
) *Controller {
	if reporter == nil {
		reporter = LogReporter{}
	}
	return &Controller{
		database: database,
		pools:    pools,
		config:   config,
		retry:    retry,
		reporter: reporter,
		metrics:  m,
		newFabricator: func(seed int64) fabricate.Fabricator {
			return fabricate.NewFakeFabricator(seed)
		},
	}
}

type windowFailure struct {
	window Window
	cause  error
}

func (f *windowFailure) Error() string {
	return fmt.Sprintf("window %d: %v", f.window.Index, f.cause)
}

// Run loads every window.  It stops at the first window that fails permanently, or when ctx is cancelled,
// and then returns an ErrWindowFailed describing which windows are durable.
func (c *Controller) Run(ctx *loadcontext.Context) (Summary, error) {
	start := time.Now()
	windows := Windows(c.config.TotalNews, c.config.BatchSize)
	tracker := newCommitTracker(len(windows), int64(c.config.TotalNews), c.reporter)
	defer c.reporter.Finish()

	ctx.Log.WithFields(logrus.Fields{
		"total":     c.config.TotalNews,
		"batchSize": c.config.BatchSize,
		"windows":   len(windows),
		"workers":   c.config.Workers,
	}).Info("Loading news")

	var err error
	if c.config.Workers <= 1 {
		err = c.runSequential(ctx, windows, tracker)
	} else {
		err = c.runConcurrent(ctx, windows, tracker)
	}
	if err == nil && len(windows) > 0 {
		// cancelled before every window was dispatched
		if index := tracker.firstUncommitted(); index >= 0 {
			cause := ctx.Err()
			if cause == nil {
				cause = errors.New("window was never loaded")
			}
			err = &windowFailure{window: windows[index], cause: cause}
		}
	}

	lastContiguous, rows := tracker.snapshot()
	summary := Summary{
		Windows:           len(windows),
		CommittedWindows:  int(c.committedWindows.Load()),
		NewsRows:          rows,
		TagLinksAttempted: c.tagLinksAttempted.Load(),
		TagLinksPersisted: c.tagLinksPersisted.Load(),
		Retries:           c.retries.Load(),
		Duration:          time.Since(start),
	}
	if err != nil {
		var failure *windowFailure
		if !errors.As(err, &failure) {
			return summary, err
		}
		return summary, errors.WithStack(&loaderrors.ErrWindowFailed{
			Window:              failure.window.Index,
			LastCommittedWindow: lastContiguous,
			CommittedRows:       rows,
			Cause:               failure.cause,
		})
	}
	return summary, nil
}

func (c *Controller) runSequential(ctx *loadcontext.Context, windows []Window, tracker *commitTracker) error {
	for _, w := range windows {
		if err := ctx.Err(); err != nil {
			return &windowFailure{window: w, cause: err}
		}
		if err := c.loadWindow(ctx, w, tracker); err != nil {
			return &windowFailure{window: w, cause: err}
		}
	}
	return nil
}

func (c *Controller) runConcurrent(ctx *loadcontext.Context, windows []Window, tracker *commitTracker) error {
	g, gctx := loadcontext.ErrGroup(ctx)
	work := make(chan Window)

	g.Go(func() error {
		defer close(work)
		for _, w := range windows {
			select {
			case work <- w:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	for i := 0; i < c.config.Workers; i++ {
		workerCtx := loadcontext.WithLogField(gctx, "worker", i)
		g.Go(func() error {
			for w := range work {
				if err := c.loadWindow(workerCtx, w, tracker); err != nil {
					return &windowFailure{window: w, cause: err}
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// loadWindow runs a window under the retry policy and records its commit.
func (c *Controller) loadWindow(ctx *loadcontext.Context, w Window, tracker *commitTracker) error {
	ctx = loadcontext.ForWindow(ctx, w.Index, w.Offset, w.Size)
	start := time.Now()

	policy := c.retry
	policy.OnRetry = func(attempt uint, err error) {
		c.retries.Add(1)
		c.metrics.RecordWindowRetry()
		if c.retry.OnRetry != nil {
			c.retry.OnRetry(attempt, err)
		}
	}

	var result windowResult
	err := policy.Do(ctx, fmt.Sprintf("window %d", w.Index), func(ctx *loadcontext.Context) error {
		var err error
		result, err = c.attemptWindow(ctx, w)
		return err
	})
	if err != nil {
		c.metrics.RecordWindowFailed()
		logging.WithStacktrace(ctx.Log, err).Error("Window failed; rolled back")
		return err
	}

	c.committedWindows.Add(1)
	c.tagLinksAttempted.Add(int64(result.attempted))
	c.tagLinksPersisted.Add(result.persisted)
	c.metrics.RecordRowsInserted(string(db.News), int64(w.Size))
	c.metrics.RecordRowsInserted(string(db.NewsTags), result.persisted)
	c.metrics.RecordWindowCommitted(time.Since(start))
	tracker.commit(ctx, w)
	return nil
}

type windowResult struct {
	attempted int
	persisted int64
}

// attemptWindow generates and inserts one window in a fresh transaction and commits it.
// The transaction is rolled back on every path that doesn't commit.
func (c *Controller) attemptWindow(ctx *loadcontext.Context, w Window) (windowResult, error) {
	ctx, cancel := loadcontext.WithOperationTimeout(ctx, c.config.WindowTimeout)
	defer cancel()
	state := Idle
	advance := func(next State) {
		if !canTransition(state, next) {
			ctx.Log.Warnf("Unexpected window state change %s -> %s", state, next)
		}
		state = next
		ctx.Log.WithField("state", state).Debug("Window state changed")
	}

	rng := rand.New(rand.NewSource(util.DeriveSeed(c.config.Seed, keyStream, uint64(w.Index))))
	fabricator := c.newFabricator(util.DeriveSeed(c.config.Seed, contentStream, uint64(w.Index)))

	tx, err := c.database.Begin(ctx)
	if err != nil {
		return windowResult{}, err
	}
	defer func() {
		if state != Done {
			advance(Idle)
		}
		// ctx may already be cancelled
		rollbackCtx, cancel := loadcontext.Detached(ctx, rollbackTimeout)
		defer cancel()
		if err := tx.Rollback(rollbackCtx); err != nil {
			logging.WithStacktrace(ctx.Log, err).Warn("Failed to roll back window")
		}
	}()

	advance(GeneratingFacts)
	newsIDs, err := generator.GenerateNewsBatch(ctx, tx, fabricator, rng, w.Size, c.pools, c.config.News)
	if err != nil {
		return windowResult{}, annotatePartialBatch(err, w)
	}

	advance(GeneratingAssociations)
	attempted, persisted, err := generator.GenerateTagLinks(
		ctx, tx, rng, newsIDs, c.pools.Tags, c.config.MinTagsPerNews, c.config.MaxTagsPerNews)
	if err != nil {
		return windowResult{}, annotatePartialBatch(err, w)
	}

	advance(Committing)
	if err := tx.Commit(ctx); err != nil {
		// A lost reply to COMMIT looks like a connectivity error even when the server applied it.
		landed, resolveErr := c.commitLanded(ctx, newsIDs)
		if resolveErr != nil {
			return windowResult{}, errors.WithStack(&loaderrors.ErrCommitUnresolved{
				Table:      string(db.News),
				CommitErr:  err,
				ResolveErr: resolveErr,
			})
		}
		if !landed {
			return windowResult{}, err
		}
		logging.WithStacktrace(ctx.Log, err).Warn("Commit reported an error but the window was committed")
	}
	advance(Done)
	return windowResult{attempted: attempted, persisted: persisted}, nil
}

// commitLanded asks the store whether the window's first news row is committed.  A window commits all of its
// rows or none of them, so one row decides it.
func (c *Controller) commitLanded(ctx *loadcontext.Context, newsIDs []int64) (bool, error) {
	if len(newsIDs) == 0 {
		return false, nil
	}
	ctx, cancel := loadcontext.Detached(ctx, resolveTimeout)
	defer cancel()

	check := c.retry
	check.OnRetry = nil
	var found bool
	err := check.Do(ctx, "checking whether the commit landed", func(ctx *loadcontext.Context) error {
		var err error
		found, err = c.database.NewsExists(ctx, newsIDs[0])
		return err
	})
	return found, err
}

func annotatePartialBatch(err error, w Window) error {
	var partial *loaderrors.ErrPartialBatch
	if errors.As(err, &partial) {
		partial.Window = w.Index
	}
	return err
}
