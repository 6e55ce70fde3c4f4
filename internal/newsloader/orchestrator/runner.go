package orchestrator

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/newsbench/newsloader/internal/common"
	"github.com/newsbench/newsloader/internal/common/database"
	"github.com/newsbench/newsloader/internal/common/loadcontext"
	"github.com/newsbench/newsloader/internal/common/logging"
	"github.com/newsbench/newsloader/internal/common/util"
	"github.com/newsbench/newsloader/internal/newsloader/configuration"
	"github.com/newsbench/newsloader/internal/newsloader/controller"
	"github.com/newsbench/newsloader/internal/newsloader/db"
	"github.com/newsbench/newsloader/internal/newsloader/fabricate"
	"github.com/newsbench/newsloader/internal/newsloader/generator"
	"github.com/newsbench/newsloader/internal/newsloader/metrics"
)

// Seed stream of the reference tables.  The controller derives its window streams from the same base seed.
const referenceStream uint64 = 0

// Result describes a completed load.
type Result struct {
	Seed      int64
	Summary   controller.Summary
	RowCounts map[db.Table]int64
	Duration  time.Duration
}

// Runner orchestrates a load: it opens the store, optionally resets it, loads the reference tables and
// then hands the news windows to the controller.
type Runner struct {
	config       configuration.LoaderConfiguration
	openDatabase func(ctx context.Context, config configuration.LoaderConfiguration, m *metrics.Metrics) (db.Database, error)
	registry     *prometheus.Registry
	reporter     controller.Reporter
	now          func() time.Time
}

// NewRunner creates a Runner loading into postgres, or into a process local store if config.InMemory is set.
func NewRunner(config configuration.LoaderConfiguration) *Runner {
	return &Runner{
		config:       config,
		openDatabase: openDatabase,
		registry:     prometheus.NewRegistry(),
		now:          time.Now,
	}
}

// WithDatabase makes the runner load into database instead of opening one.  The runner still closes it.
func (r *Runner) WithDatabase(database db.Database) *Runner {
	r.openDatabase = func(context.Context, configuration.LoaderConfiguration, *metrics.Metrics) (db.Database, error) {
		return database, nil
	}
	return r
}

// WithReporter overrides the progress reporter chosen from the configuration.
func (r *Runner) WithReporter(reporter controller.Reporter) *Runner {
	r.reporter = reporter
	return r
}

func openDatabase(ctx context.Context, config configuration.LoaderConfiguration, m *metrics.Metrics) (db.Database, error) {
	if config.InMemory {
		logging.Info("Loading into a process local store; nothing will be persisted")
		return db.NewMemoryDatabase(), nil
	}
	pool, err := database.OpenPgxPool(ctx, config.Postgres)
	if err != nil {
		return nil, err
	}
	return db.NewPostgresDatabase(pool, m), nil
}

// Run performs the load:
//  1. Resolves the seed, logging it so the load can be repeated
//  2. Opens the store and, if configured, truncates every table
//  3. Loads sources, authors, categories and tags, capturing their key pools
//  4. Loads the news windows through the controller
//  5. Logs a summary with the row count of every table
//
// The store is closed on every path.  On failure the returned Result still describes what was committed.
func (r *Runner) Run(ctx *loadcontext.Context) (Result, error) {
	start := r.now()
	seed := util.ResolveSeed(int64(r.config.Seed))
	ctx = loadcontext.WithLogField(ctx, "seed", seed)
	ctx.Log.Info("Starting news load")
	result := Result{Seed: seed}

	m := metrics.NewMetrics(r.registry)
	if r.config.Metrics.Enabled {
		hook, err := logging.NewPrometheusHook(r.registry)
		if err != nil {
			return result, err
		}
		ctx.Log.Logger.AddHook(hook)
		shutdown := common.ServeMetrics(r.config.Metrics.Port, r.registry)
		defer shutdown()
	}

	store, err := r.openDatabase(ctx, r.config, m)
	if err != nil {
		return result, errors.WithMessage(err, "opening database")
	}
	defer store.Close()

	if r.config.Reset {
		if err := resetDatabase(ctx, store); err != nil {
			return result, err
		}
	}

	retry := r.retryPolicy()
	referenceLoader := generator.ReferenceLoader{Database: store, Retry: retry.Do, Timeout: r.config.ReferenceTimeout}
	referenceFabricator := fabricate.NewFakeFabricator(util.DeriveSeed(seed, referenceStream, 0))
	pools, err := referenceLoader.LoadReferenceData(ctx, referenceFabricator, r.config.Reference)
	if err != nil {
		return result, errors.WithMessage(err, "loading reference data")
	}

	controllerConfig := controller.Config{
		TotalNews:      r.config.News.Total,
		BatchSize:      r.config.News.BatchSize,
		Workers:        r.config.Workers,
		Seed:           seed,
		MinTagsPerNews: r.config.Tags.MinPerNews,
		MaxTagsPerNews: r.config.Tags.MaxPerNews,
		WindowTimeout:  r.config.WindowTimeout,
		News:           generator.NewsOptionsFromConfig(r.config.News, start),
	}
	c := controller.NewController(store, pools, controllerConfig, retry, r.progressReporter(), m)
	result.Summary, err = c.Run(ctx)
	result.Duration = r.now().Sub(start)
	if err != nil {
		logging.WithStacktrace(ctx.Log, err).Error("News load failed")
		return result, err
	}

	// the load is committed, so don't let a late cancellation hide the counts
	result.RowCounts, err = countRows(loadcontext.WithoutCancel(ctx), store)
	if err != nil {
		return result, err
	}
	logSummary(ctx, result)
	return result, nil
}

// Reset opens the store and truncates every table.
func (r *Runner) Reset(ctx *loadcontext.Context) error {
	store, err := r.openDatabase(ctx, r.config, metrics.NewMetrics(r.registry))
	if err != nil {
		return errors.WithMessage(err, "opening database")
	}
	defer store.Close()
	return resetDatabase(ctx, store)
}

func resetDatabase(ctx *loadcontext.Context, store db.Database) error {
	ctx.Log.Warn("Truncating every table of the news schema")
	if err := store.Reset(ctx); err != nil {
		return errors.WithMessage(err, "resetting database")
	}
	return nil
}

func (r *Runner) retryPolicy() controller.RetryPolicy {
	return controller.RetryPolicy{
		Attempts:       r.config.Retry.Attempts,
		InitialBackoff: r.config.Retry.InitialBackoff,
		MaxBackoff:     r.config.Retry.MaxBackoff,
		MaxJitter:      r.config.Retry.MaxJitter,
	}
}

func (r *Runner) progressReporter() controller.Reporter {
	if r.reporter != nil {
		return r.reporter
	}
	if r.config.ProgressBar {
		return controller.NewProgressBarReporter(int64(r.config.News.Total))
	}
	return controller.LogReporter{}
}

func countRows(ctx *loadcontext.Context, store db.Database) (map[db.Table]int64, error) {
	counts := make(map[db.Table]int64, len(db.AllTables))
	for _, table := range db.AllTables {
		n, err := store.Count(ctx, table)
		if err != nil {
			return nil, errors.WithMessagef(err, "counting %s", table)
		}
		counts[table] = n
	}
	return counts, nil
}

func logSummary(ctx *loadcontext.Context, result Result) {
	fields := logrus.Fields{}
	var total int64
	for table, n := range result.RowCounts {
		fields[string(table)] = n
		total += n
	}
	fields["duration"] = result.Duration.Round(time.Millisecond)
	if seconds := result.Duration.Seconds(); seconds > 0 {
		fields["rowsPerSecond"] = int64(float64(total) / seconds)
	}
	fields["tagLinksAttempted"] = result.Summary.TagLinksAttempted
	fields["retries"] = result.Summary.Retries
	ctx.Log.WithFields(fields).Info("News load complete")
}
