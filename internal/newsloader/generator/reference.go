package generator

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/newsbench/newsloader/internal/common/loadcontext"
	"github.com/newsbench/newsloader/internal/common/loaderrors"
	"github.com/newsbench/newsloader/internal/common/logging"
	"github.com/newsbench/newsloader/internal/newsloader/configuration"
	"github.com/newsbench/newsloader/internal/newsloader/db"
	"github.com/newsbench/newsloader/internal/newsloader/fabricate"
)

const (
	rollbackTimeout = 10 * time.Second
	resolveTimeout  = time.Minute
)

// ValueSource supplies the names of a reference table: either a generator called once per row or a fixed list.
type ValueSource struct {
	generate func() string
	literal  []string
}

func Generated(generate func() string) ValueSource {
	return ValueSource{generate: generate}
}

// Literal values are used as is; the requested count is ignored.
func Literal(values []string) ValueSource {
	return ValueSource{literal: values}
}

// Values materialises the source.
func (s ValueSource) Values(count int) []string {
	if s.generate == nil {
		out := make([]string, len(s.literal))
		copy(out, s.literal)
		return out
	}
	out := make([]string, count)
	for i := range out {
		out[i] = s.generate()
	}
	return out
}

// KeyPools holds the ids of every reference table.  It is read only once built and may be shared between goroutines.
type KeyPools struct {
	Sources    []int64
	Authors    []int64
	Categories []int64
	Tags       []int64
}

func (p KeyPools) Get(table db.Table) []int64 {
	switch table {
	case db.Sources:
		return p.Sources
	case db.Authors:
		return p.Authors
	case db.Categories:
		return p.Categories
	case db.Tags:
		return p.Tags
	}
	return nil
}

func (p *KeyPools) set(table db.Table, ids []int64) {
	switch table {
	case db.Sources:
		p.Sources = ids
	case db.Authors:
		p.Authors = ids
	case db.Categories:
		p.Categories = ids
	case db.Tags:
		p.Tags = ids
	}
}

// RetryFunc runs op until it succeeds, fails permanently or gives up.
type RetryFunc func(ctx *loadcontext.Context, description string, op func(ctx *loadcontext.Context) error) error

// NoRetry runs op once.
func NoRetry(ctx *loadcontext.Context, _ string, op func(ctx *loadcontext.Context) error) error {
	return op(ctx)
}

// ReferenceLoader inserts reference tables, retrying the insert and the read back separately.
type ReferenceLoader struct {
	Database db.Database
	Retry    RetryFunc
	// Bounds each attempt at an insert or a read back.  Zero disables the timeout.
	Timeout time.Duration
}

func (l ReferenceLoader) retry() RetryFunc {
	if l.Retry == nil {
		return NoRetry
	}
	return l.Retry
}

// LoadReferenceTable loads table without retrying.  See ReferenceLoader.Load.
func LoadReferenceTable(ctx *loadcontext.Context, database db.Database, table db.Table, source ValueSource, count int) ([]int64, error) {
	return ReferenceLoader{Database: database}.Load(ctx, table, source, count)
}

// Load inserts the values of source into table in one transaction, commits, and returns every id of the table in
// ascending order.  The table must be empty beforehand: if the ids read back don't match the rows inserted an
// ErrReferentialIntegrity is returned, since the keys couldn't be used as a sampling pool.
func (l ReferenceLoader) Load(ctx *loadcontext.Context, table db.Table, source ValueSource, count int) ([]int64, error) {
	retry := l.retry()
	values := source.Values(count)
	ctx = loadcontext.ForTable(ctx, string(table))

	err := retry(ctx, fmt.Sprintf("insert %s", table), func(ctx *loadcontext.Context) error {
		return l.insert(ctx, table, values)
	})
	if err != nil {
		return nil, err
	}

	var ids []int64
	err = retry(ctx, fmt.Sprintf("read back %s", table), func(ctx *loadcontext.Context) error {
		var err error
		ids, err = l.selectIDs(ctx, table)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(ids) != len(values) {
		return nil, errors.WithStack(&loaderrors.ErrReferentialIntegrity{
			Table:   string(table),
			Message: fmt.Sprintf("inserted %d rows but the table holds %d; start from empty tables (reset)", len(values), len(ids)),
		})
	}
	ctx.Log.Infof("Inserted %d rows into %s", len(values), table)
	return ids, nil
}

func (l ReferenceLoader) insert(ctx *loadcontext.Context, table db.Table, values []string) error {
	attemptCtx, cancel := loadcontext.WithOperationTimeout(ctx, l.Timeout)
	defer cancel()

	tx, err := l.Database.Begin(attemptCtx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		rollbackCtx, cancel := loadcontext.Detached(ctx, rollbackTimeout)
		defer cancel()
		_ = tx.Rollback(rollbackCtx)
	}()

	n, err := tx.InsertReference(attemptCtx, table, values)
	if err != nil {
		return err
	}
	if n != int64(len(values)) {
		return errors.Errorf("inserted %d of %d rows into %s", n, len(values), table)
	}
	if err := tx.Commit(attemptCtx); err != nil {
		landed, resolveErr := l.commitLanded(ctx, table, len(values))
		if resolveErr != nil {
			return errors.WithStack(&loaderrors.ErrCommitUnresolved{Table: string(table), CommitErr: err, ResolveErr: resolveErr})
		}
		if !landed {
			return err
		}
		logging.WithStacktrace(ctx.Log, err).Warn("Commit reported an error but the rows were committed")
	}
	committed = true
	return nil
}

// commitLanded counts the rows of table.  Load starts from an empty table, so a commit that was applied
// leaves exactly want rows behind.
func (l ReferenceLoader) commitLanded(ctx *loadcontext.Context, table db.Table, want int) (bool, error) {
	ctx, cancel := loadcontext.Detached(ctx, resolveTimeout)
	defer cancel()

	var count int64
	err := l.retry()(ctx, fmt.Sprintf("checking whether %s was committed", table), func(ctx *loadcontext.Context) error {
		var err error
		count, err = l.Database.Count(ctx, table)
		return err
	})
	if err != nil {
		return false, err
	}
	return count == int64(want), nil
}

func (l ReferenceLoader) selectIDs(ctx *loadcontext.Context, table db.Table) ([]int64, error) {
	ctx, cancel := loadcontext.WithOperationTimeout(ctx, l.Timeout)
	defer cancel()

	tx, err := l.Database.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	return tx.SelectIDs(ctx, table)
}

// ReferenceSources returns the value source of every reference table.
func ReferenceSources(fabricator fabricate.Fabricator, config configuration.ReferenceConfig) map[db.Table]ValueSource {
	return map[db.Table]ValueSource{
		db.Sources:    Generated(fabricator.DomainName),
		db.Authors:    Generated(fabricator.PersonName),
		db.Categories: Literal(config.Categories),
		db.Tags:       Generated(fabricator.Word),
	}
}

// LoadReferenceData loads sources, authors, categories and tags, in that order, and returns their key pools.
func (l ReferenceLoader) LoadReferenceData(
	ctx *loadcontext.Context,
	fabricator fabricate.Fabricator,
	config configuration.ReferenceConfig,
) (KeyPools, error) {
	counts := map[db.Table]int{
		db.Sources:    config.Sources,
		db.Authors:    config.Authors,
		db.Categories: len(config.Categories),
		db.Tags:       config.Tags,
	}
	sources := ReferenceSources(fabricator, config)

	var pools KeyPools
	for _, table := range db.ReferenceTables {
		ids, err := l.Load(ctx, table, sources[table], counts[table])
		if err != nil {
			return KeyPools{}, errors.WithMessagef(err, "loading %s", table)
		}
		pools.set(table, ids)
	}
	return pools, nil
}

// LoadReferenceData loads every reference table without retrying.
func LoadReferenceData(
	ctx *loadcontext.Context,
	database db.Database,
	fabricator fabricate.Fabricator,
	config configuration.ReferenceConfig,
) (KeyPools, error) {
	return ReferenceLoader{Database: database}.LoadReferenceData(ctx, fabricator, config)
}
