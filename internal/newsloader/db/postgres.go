package db

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/newsbench/newsloader/internal/common/database"
	"github.com/newsbench/newsloader/internal/common/loaderrors"
	"github.com/newsbench/newsloader/internal/newsloader/metrics"
)

var newsColumns = []string{"id", "title", "content", "published_at", "author_id", "source_id", "category_id"}

// PostgresDatabase implements Database on top of a pgx pool.  The schema must already exist.
type PostgresDatabase struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewPostgresDatabase wraps pool.  The pool is closed by Close.
func NewPostgresDatabase(pool *pgxpool.Pool, m *metrics.Metrics) *PostgresDatabase {
	return &PostgresDatabase{pool: pool, metrics: m}
}

func (p *PostgresDatabase) Begin(ctx context.Context) (Tx, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		p.metrics.RecordDBError(metrics.DBOperationBegin)
		return nil, loaderrors.Classify("", "begin transaction", err)
	}
	return &postgresTx{tx: tx, metrics: p.metrics}, nil
}

func (p *PostgresDatabase) Count(ctx context.Context, table Table) (int64, error) {
	var count int64
	err := p.pool.QueryRow(ctx, "SELECT count(*) FROM "+table.sanitize()).Scan(&count)
	if err != nil {
		p.metrics.RecordDBError(metrics.DBOperationRead)
		return 0, loaderrors.Classify(string(table), "count rows", err)
	}
	return count, nil
}

func (p *PostgresDatabase) NewsExists(ctx context.Context, id int64) (bool, error) {
	var found bool
	err := p.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM news WHERE id = $1)", id).Scan(&found)
	if err != nil {
		p.metrics.RecordDBError(metrics.DBOperationRead)
		return false, loaderrors.Classify(string(News), "look up news row", err)
	}
	return found, nil
}

// Reset truncates all tables in one statement so the foreign keys between them are satisfied.
func (p *PostgresDatabase) Reset(ctx context.Context) error {
	tables := make([]string, len(AllTables))
	for i, table := range AllTables {
		tables[i] = table.sanitize()
	}
	query := fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(tables, ", "))
	if _, err := p.pool.Exec(ctx, query); err != nil {
		p.metrics.RecordDBError(metrics.DBOperationTruncate)
		return loaderrors.Classify("", "truncate tables", err)
	}
	return nil
}

// Close closes the database connection pool.
func (p *PostgresDatabase) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

type postgresTx struct {
	tx      pgx.Tx
	metrics *metrics.Metrics
}

func (t *postgresTx) InsertReference(ctx context.Context, table Table, names []string) (int64, error) {
	if !table.IsReference() {
		return 0, errors.WithStack(&loaderrors.ErrInvalidArgument{Name: "table", Value: table, Message: "not a reference table"})
	}
	if len(names) == 0 {
		return 0, nil
	}
	n, err := t.tx.CopyFrom(ctx,
		pgx.Identifier{string(table)},
		[]string{"name"},
		pgx.CopyFromSlice(len(names), func(i int) ([]any, error) {
			return []any{names[i]}, nil
		}),
	)
	if err != nil {
		t.metrics.RecordDBError(metrics.DBOperationInsert)
		return n, loaderrors.Classify(string(table), "copy reference rows", err)
	}
	return n, nil
}

// InsertNews reserves ids from the news sequence and copies the rows with those ids, so the
// returned ids correspond to rows by position.
func (t *postgresTx) InsertNews(ctx context.Context, rows []NewsRow) ([]int64, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	ids, err := t.reserveNewsIDs(ctx, len(rows))
	if err != nil {
		return nil, err
	}

	n, err := t.tx.CopyFrom(ctx,
		pgx.Identifier{string(News)},
		newsColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			r := rows[i]
			return []any{ids[i], r.Title, r.Content, r.PublishedAt, r.AuthorID, r.SourceID, r.CategoryID}, nil
		}),
	)
	if err != nil {
		t.metrics.RecordDBError(metrics.DBOperationInsert)
		return nil, loaderrors.Classify(string(News), "copy news rows", err)
	}
	if n != int64(len(rows)) {
		return nil, errors.Errorf("copied %d of %d news rows", n, len(rows))
	}
	return ids, nil
}

func (t *postgresTx) reserveNewsIDs(ctx context.Context, count int) ([]int64, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT nextval(pg_get_serial_sequence('news', 'id')) FROM generate_series(1, $1)`, count)
	if err != nil {
		t.metrics.RecordDBError(metrics.DBOperationReserveIDs)
		return nil, loaderrors.Classify(string(News), "reserve news ids", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		t.metrics.RecordDBError(metrics.DBOperationReserveIDs)
		return nil, loaderrors.Classify(string(News), "reserve news ids", err)
	}
	if len(ids) != count {
		return nil, errors.Errorf("reserved %d of %d news ids", len(ids), count)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// InsertNewsTags stages links in a temporary table and moves them across with ON CONFLICT DO NOTHING,
// which drops pairs duplicated within the batch as well as pairs already stored.
func (t *postgresTx) InsertNewsTags(ctx context.Context, links []NewsTag) (int64, error) {
	if len(links) == 0 {
		return 0, nil
	}
	tmpTable := database.UniqueTableName(string(NewsTags))

	_, err := t.tx.Exec(ctx, fmt.Sprintf(`
		CREATE TEMPORARY TABLE %s
		(
		  news_id bigint,
		  tag_id  bigint
		) ON COMMIT DROP;`, tmpTable))
	if err != nil {
		t.metrics.RecordDBError(metrics.DBOperationCreateTempTable)
		return 0, loaderrors.Classify(string(NewsTags), "create staging table", err)
	}

	_, err = t.tx.CopyFrom(ctx,
		pgx.Identifier{tmpTable},
		[]string{"news_id", "tag_id"},
		pgx.CopyFromSlice(len(links), func(i int) ([]any, error) {
			return []any{links[i].NewsID, links[i].TagID}, nil
		}),
	)
	if err != nil {
		t.metrics.RecordDBError(metrics.DBOperationInsert)
		return 0, loaderrors.Classify(string(NewsTags), "copy news tags to staging table", err)
	}

	tag, err := t.tx.Exec(ctx, fmt.Sprintf(`
		INSERT INTO news_tags (news_id, tag_id)
		SELECT DISTINCT news_id, tag_id FROM %s
		ON CONFLICT DO NOTHING`, tmpTable))
	if err != nil {
		t.metrics.RecordDBError(metrics.DBOperationInsert)
		return 0, loaderrors.Classify(string(NewsTags), "insert news tags", err)
	}
	return tag.RowsAffected(), nil
}

func (t *postgresTx) SelectIDs(ctx context.Context, table Table) ([]int64, error) {
	rows, err := t.tx.Query(ctx, "SELECT id FROM "+table.sanitize()+" ORDER BY id")
	if err != nil {
		t.metrics.RecordDBError(metrics.DBOperationRead)
		return nil, loaderrors.Classify(string(table), "select ids", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		t.metrics.RecordDBError(metrics.DBOperationRead)
		return nil, loaderrors.Classify(string(table), "select ids", err)
	}
	return ids, nil
}

func (t *postgresTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		t.metrics.RecordDBError(metrics.DBOperationCommit)
		return loaderrors.Classify("", "commit", err)
	}
	return nil
}

func (t *postgresTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err == nil || errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return errors.WithStack(err)
}

func (t Table) sanitize() string {
	return pgx.Identifier{string(t)}.Sanitize()
}
