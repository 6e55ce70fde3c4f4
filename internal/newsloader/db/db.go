package db

import (
	"context"
	"time"
)

// Table names a table of the news schema.
type Table string

const (
	Sources    Table = "sources"
	Authors    Table = "authors"
	Categories Table = "categories"
	Tags       Table = "tags"
	News       Table = "news"
	NewsTags   Table = "news_tags"
)

// ReferenceTables are the tables holding a single name column, in load order.
var ReferenceTables = []Table{Sources, Authors, Categories, Tags}

// AllTables lists every table, referencing tables before the tables they reference.
var AllTables = []Table{NewsTags, News, Tags, Categories, Authors, Sources}

func (t Table) IsReference() bool {
	for _, r := range ReferenceTables {
		if r == t {
			return true
		}
	}
	return false
}

// NewsRow is one row of the news table minus its id, which the store assigns.
type NewsRow struct {
	Title       string
	Content     string
	PublishedAt time.Time
	AuthorID    int64
	SourceID    int64
	CategoryID  int64
}

// NewsTag links a news row to a tag.  The pair is unique.
type NewsTag struct {
	NewsID int64
	TagID  int64
}

// Database is the store the loader writes to.
type Database interface {
	// Begin opens a transaction.  Nothing written through it is visible to other transactions until Commit.
	Begin(ctx context.Context) (Tx, error)
	// Count returns the number of committed rows in table.
	Count(ctx context.Context, table Table) (int64, error)
	// NewsExists reports whether a committed news row has id.
	NewsExists(ctx context.Context, id int64) (bool, error)
	// Reset removes all rows from every table and restarts id generation.
	Reset(ctx context.Context) error
	Close()
}

// Tx is a single transaction.  A Tx must not be used from more than one goroutine.
type Tx interface {
	// InsertReference bulk inserts names into a reference table and returns the number of rows inserted.
	InsertReference(ctx context.Context, table Table, names []string) (int64, error)
	// InsertNews bulk inserts rows and returns their generated ids, in the order of rows.
	InsertNews(ctx context.Context, rows []NewsRow) ([]int64, error)
	// InsertNewsTags bulk inserts links, silently skipping pairs that are repeated or already stored.
	// Returns the number of links actually persisted.
	InsertNewsTags(ctx context.Context, links []NewsTag) (int64, error)
	// SelectIDs returns every id of table visible to this transaction in ascending order.
	SelectIDs(ctx context.Context, table Table) ([]int64, error)
	Commit(ctx context.Context) error
	// Rollback aborts the transaction.  It is a no-op after Commit or a previous Rollback so it can be deferred.
	Rollback(ctx context.Context) error
}
