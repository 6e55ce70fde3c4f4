package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsbench/newsloader/internal/common/loaderrors"
)

// storeTests are run against every Database implementation.
var storeTests = map[string]func(t *testing.T, database Database){
	"reference ids are visible after commit":          testReferenceRoundTrip,
	"rolled back rows are not visible":                testRollback,
	"news ids follow row order":                       testInsertNewsReturnsIDsInOrder,
	"news with unknown author is rejected":            testInsertNewsForeignKey,
	"duplicate news tags are ignored":                 testInsertNewsTagsIgnoresDuplicates,
	"news tags referencing unknown news are rejected": testInsertNewsTagsForeignKey,
	"reset empties every table":                       testReset,
	"rollback after commit is a no-op":                testRollbackAfterCommit,
	"news exists only once committed":                 testNewsExists,
}

func runStoreTests(t *testing.T, newDatabase func(t *testing.T) Database) {
	for name, test := range storeTests {
		t.Run(name, func(t *testing.T) {
			test(t, newDatabase(t))
		})
	}
}

func insertReference(t *testing.T, database Database) map[Table][]int64 {
	t.Helper()
	ctx := context.Background()
	tx, err := database.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	values := map[Table][]string{
		Sources:    {"example.com", "example.org"},
		Authors:    {"Ada Lovelace", "Alan Turing", "Grace Hopper"},
		Categories: {"Politics", "Science"},
		Tags:       {"alpha", "beta", "gamma"},
	}
	for _, table := range ReferenceTables {
		n, err := tx.InsertReference(ctx, table, values[table])
		require.NoError(t, err)
		assert.Equal(t, int64(len(values[table])), n)
	}
	require.NoError(t, tx.Commit(ctx))

	tx, err = database.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()
	pools := map[Table][]int64{}
	for _, table := range ReferenceTables {
		ids, err := tx.SelectIDs(ctx, table)
		require.NoError(t, err)
		pools[table] = ids
	}
	return pools
}

func newsRow(pools map[Table][]int64, title string) NewsRow {
	return NewsRow{
		Title:       title,
		Content:     "content of " + title,
		PublishedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		AuthorID:    pools[Authors][0],
		SourceID:    pools[Sources][0],
		CategoryID:  pools[Categories][0],
	}
}

func testReferenceRoundTrip(t *testing.T, database Database) {
	pools := insertReference(t, database)
	assert.Len(t, pools[Sources], 2)
	assert.Len(t, pools[Authors], 3)
	assert.Len(t, pools[Categories], 2)
	assert.Len(t, pools[Tags], 3)
	assert.IsIncreasing(t, pools[Authors])

	count, err := database.Count(context.Background(), Authors)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func testRollback(t *testing.T, database Database) {
	ctx := context.Background()
	pools := insertReference(t, database)

	tx, err := database.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.InsertNews(ctx, []NewsRow{newsRow(pools, "a")})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))

	count, err := database.Count(ctx, News)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func testInsertNewsReturnsIDsInOrder(t *testing.T, database Database) {
	ctx := context.Background()
	pools := insertReference(t, database)

	tx, err := database.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	rows := []NewsRow{newsRow(pools, "first"), newsRow(pools, "second"), newsRow(pools, "third")}
	ids, err := tx.InsertNews(ctx, rows)
	require.NoError(t, err)
	require.Len(t, ids, 3)
	assert.IsIncreasing(t, ids)

	visible, err := tx.SelectIDs(ctx, News)
	require.NoError(t, err)
	assert.Equal(t, ids, visible)

	require.NoError(t, tx.Commit(ctx))
	count, err := database.Count(ctx, News)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func testNewsExists(t *testing.T, database Database) {
	ctx := context.Background()
	pools := insertReference(t, database)

	tx, err := database.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()
	ids, err := tx.InsertNews(ctx, []NewsRow{newsRow(pools, "a")})
	require.NoError(t, err)

	found, err := database.NewsExists(ctx, ids[0])
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, tx.Commit(ctx))
	found, err = database.NewsExists(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, found)

	found, err = database.NewsExists(ctx, ids[0]+1000)
	require.NoError(t, err)
	assert.False(t, found)
}

func testInsertNewsForeignKey(t *testing.T, database Database) {
	ctx := context.Background()
	pools := insertReference(t, database)

	tx, err := database.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	row := newsRow(pools, "orphan")
	row.AuthorID = pools[Authors][len(pools[Authors])-1] + 1000
	_, err = tx.InsertNews(ctx, []NewsRow{row})

	var integrityErr *loaderrors.ErrReferentialIntegrity
	assert.ErrorAs(t, err, &integrityErr)
	assert.False(t, loaderrors.IsRetryable(err))
}

func testInsertNewsTagsIgnoresDuplicates(t *testing.T, database Database) {
	ctx := context.Background()
	pools := insertReference(t, database)

	tx, err := database.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	ids, err := tx.InsertNews(ctx, []NewsRow{newsRow(pools, "a"), newsRow(pools, "b")})
	require.NoError(t, err)

	links := []NewsTag{
		{NewsID: ids[0], TagID: pools[Tags][0]},
		{NewsID: ids[0], TagID: pools[Tags][0]},
		{NewsID: ids[0], TagID: pools[Tags][1]},
		{NewsID: ids[1], TagID: pools[Tags][0]},
	}
	persisted, err := tx.InsertNewsTags(ctx, links)
	require.NoError(t, err)
	assert.Equal(t, int64(3), persisted)

	persisted, err = tx.InsertNewsTags(ctx, links[:1])
	require.NoError(t, err)
	assert.Zero(t, persisted)

	require.NoError(t, tx.Commit(ctx))
	count, err := database.Count(ctx, NewsTags)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func testInsertNewsTagsForeignKey(t *testing.T, database Database) {
	ctx := context.Background()
	pools := insertReference(t, database)

	tx, err := database.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.InsertNewsTags(ctx, []NewsTag{{NewsID: 424242, TagID: pools[Tags][0]}})
	var integrityErr *loaderrors.ErrReferentialIntegrity
	assert.ErrorAs(t, err, &integrityErr)
}

func testReset(t *testing.T, database Database) {
	ctx := context.Background()
	pools := insertReference(t, database)

	tx, err := database.Begin(ctx)
	require.NoError(t, err)
	ids, err := tx.InsertNews(ctx, []NewsRow{newsRow(pools, "a")})
	require.NoError(t, err)
	_, err = tx.InsertNewsTags(ctx, []NewsTag{{NewsID: ids[0], TagID: pools[Tags][0]}})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	require.NoError(t, database.Reset(ctx))
	for _, table := range AllTables {
		count, err := database.Count(ctx, table)
		require.NoError(t, err)
		assert.Zero(t, count, "table %s", table)
	}

	// identities restart
	pools = insertReference(t, database)
	assert.Equal(t, int64(1), pools[Sources][0])
}

func testRollbackAfterCommit(t *testing.T, database Database) {
	ctx := context.Background()
	tx, err := database.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	assert.NoError(t, tx.Rollback(ctx))
	assert.NoError(t, tx.Rollback(ctx))
}
