package generator

import (
	"context"
	"math/rand"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsbench/newsloader/internal/common/loaderrors"
	"github.com/newsbench/newsloader/internal/newsloader/configuration"
	"github.com/newsbench/newsloader/internal/newsloader/db"
	"github.com/newsbench/newsloader/internal/newsloader/fabricate"
)

var testUntil = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

func testNewsOptions() NewsOptions {
	return NewsOptionsFromConfig(configuration.NewsConfig{
		TitleWords:      8,
		ContentMaxChars: 500,
		PublishedWindow: 10 * 365 * 24 * time.Hour,
		PublishedUntil:  testUntil,
	}, time.Now())
}

func loadPools(t *testing.T, database *db.MemoryDatabase) KeyPools {
	t.Helper()
	config := configuration.ReferenceConfig{Sources: 5, Authors: 20, Tags: 30, Categories: defaultCategories}
	pools, err := LoadReferenceData(testContext(), database, fabricate.NewFakeFabricator(9), config)
	require.NoError(t, err)
	return pools
}

func TestNewsOptionsFromConfig(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	opts := NewsOptionsFromConfig(configuration.NewsConfig{PublishedWindow: time.Hour}, now)
	assert.Equal(t, now, opts.PublishedUntil)
	assert.Equal(t, now.Add(-time.Hour), opts.PublishedFrom)

	opts = testNewsOptions()
	assert.Equal(t, testUntil, opts.PublishedUntil)
}

func TestBuildNewsBatch(t *testing.T) {
	pools := KeyPools{Sources: []int64{1, 2}, Authors: []int64{10, 11, 12}, Categories: []int64{100}, Tags: []int64{7}}
	opts := testNewsOptions()
	rows, err := BuildNewsBatch(fabricate.NewFakeFabricator(1), rand.New(rand.NewSource(1)), 200, pools, opts)
	require.NoError(t, err)
	require.Len(t, rows, 200)

	for _, row := range rows {
		assert.Contains(t, pools.Authors, row.AuthorID)
		assert.Contains(t, pools.Sources, row.SourceID)
		assert.Contains(t, pools.Categories, row.CategoryID)
		assert.NotEmpty(t, row.Title)
		assert.NotEmpty(t, row.Content)
		assert.LessOrEqual(t, utf8.RuneCountInString(row.Content), 500)
		assert.False(t, row.PublishedAt.Before(opts.PublishedFrom))
		assert.False(t, row.PublishedAt.After(opts.PublishedUntil))
	}
}

func TestBuildNewsBatch_Deterministic(t *testing.T) {
	pools := KeyPools{Sources: []int64{1, 2}, Authors: []int64{10, 11, 12}, Categories: []int64{100, 101}}
	a, err := BuildNewsBatch(fabricate.NewFakeFabricator(3), rand.New(rand.NewSource(4)), 50, pools, testNewsOptions())
	require.NoError(t, err)
	b, err := BuildNewsBatch(fabricate.NewFakeFabricator(3), rand.New(rand.NewSource(4)), 50, pools, testNewsOptions())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBuildNewsBatch_EmptyPool(t *testing.T) {
	pools := KeyPools{Sources: []int64{1}, Authors: nil, Categories: []int64{1}}
	_, err := BuildNewsBatch(fabricate.NewFakeFabricator(1), rand.New(rand.NewSource(1)), 10, pools, testNewsOptions())
	var integrityErr *loaderrors.ErrReferentialIntegrity
	require.ErrorAs(t, err, &integrityErr)
	assert.Contains(t, integrityErr.Message, "authors")
}

func TestGenerateNewsBatch(t *testing.T) {
	ctx := context.Background()
	database := db.NewMemoryDatabase()
	pools := loadPools(t, database)

	tx, err := database.Begin(ctx)
	require.NoError(t, err)
	ids, err := GenerateNewsBatch(ctx, tx, fabricate.NewFakeFabricator(1), rand.New(rand.NewSource(1)), 7, pools, testNewsOptions())
	require.NoError(t, err)
	assert.Len(t, ids, 7)
	assert.IsIncreasing(t, ids)

	// the generator never commits
	assert.Zero(t, database.RowCount(db.News))
	require.NoError(t, tx.Commit(ctx))
	assert.Equal(t, 7, database.RowCount(db.News))
}

type shortTx struct {
	db.Tx
}

func (t shortTx) InsertNews(ctx context.Context, rows []db.NewsRow) ([]int64, error) {
	ids, err := t.Tx.InsertNews(ctx, rows)
	if err != nil || len(ids) == 0 {
		return ids, err
	}
	return ids[:len(ids)-1], nil
}

func TestGenerateNewsBatch_ShortIDList(t *testing.T) {
	ctx := context.Background()
	database := db.NewMemoryDatabase()
	pools := loadPools(t, database)

	tx, err := database.Begin(ctx)
	require.NoError(t, err)
	_, err = GenerateNewsBatch(ctx, shortTx{tx}, fabricate.NewFakeFabricator(1), rand.New(rand.NewSource(1)), 5, pools, testNewsOptions())
	var partialErr *loaderrors.ErrPartialBatch
	require.ErrorAs(t, err, &partialErr)
	assert.Equal(t, StageFacts, partialErr.Stage)
}
