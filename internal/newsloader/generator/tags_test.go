package generator

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsbench/newsloader/internal/common/loaderrors"
	"github.com/newsbench/newsloader/internal/newsloader/db"
	"github.com/newsbench/newsloader/internal/newsloader/fabricate"
)

func TestDrawTagLinks_CountsPerNews(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	newsIDs := make([]int64, 500)
	for i := range newsIDs {
		newsIDs[i] = int64(i + 1)
	}
	tagIDs := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	links := DrawTagLinks(rng, newsIDs, tagIDs, 2, 5)
	perNews := map[int64]int{}
	for _, link := range links {
		perNews[link.NewsID]++
		assert.Contains(t, tagIDs, link.TagID)
	}
	seen := map[int]bool{}
	for _, id := range newsIDs {
		assert.GreaterOrEqual(t, perNews[id], 2)
		assert.LessOrEqual(t, perNews[id], 5)
		seen[perNews[id]] = true
	}
	// every k in [2, 5] turns up over 500 draws
	assert.Len(t, seen, 4)
}

func TestDrawTagLinks_Degenerate(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	assert.Empty(t, DrawTagLinks(rng, []int64{1, 2}, nil, 2, 5))
	assert.Empty(t, DrawTagLinks(rng, []int64{1, 2}, []int64{1}, 0, 0))
	assert.Len(t, DrawTagLinks(rng, []int64{1, 2}, []int64{1}, 3, 3), 6)
}

func TestGenerateTagLinks(t *testing.T) {
	ctx := context.Background()
	database := db.NewMemoryDatabase()
	pools := loadPools(t, database)

	tx, err := database.Begin(ctx)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(2))
	newsIDs, err := GenerateNewsBatch(ctx, tx, fabricate.NewFakeFabricator(2), rng, 10, pools, testNewsOptions())
	require.NoError(t, err)

	attempted, persisted, err := GenerateTagLinks(ctx, tx, rng, newsIDs, pools.Tags, 2, 5)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, attempted, 20)
	assert.LessOrEqual(t, attempted, 50)
	assert.LessOrEqual(t, persisted, int64(attempted))
	assert.Positive(t, persisted)

	require.NoError(t, tx.Commit(ctx))
	links := database.CommittedNewsTags()
	assert.Len(t, links, int(persisted))
	for _, link := range links {
		assert.Contains(t, newsIDs, link.NewsID)
	}
}

func TestGenerateTagLinks_DuplicatesCollapse(t *testing.T) {
	ctx := context.Background()
	database := db.NewMemoryDatabase()
	pools := loadPools(t, database)

	tx, err := database.Begin(ctx)
	require.NoError(t, err)
	newsIDs, err := GenerateNewsBatch(ctx, tx, fabricate.NewFakeFabricator(2), rand.New(rand.NewSource(2)), 1, pools, testNewsOptions())
	require.NoError(t, err)

	// a single tag forces every draw onto the same pair
	attempted, persisted, err := GenerateTagLinks(ctx, tx, rand.New(rand.NewSource(3)), newsIDs, pools.Tags[:1], 4, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, attempted)
	assert.Equal(t, int64(1), persisted)
}

func TestGenerateTagLinks_NoTags(t *testing.T) {
	ctx := context.Background()
	database := db.NewMemoryDatabase()
	tx, err := database.Begin(ctx)
	require.NoError(t, err)

	_, _, err = GenerateTagLinks(ctx, tx, rand.New(rand.NewSource(1)), []int64{1}, nil, 2, 5)
	var integrityErr *loaderrors.ErrReferentialIntegrity
	assert.ErrorAs(t, err, &integrityErr)
}
