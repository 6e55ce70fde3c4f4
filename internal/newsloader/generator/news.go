package generator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/pkg/errors"

	"github.com/newsbench/newsloader/internal/common/loaderrors"
	"github.com/newsbench/newsloader/internal/newsloader/configuration"
	"github.com/newsbench/newsloader/internal/newsloader/db"
	"github.com/newsbench/newsloader/internal/newsloader/fabricate"
)

const (
	StageFacts        = "facts"
	StageAssociations = "associations"
)

// NewsOptions shapes the generated news rows.
type NewsOptions struct {
	TitleWords      int
	ContentMaxChars int
	PublishedFrom   time.Time
	PublishedUntil  time.Time
}

// NewsOptionsFromConfig anchors the publication window at until, or at now if the config doesn't fix it.
func NewsOptionsFromConfig(config configuration.NewsConfig, now time.Time) NewsOptions {
	until := config.PublishedUntil
	if until.IsZero() {
		until = now
	}
	until = until.UTC().Truncate(time.Microsecond)
	return NewsOptions{
		TitleWords:      config.TitleWords,
		ContentMaxChars: config.ContentMaxChars,
		PublishedFrom:   until.Add(-config.PublishedWindow),
		PublishedUntil:  until,
	}
}

// BuildNewsBatch synthesises size news rows.  Foreign keys are drawn uniformly, with replacement and
// independently of each other from pools.
func BuildNewsBatch(
	fabricator fabricate.Fabricator,
	rng *rand.Rand,
	size int,
	pools KeyPools,
	opts NewsOptions,
) ([]db.NewsRow, error) {
	for _, table := range []db.Table{db.Authors, db.Sources, db.Categories} {
		if len(pools.Get(table)) == 0 {
			return nil, errors.WithStack(&loaderrors.ErrReferentialIntegrity{
				Table:   string(db.News),
				Message: fmt.Sprintf("no %s to reference", table),
			})
		}
	}
	rows := make([]db.NewsRow, size)
	for i := range rows {
		rows[i] = db.NewsRow{
			Title:       fabricator.Sentence(opts.TitleWords),
			Content:     fabricator.Text(opts.ContentMaxChars),
			PublishedAt: fabricator.Timestamp(opts.PublishedFrom, opts.PublishedUntil),
			AuthorID:    pick(rng, pools.Authors),
			SourceID:    pick(rng, pools.Sources),
			CategoryID:  pick(rng, pools.Categories),
		}
	}
	return rows, nil
}

// GenerateNewsBatch builds size rows and inserts them through tx without committing.
// Returns the ids of the new rows in insertion order.
func GenerateNewsBatch(
	ctx context.Context,
	tx db.Tx,
	fabricator fabricate.Fabricator,
	rng *rand.Rand,
	size int,
	pools KeyPools,
	opts NewsOptions,
) ([]int64, error) {
	rows, err := BuildNewsBatch(fabricator, rng, size, pools, opts)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	ids, err := tx.InsertNews(ctx, rows)
	if err != nil {
		return nil, err
	}
	if len(ids) != len(rows) {
		return nil, errors.WithStack(&loaderrors.ErrPartialBatch{
			Window: -1,
			Stage:  StageFacts,
			Cause:  errors.Errorf("store returned %d ids for %d rows", len(ids), len(rows)),
		})
	}
	return ids, nil
}

func pick(rng *rand.Rand, pool []int64) int64 {
	return pool[rng.Intn(len(pool))]
}
