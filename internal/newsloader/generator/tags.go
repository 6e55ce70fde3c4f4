package generator

import (
	"context"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/newsbench/newsloader/internal/common/loaderrors"
	"github.com/newsbench/newsloader/internal/newsloader/db"
)

// DrawTagLinks draws, for every news id, k tags uniformly with replacement where k is uniform in [minPerNews, maxPerNews].
// The result may contain repeated pairs.
func DrawTagLinks(rng *rand.Rand, newsIDs []int64, tagIDs []int64, minPerNews int, maxPerNews int) []db.NewsTag {
	if len(tagIDs) == 0 || maxPerNews <= 0 {
		return nil
	}
	links := make([]db.NewsTag, 0, len(newsIDs)*(minPerNews+maxPerNews)/2)
	for _, newsID := range newsIDs {
		k := minPerNews + rng.Intn(maxPerNews-minPerNews+1)
		for j := 0; j < k; j++ {
			links = append(links, db.NewsTag{NewsID: newsID, TagID: pick(rng, tagIDs)})
		}
	}
	return links
}

// GenerateTagLinks draws links for newsIDs and inserts them through tx without committing, ignoring pairs
// that repeat.  Returns how many links were attempted and how many were persisted.
func GenerateTagLinks(
	ctx context.Context,
	tx db.Tx,
	rng *rand.Rand,
	newsIDs []int64,
	tagIDs []int64,
	minPerNews int,
	maxPerNews int,
) (attempted int, persisted int64, err error) {
	if len(tagIDs) == 0 && maxPerNews > 0 && len(newsIDs) > 0 {
		return 0, 0, errors.WithStack(&loaderrors.ErrReferentialIntegrity{
			Table:   string(db.NewsTags),
			Message: "no tags to reference",
		})
	}
	links := DrawTagLinks(rng, newsIDs, tagIDs, minPerNews, maxPerNews)
	if len(links) == 0 {
		return 0, 0, nil
	}
	persisted, err = tx.InsertNewsTags(ctx, links)
	if err != nil {
		return len(links), 0, err
	}
	if persisted < 0 || persisted > int64(len(links)) {
		return len(links), persisted, errors.WithStack(&loaderrors.ErrPartialBatch{
			Window: -1,
			Stage:  StageAssociations,
			Cause:  errors.Errorf("store reported %d links persisted of %d attempted", persisted, len(links)),
		})
	}
	return len(links), persisted, nil
}
