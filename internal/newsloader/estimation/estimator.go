package estimation

import (
	"fmt"

	"github.com/newsbench/newsloader/internal/newsloader/configuration"
	"github.com/newsbench/newsloader/internal/newsloader/controller"
)

// Approximate on-disk sizes, heap tuple plus primary key index entry.
const (
	avgBytesPerReferenceRow = 90
	avgBytesPerNewsOverhead = 110
	avgBytesPerWord         = 8
	avgBytesPerTagLink      = 70
)

type Estimation struct {
	ReferenceRows int64
	NewsRows      int64
	Windows       int
	// Tag links drawn, before duplicate pairs are discarded.
	MinTagLinks                int64
	MaxTagLinks                int64
	ExpectedTagLinks           int64
	TotalRows                  int64
	EstimatedDatabaseSizeBytes int64
}

func Estimate(config configuration.LoaderConfiguration) Estimation {
	news := int64(config.News.Total)
	minLinks := news * int64(config.Tags.MinPerNews)
	maxLinks := news * int64(config.Tags.MaxPerNews)
	expectedLinks := (minLinks + maxLinks) / 2
	referenceRows := config.TotalReferenceRows()

	// content length is uniform below the maximum
	bytesPerNews := int64(avgBytesPerNewsOverhead + config.News.TitleWords*avgBytesPerWord + config.News.ContentMaxChars/2)
	bytes := referenceRows*avgBytesPerReferenceRow + news*bytesPerNews + expectedLinks*avgBytesPerTagLink

	return Estimation{
		ReferenceRows:              referenceRows,
		NewsRows:                   news,
		Windows:                    len(controller.Windows(config.News.Total, config.News.BatchSize)),
		MinTagLinks:                minLinks,
		MaxTagLinks:                maxLinks,
		ExpectedTagLinks:           expectedLinks,
		TotalRows:                  referenceRows + news + expectedLinks,
		EstimatedDatabaseSizeBytes: bytes,
	}
}

func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.2f TB", float64(bytes)/float64(TB))
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
