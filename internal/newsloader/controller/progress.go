package controller

import (
	"github.com/schollz/progressbar/v3"

	"github.com/newsbench/newsloader/internal/common/loadcontext"
)

// Reporter is told the cumulative number of news rows committed after every window commit.
// Calls are serialised and inserted never decreases.
type Reporter interface {
	Report(ctx *loadcontext.Context, inserted int64, total int64)
	Finish()
}

// LogReporter logs "<inserted>/<total> inserted".
type LogReporter struct{}

func (LogReporter) Report(ctx *loadcontext.Context, inserted int64, total int64) {
	ctx.Log.Infof("%d/%d inserted", inserted, total)
}

func (LogReporter) Finish() {}

// ProgressBarReporter renders progress as a terminal progress bar.
type ProgressBarReporter struct {
	bar *progressbar.ProgressBar
}

func NewProgressBarReporter(total int64) *ProgressBarReporter {
	return &ProgressBarReporter{
		bar: progressbar.NewOptions64(total,
			progressbar.OptionSetDescription("news"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("rows"),
			progressbar.OptionThrottle(100_000_000),
			progressbar.OptionFullWidth(),
		),
	}
}

func (r *ProgressBarReporter) Report(_ *loadcontext.Context, inserted int64, _ int64) {
	_ = r.bar.Set64(inserted)
}

func (r *ProgressBarReporter) Finish() {
	_ = r.bar.Finish()
}
