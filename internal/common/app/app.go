package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/newsbench/newsloader/internal/common/loadcontext"
	"github.com/newsbench/newsloader/internal/common/logging"
)

// CreateContextWithShutdown returns a context that will report done when a SIGINT or SIGTERM is received
func CreateContextWithShutdown() (*loadcontext.Context, context.CancelFunc) {
	ctx, cancel := loadcontext.WithCancel(loadcontext.New(context.Background(), logging.StdLogger()))
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(c)
		select {
		case sig := <-c:
			logging.Warnf("Received %s, stopping after rolling back the current window", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
