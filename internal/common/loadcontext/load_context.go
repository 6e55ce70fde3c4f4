package loadcontext

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Context is a go context carrying the logger of the unit of work it belongs to (a run, a reference table,
// a window), so anything handed a Context logs with the right fields.
type Context struct {
	context.Context
	Log *logrus.Entry
}

// New returns a context that encapsulates both a go context and a logger
func New(ctx context.Context, log *logrus.Entry) *Context {
	return &Context{
		Context: ctx,
		Log:     log,
	}
}

func derive(parent *Context, ctx context.Context) *Context {
	return &Context{Context: ctx, Log: parent.Log}
}

// WithCancel is analogous to context.WithCancel()
func WithCancel(parent *Context) (*Context, context.CancelFunc) {
	c, cancel := context.WithCancel(parent.Context)
	return derive(parent, c), cancel
}

// WithOperationTimeout bounds a single attempt at an operation.  A timeout of zero or less leaves parent unbounded.
func WithOperationTimeout(parent *Context, timeout time.Duration) (*Context, context.CancelFunc) {
	if timeout <= 0 {
		return parent, func() {}
	}
	c, cancel := context.WithTimeout(parent.Context, timeout)
	return derive(parent, c), cancel
}

// WithoutCancel returns a copy of parent that is not cancelled when parent is. It is analogous to context.WithoutCancel()
func WithoutCancel(parent *Context) *Context {
	return derive(parent, context.WithoutCancel(parent.Context))
}

// Detached returns a context for cleanup after parent may have been cancelled or timed out, e.g. rolling back
// or checking whether a commit landed.  It keeps the logger and is bounded by timeout only.
func Detached(parent *Context, timeout time.Duration) (*Context, context.CancelFunc) {
	c, cancel := context.WithTimeout(context.WithoutCancel(parent.Context), timeout)
	return derive(parent, c), cancel
}

// WithLogField returns a copy of parent with the supplied key-value added to the logger
func WithLogField(parent *Context, key string, val any) *Context {
	return &Context{
		Context: parent.Context,
		Log:     parent.Log.WithField(key, val),
	}
}

// ForWindow scopes parent to the news window starting at offset.
func ForWindow(parent *Context, index, offset, size int) *Context {
	return &Context{
		Context: parent.Context,
		Log:     parent.Log.WithFields(logrus.Fields{"window": index, "offset": offset, "size": size}),
	}
}

// ForTable scopes parent to the load of a single table.
func ForTable(parent *Context, table string) *Context {
	return WithLogField(parent, "table", table)
}

// ErrGroup returns a new Error Group and an associated Context derived from ctx.
// It is analogous to errgroup.WithContext(ctx)
func ErrGroup(ctx *Context) (*errgroup.Group, *Context) {
	group, goctx := errgroup.WithContext(ctx)
	return group, derive(ctx, goctx)
}
