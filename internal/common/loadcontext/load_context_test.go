package loadcontext

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newsbench/newsloader/internal/common/logging"
)

var defaultLogger = logging.StdLogger().WithField("foo", "bar")

func nullContext() *Context {
	return New(context.Background(), logging.NullEntry())
}

func TestNew(t *testing.T) {
	ctx := New(context.Background(), defaultLogger)
	require.Equal(t, defaultLogger, ctx.Log)
	require.Equal(t, context.Background(), ctx.Context)
}

func TestWithLogField(t *testing.T) {
	ctx := WithLogField(nullContext(), "worker", 4)
	require.Equal(t, context.Background(), ctx.Context)
	require.Equal(t, logrus.Fields{"worker": 4}, ctx.Log.Data)
}

func TestForWindow(t *testing.T) {
	ctx := ForWindow(WithLogField(nullContext(), "worker", 1), 3, 30, 10)
	assert.Equal(t, logrus.Fields{"worker": 1, "window": 3, "offset": 30, "size": 10}, ctx.Log.Data)
}

func TestForTable(t *testing.T) {
	ctx := ForTable(nullContext(), "authors")
	assert.Equal(t, logrus.Fields{"table": "authors"}, ctx.Log.Data)
}

func TestWithOperationTimeout(t *testing.T) {
	ctx, cancel := WithOperationTimeout(nullContext(), 50*time.Millisecond)
	defer cancel()
	testDeadline(t, ctx)
}

func TestWithOperationTimeout_Zero(t *testing.T) {
	parent := nullContext()
	ctx, cancel := WithOperationTimeout(parent, 0)
	cancel()
	assert.Same(t, parent, ctx)
	_, ok := ctx.Deadline()
	assert.False(t, ok)
	assert.NoError(t, ctx.Err())
}

func TestWithoutCancel(t *testing.T) {
	parent, cancel := WithCancel(New(context.Background(), defaultLogger))
	ctx := WithoutCancel(parent)
	cancel()
	assert.Error(t, parent.Err())
	assert.NoError(t, ctx.Err())
	assert.Equal(t, defaultLogger, ctx.Log)
}

func TestDetached(t *testing.T) {
	parent, cancel := WithCancel(ForWindow(nullContext(), 2, 20, 10))
	cancel()

	ctx, cancelDetached := Detached(parent, 50*time.Millisecond)
	defer cancelDetached()
	assert.NoError(t, ctx.Err())
	assert.Equal(t, parent.Log, ctx.Log)
	testDeadline(t, ctx)
}

func TestErrGroup_CancelsOnFirstError(t *testing.T) {
	g, ctx := ErrGroup(nullContext())
	g.Go(func() error { return assert.AnError })
	g.Go(func() error {
		<-ctx.Done()
		return nil
	})
	assert.ErrorIs(t, g.Wait(), assert.AnError)
}

func testDeadline(t *testing.T, c *Context) {
	t.Helper()
	timer := time.NewTimer(5 * time.Second)
	defer timer.Stop()
	select {
	case <-timer.C:
		t.Fatal("context not timed out")
	case <-c.Done():
	}
	assert.ErrorIs(t, c.Err(), context.DeadlineExceeded)
}
