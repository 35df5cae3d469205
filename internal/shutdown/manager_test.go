package shutdown

import (
	"context"
	"errors"
	"testing"
	"time"

	"leaffliction/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTriggerCancelsContextOnce(t *testing.T) {
	m := NewManager(context.Background(), logger.NewNop(), 0)

	require.NoError(t, m.Context().Err())
	m.Trigger("test")
	m.Trigger("again")

	assert.ErrorIs(t, m.Context().Err(), context.Canceled)
	select {
	case <-m.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestShutdownRunsHooksInReverse(t *testing.T) {
	m := NewManager(context.Background(), logger.NewNop(), time.Second)

	var order []string
	m.Register("first", func(context.Context) error {
		order = append(order, "first")
		return nil
	})
	m.Register("second", func(context.Context) error {
		order = append(order, "second")
		return errors.New("flush failed")
	})

	err := m.Shutdown()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "second")
	assert.Equal(t, []string{"second", "first"}, order)

	require.NoError(t, m.Shutdown(), "hooks run at most once")
	assert.Len(t, order, 2)
}

func TestShutdownHookTimeout(t *testing.T) {
	m := NewManager(context.Background(), logger.NewNop(), 20*time.Millisecond)

	release := make(chan struct{})
	defer close(release)
	m.Register("stuck", func(context.Context) error {
		<-release
		return nil
	})

	err := m.Shutdown()
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestParentCancellationPropagates(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	m := NewManager(parent, logger.NewNop(), 0)

	cancel()
	assert.ErrorIs(t, m.Context().Err(), context.Canceled)
}
