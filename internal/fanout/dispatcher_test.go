package fanout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu      sync.Mutex
	jobs    []Job
	err     error
	release chan struct{}
}

func (n *recordingNotifier) Notify(ctx context.Context, job Job) error {
	if n.release != nil {
		select {
		case <-n.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.jobs = append(n.jobs, job)
	return n.err
}

func (n *recordingNotifier) delivered() []Job {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Job(nil), n.jobs...)
}

func TestNewDispatcherRequiresNotifier(t *testing.T) {
	_, err := NewDispatcher(nil)
	require.Error(t, err)
}

func TestDispatcherDeliversAndDrains(t *testing.T) {
	notifier := &recordingNotifier{}
	d, err := NewDispatcher(notifier)
	require.NoError(t, err)

	require.NoError(t, d.Submit(Job{PostID: "p1", Message: "m1", BearerToken: "tok"}))
	require.NoError(t, d.Submit(Job{PostID: "p2", Message: "m2"}))
	require.NoError(t, d.Close(context.Background()))

	require.ElementsMatch(t, []Job{
		{PostID: "p1", Message: "m1", BearerToken: "tok"},
		{PostID: "p2", Message: "m2"},
	}, notifier.delivered())

	require.ErrorIs(t, d.Submit(Job{PostID: "p3"}), ErrDispatcherClosed)
}

func TestDispatcherSubmitDoesNotBlock(t *testing.T) {
	notifier := &recordingNotifier{release: make(chan struct{})}
	d, err := NewDispatcher(notifier)
	require.NoError(t, err)

	require.NoError(t, d.Submit(Job{PostID: "slow"}))
	require.Empty(t, notifier.delivered())

	close(notifier.release)
	require.NoError(t, d.Close(context.Background()))
	require.Len(t, notifier.delivered(), 1)
}

func TestDispatcherSwallowsFailures(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("upstream down")}
	d, err := NewDispatcher(notifier)
	require.NoError(t, err)

	require.NoError(t, d.Submit(Job{PostID: "p1"}))
	require.NoError(t, d.Close(context.Background()))
	require.Len(t, notifier.delivered(), 1)
}

func TestDispatcherJobTimeout(t *testing.T) {
	notifier := &recordingNotifier{release: make(chan struct{})}
	d, err := NewDispatcher(notifier, WithJobTimeout(20*time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, d.Submit(Job{PostID: "stuck"}))
	require.NoError(t, d.Close(context.Background()))
	require.Empty(t, notifier.delivered())
}

func TestDispatcherCloseHonoursContext(t *testing.T) {
	notifier := &recordingNotifier{release: make(chan struct{})}
	d, err := NewDispatcher(notifier, WithJobTimeout(time.Minute))
	require.NoError(t, err)
	require.NoError(t, d.Submit(Job{PostID: "stuck"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, d.Close(ctx), context.DeadlineExceeded)

	close(notifier.release)
}
