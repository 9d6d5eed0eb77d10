package maintenance

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"

	testutil "github.com/charlesng35/solite/internal/database/testutil"
	"github.com/charlesng35/solite/internal/services"
	"github.com/charlesng35/solite/internal/store"
)

func TestCleanerRunOnceRemovesExpiredNotifications(t *testing.T) {
	db := testutil.OpenTestDB(t, testutil.WithAutoMigrate())
	st, err := store.NewGormStore(db)
	require.NoError(t, err)
	svc, err := services.NewNotificationService(st, nil)
	require.NoError(t, err)

	clock := fixedClock{current: time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)}
	ctx := context.Background()

	require.NoError(t, st.Insert(ctx, &store.Notification{
		PostID: "stale", Message: "old", SeenBy: []string{"u1"}, CreatedAt: clock.Now().Add(-25 * time.Hour),
	}))
	require.NoError(t, st.Insert(ctx, &store.Notification{
		PostID: "fresh", Message: "new", CreatedAt: clock.Now().Add(-time.Hour),
	}))

	c := NewCleaner([]NotificationPurger{svc},
		WithNow(clock.Now),
		WithCron(cron.New(cron.WithLogger(cron.DiscardLogger))),
	)
	require.Equal(t, 24*time.Hour, c.Retention())
	require.NoError(t, c.RunOnce(ctx))

	_, err = st.FindByPostID(ctx, "stale")
	require.ErrorIs(t, err, store.ErrNotFound)
	remaining, err := st.FindByPostID(ctx, "fresh")
	require.NoError(t, err)
	require.Equal(t, "new", remaining.Message)

	// Nothing is left to remove on a second pass.
	require.NoError(t, c.RunOnce(ctx))
}

func TestCleanerRunOnceKeepsNotificationsAtCutoff(t *testing.T) {
	db := testutil.OpenTestDB(t, testutil.WithAutoMigrate())
	st, err := store.NewGormStore(db)
	require.NoError(t, err)
	svc, err := services.NewNotificationService(st, nil)
	require.NoError(t, err)

	clock := fixedClock{current: time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)}
	cutoff := clock.Now().Add(-24 * time.Hour)
	ctx := context.Background()

	require.NoError(t, st.Insert(ctx, &store.Notification{PostID: "at-cutoff", Message: "edge", CreatedAt: cutoff}))
	require.NoError(t, st.Insert(ctx, &store.Notification{PostID: "just-before", Message: "edge", CreatedAt: cutoff.Add(-time.Nanosecond)}))

	c := NewCleaner([]NotificationPurger{svc}, WithNow(clock.Now))
	require.NoError(t, c.RunOnce(ctx))

	_, err = st.FindByPostID(ctx, "just-before")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.FindByPostID(ctx, "at-cutoff")
	require.NoError(t, err)
}

func TestCleanerRunOnceUsesRetention(t *testing.T) {
	clock := fixedClock{current: time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC)}
	purger := &recordingPurger{}

	c := NewCleaner([]NotificationPurger{purger}, WithNow(clock.Now), WithRetention(2*time.Hour))
	require.NoError(t, c.RunOnce(context.Background()))
	require.Equal(t, clock.Now().Add(-2*time.Hour), purger.lastCutoff)
}

func TestCleanerRunOnceCombinesErrors(t *testing.T) {
	first := &recordingPurger{err: errors.New("mongo down")}
	second := &recordingPurger{}
	third := &recordingPurger{err: errors.New("sqlite locked")}

	c := NewCleaner([]NotificationPurger{first, nil, second, third})
	err := c.RunOnce(context.Background())
	require.Error(t, err)
	require.ErrorContains(t, err, "mongo down")
	require.ErrorContains(t, err, "sqlite locked")
	require.Equal(t, int32(1), second.calls.Load())
}

func TestCleanerWithoutPurgers(t *testing.T) {
	c := NewCleaner(nil)
	require.NoError(t, c.Start())
	require.Error(t, c.RunOnce(context.Background()))
	<-c.Stop().Done()
}

func TestCleanerStartSchedulesPurge(t *testing.T) {
	purger := &recordingPurger{}
	c := NewCleaner([]NotificationPurger{purger}, WithSchedule("@every 1s"))
	require.NoError(t, c.Start())
	require.NoError(t, c.Start())

	require.Eventually(t, func() bool {
		return purger.calls.Load() > 0
	}, 5*time.Second, 50*time.Millisecond)

	<-c.Stop().Done()
}

func TestCleanerStartRejectsBadSchedule(t *testing.T) {
	c := NewCleaner([]NotificationPurger{&recordingPurger{}}, WithSchedule("not a schedule"))
	require.Error(t, c.Start())
}

type recordingPurger struct {
	err        error
	calls      atomic.Int32
	lastCutoff time.Time
}

func (p *recordingPurger) PurgeOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	p.calls.Add(1)
	p.lastCutoff = cutoff
	if p.err != nil {
		return 0, p.err
	}
	return 0, nil
}

type fixedClock struct {
	current time.Time
}

func (c fixedClock) Now() time.Time {
	return c.current
}
