package feed

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blues/ideafund/internal/funding"
	"github.com/blues/ideafund/internal/model"
	"github.com/blues/ideafund/internal/notify"
	"github.com/blues/ideafund/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const owner = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type clock struct {
	now atomic.Int64
}

func (c *clock) Now() time.Time {
	return time.Unix(0, c.now.Load()).UTC()
}

func (c *clock) Set(t time.Time) {
	c.now.Store(t.UnixNano())
}

// flakyStore 可以让 ListIdeas 失败
type flakyStore struct {
	*repository.MemoryStore
	fail atomic.Bool
}

var errUnavailable = errors.New("store unavailable")

func (s *flakyStore) ListIdeas(ctx context.Context, q repository.IdeaQuery) ([]model.IdeaModel, error) {
	if s.fail.Load() {
		return nil, errUnavailable
	}
	return s.MemoryStore.ListIdeas(ctx, q)
}

func newEngine(store repository.Store, c *clock) *funding.Engine {
	return funding.NewEngine(store, nil, funding.WithClock(c.Now))
}

func createIdea(t *testing.T, engine *funding.Engine, title string, days int) *model.IdeaModel {
	t.Helper()
	idea, err := engine.CreateIdea(context.Background(), funding.NewIdea{
		OwnerAddress: owner,
		Title:        title,
		MoneyNeeded:  decimal.NewFromInt(1000),
		DurationDays: days,
	})
	require.NoError(t, err)
	return idea
}

func TestRefreshExpiresPastDeadline(t *testing.T) {
	ctx := context.Background()
	c := &clock{}
	c.Set(t0)
	store := repository.NewMemoryStore(nil)
	engine := newEngine(store, c)

	stale := createIdea(t, engine, "stale", 1)
	c.Set(t0.Add(time.Hour))
	live := createIdea(t, engine, "live", 30)

	c.Set(t0.Add(3 * 24 * time.Hour))
	f := New(store, engine)
	ideas, err := f.Refresh(ctx)
	require.NoError(t, err)
	require.Len(t, ideas, 2)

	assert.Equal(t, live.Id, ideas[0].Id)
	assert.Equal(t, model.IdeaStatusOpen, ideas[0].Status)
	assert.Equal(t, stale.Id, ideas[1].Id)
	assert.Equal(t, model.IdeaStatusExpired, ideas[1].Status)

	stored, err := store.GetIdea(ctx, stale.Id)
	require.NoError(t, err)
	assert.Equal(t, model.IdeaStatusExpired, stored.Status)

	assert.Equal(t, ideas, f.Snapshot())
	assert.NoError(t, f.LastError())
	assert.False(t, f.RefreshedAt().IsZero())
}

func TestRefreshFailureKeepsCachedView(t *testing.T) {
	ctx := context.Background()
	c := &clock{}
	c.Set(t0)
	store := &flakyStore{MemoryStore: repository.NewMemoryStore(nil)}
	engine := newEngine(store, c)
	createIdea(t, engine, "first", 30)

	f := New(store, engine)
	before, err := f.Refresh(ctx)
	require.NoError(t, err)
	require.Len(t, before, 1)

	store.fail.Store(true)
	createIdea(t, engine, "second", 30)

	view, err := f.Refresh(ctx)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.ErrorIs(t, err, errUnavailable)
	assert.Equal(t, before, view)
	assert.Equal(t, before, f.Snapshot())
	assert.ErrorIs(t, f.LastError(), errUnavailable)

	store.fail.Store(false)
	view, err = f.Refresh(ctx)
	require.NoError(t, err)
	assert.Len(t, view, 2)
	assert.NoError(t, f.LastError())
}

func TestStartRefreshesOnChange(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := &clock{}
	c.Set(t0)
	broker, err := notify.NewLocalBroker(4)
	require.NoError(t, err)
	defer broker.Close()
	store := repository.NewMemoryStore(broker)
	engine := newEngine(store, c)

	f := New(store, engine)
	updates, stop := f.Watch()
	defer stop()

	f.Start(ctx)
	require.Eventually(t, func() bool { return f.Snapshot() != nil }, 2*time.Second, 10*time.Millisecond)

	idea := createIdea(t, engine, "reactive", 30)
	require.Eventually(t, func() bool {
		ideas := f.Snapshot()
		return len(ideas) == 1 && ideas[0].Id == idea.Id
	}, 2*time.Second, 10*time.Millisecond)

	_, err = store.UpdateIdeaStatus(ctx, idea.Id, model.IdeaStatusOpen, model.IdeaStatusFunded)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		ideas := f.Snapshot()
		return len(ideas) == 1 && ideas[0].Status == model.IdeaStatusFunded
	}, 2*time.Second, 10*time.Millisecond)

	select {
	case view := <-updates:
		assert.NotNil(t, view)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher received no view")
	}
}

func TestInvalidateCoalesces(t *testing.T) {
	f := New(repository.NewMemoryStore(nil), newEngine(repository.NewMemoryStore(nil), &clock{}))
	for i := 0; i < 10; i++ {
		f.Invalidate()
	}
	assert.Len(t, f.trigger, 1)
}

func TestWatchUnsubscribe(t *testing.T) {
	ctx := context.Background()
	c := &clock{}
	c.Set(t0)
	store := repository.NewMemoryStore(nil)
	engine := newEngine(store, c)
	createIdea(t, engine, "watched", 30)

	f := New(store, engine)
	ch, stop := f.Watch()
	_, err := f.Refresh(ctx)
	require.NoError(t, err)

	view := <-ch
	assert.Len(t, view, 1)

	stop()
	stop()
	_, err = f.Refresh(ctx)
	require.NoError(t, err)
	assert.Empty(t, ch)
}
