package watch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshcut/chickenshop/internal/feed"
	"github.com/freshcut/chickenshop/pkg/enums"
)

const wait = time.Second

func TestWatcherRunsInitialPollAndFeed(t *testing.T) {
	hub := feed.NewHub(nil)
	clk := clock.NewMock()
	w := New(KitchenPolicy(10*time.Second), hub, clk, nil, nil)

	var calls atomic.Int32
	require.NoError(t, w.Subscribe(context.Background(), func(context.Context) { calls.Add(1) }))
	t.Cleanup(func() { _ = w.Close() })

	require.Eventually(t, func() bool { return calls.Load() == 1 }, wait, time.Millisecond)

	clk.Add(10 * time.Second)
	require.Eventually(t, func() bool { return calls.Load() == 2 }, wait, time.Millisecond)

	hub.Dispatch(context.Background(), feed.Change{Table: feed.TableOrders, Op: enums.ChangeOpUpdate})
	require.Eventually(t, func() bool { return calls.Load() == 3 }, wait, time.Millisecond)

	// unrelated tables do not wake the kitchen watcher
	hub.Dispatch(context.Background(), feed.Change{Table: feed.TableDailySales, Op: enums.ChangeOpInsert})
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 3, calls.Load())
}

func TestWatcherTrackingFiltersByUser(t *testing.T) {
	hub := feed.NewHub(nil)
	w := New(TrackingPolicy("u-1", 15*time.Second), hub, clock.NewMock(), nil, nil)

	var calls atomic.Int32
	require.NoError(t, w.Subscribe(context.Background(), func(context.Context) { calls.Add(1) }))
	t.Cleanup(func() { _ = w.Close() })
	require.Eventually(t, func() bool { return calls.Load() == 1 }, wait, time.Millisecond)

	hub.Dispatch(context.Background(), feed.Change{Table: feed.TableOrders, UserID: "u-2"})
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 1, calls.Load())

	hub.Dispatch(context.Background(), feed.Change{Table: feed.TableOrders, UserID: "u-1"})
	require.Eventually(t, func() bool { return calls.Load() == 2 }, wait, time.Millisecond)
}

func TestWatcherRunsSerially(t *testing.T) {
	hub := feed.NewHub(nil)
	w := New(SalesPolicy(30*time.Second), hub, clock.NewMock(), nil, nil)

	var inflight, maxInflight, calls atomic.Int32
	release := make(chan struct{})
	require.NoError(t, w.Subscribe(context.Background(), func(context.Context) {
		n := inflight.Add(1)
		if n > maxInflight.Load() {
			maxInflight.Store(n)
		}
		if calls.Add(1) == 1 {
			<-release
		}
		inflight.Add(-1)
	}))
	t.Cleanup(func() { _ = w.Close() })

	for i := 0; i < 5; i++ {
		hub.Dispatch(context.Background(), feed.Change{Table: feed.TableOrders})
	}
	close(release)

	// five events during one run coalesce into a single follow-up
	require.Eventually(t, func() bool { return calls.Load() == 2 }, wait, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 2, calls.Load())
	assert.EqualValues(t, 1, maxInflight.Load())
}

func TestWatcherCloseTearsDown(t *testing.T) {
	hub := feed.NewHub(nil)
	clk := clock.NewMock()
	w := New(DeliveryPolicy(10*time.Second), hub, clk, nil, nil)

	var calls atomic.Int32
	require.NoError(t, w.Subscribe(context.Background(), func(context.Context) { calls.Add(1) }))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, wait, time.Millisecond)
	require.Equal(t, 1, hub.Len())

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.Equal(t, 0, hub.Len())

	clk.Add(time.Minute)
	hub.Dispatch(context.Background(), feed.Change{Table: feed.TableOrders})
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 1, calls.Load())

	assert.ErrorIs(t, w.Subscribe(context.Background(), func(context.Context) {}), ErrClosed)
}

func TestWatcherPollOnlyWithoutFeed(t *testing.T) {
	clk := clock.NewMock()
	w := New(StatusBarPolicy(5*time.Second), nil, clk, nil, nil)

	var calls atomic.Int32
	require.NoError(t, w.Subscribe(context.Background(), func(context.Context) { calls.Add(1) }))
	t.Cleanup(func() { _ = w.Close() })
	require.ErrorIs(t, w.Subscribe(context.Background(), func(context.Context) {}), ErrSubscribed)

	require.Eventually(t, func() bool { return calls.Load() == 1 }, wait, time.Millisecond)
	clk.Add(5 * time.Second)
	require.Eventually(t, func() bool { return calls.Load() == 2 }, wait, time.Millisecond)
}

func TestBoardReplacesSnapshotAndKeepsItOnError(t *testing.T) {
	clk := clock.NewMock()
	w := New(KitchenPolicy(10*time.Second), nil, clk, nil, nil)

	var n atomic.Int32
	var fail atomic.Bool
	board, err := NewBoard(w, func(context.Context) ([]string, error) {
		if fail.Load() {
			return nil, errors.New("backend unavailable")
		}
		if n.Add(1) == 1 {
			return []string{"o-1"}, nil
		}
		return []string{"o-1", "o-2"}, nil
	}, nil, nil)
	require.NoError(t, err)

	var seen atomic.Int32
	cancel := board.OnChange(func([]string) { seen.Add(1) })

	_, loaded := board.Snapshot()
	assert.False(t, loaded)

	require.NoError(t, board.Start(context.Background()))
	t.Cleanup(func() { _ = board.Close() })
	require.Eventually(t, func() bool { _, ok := board.Snapshot(); return ok }, wait, time.Millisecond)

	snap, _ := board.Snapshot()
	assert.Equal(t, []string{"o-1"}, snap)

	clk.Add(10 * time.Second)
	require.Eventually(t, func() bool { s, _ := board.Snapshot(); return len(s) == 2 }, wait, time.Millisecond)
	require.Eventually(t, func() bool { return seen.Load() == 2 }, wait, time.Millisecond)

	fail.Store(true)
	err = board.Refresh(context.Background())
	require.Error(t, err)
	snap, _ = board.Snapshot()
	assert.Len(t, snap, 2)

	cancel()
	fail.Store(false)
	require.NoError(t, board.Refresh(context.Background()))
	assert.EqualValues(t, 2, seen.Load())
}

func TestNewBoardValidation(t *testing.T) {
	_, err := NewBoard[int](nil, func(context.Context) (int, error) { return 0, nil }, nil, nil)
	assert.Error(t, err)
	_, err = NewBoard[int](New(KitchenPolicy(time.Second), nil, nil, nil, nil), nil, nil, nil)
	assert.Error(t, err)
}

func TestOpenBoardLoadsAndFollowsFeed(t *testing.T) {
	hub := feed.NewHub(nil)
	var n atomic.Int32
	b, err := OpenBoard(context.Background(), TrackingPolicy("u-1", time.Minute), hub, clock.NewMock(),
		func(context.Context) (int32, error) { return n.Add(1), nil }, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	require.Eventually(t, func() bool {
		v, ok := b.Snapshot()
		return ok && v == 1
	}, wait, time.Millisecond)

	hub.Dispatch(context.Background(), feed.Change{Table: feed.TableOrders, UserID: "u-1"})
	require.Eventually(t, func() bool {
		v, _ := b.Snapshot()
		return v == 2
	}, wait, time.Millisecond)
}
