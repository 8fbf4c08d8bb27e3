package feed

import (
	"context"
	"sync"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freshcut/chickenshop/pkg/enums"
)

type recordingDispatcher struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recordingDispatcher) Dispatch(_ context.Context, c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func TestDecode(t *testing.T) {
	c, err := Decode([]byte(`{"table":"orders","op":"UPDATE","id":"o-1","user_id":"u-1"}`))
	require.NoError(t, err)
	assert.Equal(t, Change{Table: TableOrders, Op: enums.ChangeOpUpdate, RowID: "o-1", UserID: "u-1"}, c)

	c, err = Decode([]byte(`{"table":"daily_sales","op":"insert","id":"s-1","user_id":null}`))
	require.NoError(t, err)
	assert.Equal(t, enums.ChangeOpInsert, c.Op)
	assert.Empty(t, c.UserID)

	for _, raw := range []string{`not json`, `{"op":"INSERT"}`, `{"table":"orders","op":"TRUNCATE"}`} {
		_, err := Decode([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestFilterMatches(t *testing.T) {
	mine := Change{Table: TableOrders, UserID: "u-1"}
	theirs := Change{Table: TableOrders, UserID: "u-2"}
	sale := Change{Table: TableDailySales}

	all := Filter{Table: TableOrders}
	assert.True(t, all.Matches(mine))
	assert.True(t, all.Matches(theirs))
	assert.False(t, all.Matches(sale))

	scoped := Filter{Table: TableOrders, Column: ColumnUserID, Value: "u-1"}
	assert.True(t, scoped.Matches(mine))
	assert.False(t, scoped.Matches(theirs))

	assert.False(t, Filter{Table: TableOrders, Column: "status", Value: "x"}.Matches(mine))
}

func TestHubDispatchesToMatchingSubscribers(t *testing.T) {
	hub := NewHub(nil)
	var kitchen, tracking, sales []Change

	_, err := hub.Subscribe([]Filter{{Table: TableOrders}}, func(c Change) { kitchen = append(kitchen, c) })
	require.NoError(t, err)
	_, err = hub.Subscribe([]Filter{{Table: TableOrders, Column: ColumnUserID, Value: "u-1"}}, func(c Change) { tracking = append(tracking, c) })
	require.NoError(t, err)
	_, err = hub.Subscribe([]Filter{{Table: TableOrders}, {Table: TableDailySales}}, func(c Change) { sales = append(sales, c) })
	require.NoError(t, err)

	ctx := context.Background()
	hub.Dispatch(ctx, Change{Table: TableOrders, Op: enums.ChangeOpUpdate, RowID: "o-1", UserID: "u-2"})
	hub.Dispatch(ctx, Change{Table: TableOrders, Op: enums.ChangeOpUpdate, RowID: "o-2", UserID: "u-1"})
	hub.Dispatch(ctx, Change{Table: TableDailySales, Op: enums.ChangeOpInsert, RowID: "s-1"})

	assert.Len(t, kitchen, 2)
	require.Len(t, tracking, 1)
	assert.Equal(t, "o-2", tracking[0].RowID)
	assert.Len(t, sales, 3)
}

func TestHubSubscribeValidation(t *testing.T) {
	hub := NewHub(nil)
	_, err := hub.Subscribe(nil, func(Change) {})
	assert.Error(t, err)
	_, err = hub.Subscribe([]Filter{{Table: TableOrders}}, nil)
	assert.Error(t, err)
	_, err = hub.Subscribe([]Filter{{Table: TableOrders, Column: "status"}}, func(Change) {})
	assert.Error(t, err)
	assert.Equal(t, 0, hub.Len())
}

func TestSubscriptionCloseStopsDeliveryAndIsIdempotent(t *testing.T) {
	hub := NewHub(nil)
	calls := 0
	sub, err := hub.Subscribe([]Filter{{Table: TableOrders}}, func(Change) { calls++ })
	require.NoError(t, err)

	hub.Dispatch(context.Background(), Change{Table: TableOrders})
	sub.Close()
	sub.Close()
	hub.Dispatch(context.Background(), Change{Table: TableOrders})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, hub.Len())
}

func TestHubRecoversSubscriberPanic(t *testing.T) {
	hub := NewHub(nil)
	after := 0
	_, err := hub.Subscribe([]Filter{{Table: TableOrders}}, func(Change) { panic("boom") })
	require.NoError(t, err)
	_, err = hub.Subscribe([]Filter{{Table: TableOrders}}, func(Change) { after++ })
	require.NoError(t, err)

	assert.NotPanics(t, func() { hub.Dispatch(context.Background(), Change{Table: TableOrders}) })
	assert.Equal(t, 1, after)
}

func TestPostgresSourceHandle(t *testing.T) {
	out := &recordingDispatcher{}
	src, err := NewPostgresSource("postgres://localhost/db", "row_changes", 0, 0, out, nil)
	require.NoError(t, err)
	ctx := context.Background()

	src.handle(ctx, nil)
	src.handle(ctx, &pq.Notification{Channel: "row_changes", Extra: "garbage"})
	src.handle(ctx, &pq.Notification{Channel: "row_changes", Extra: `{"table":"orders","op":"INSERT","id":"o-9","user_id":"u-1"}`})

	require.Len(t, out.changes, 1)
	assert.Equal(t, "o-9", out.changes[0].RowID)
}

func TestNewPostgresSourceValidation(t *testing.T) {
	out := &recordingDispatcher{}
	_, err := NewPostgresSource("", "row_changes", 0, 0, out, nil)
	assert.Error(t, err)
	_, err = NewPostgresSource("dsn", "", 0, 0, out, nil)
	assert.Error(t, err)
	_, err = NewPostgresSource("dsn", "row_changes", 0, 0, nil, nil)
	assert.Error(t, err)
}

func TestPubSubSourceProcess(t *testing.T) {
	out := &recordingDispatcher{}
	src, err := newPubSubSource(nil, out, nil)
	require.NoError(t, err)
	ctx := context.Background()

	src.process(ctx, []byte(`{"table":"orders","op":"DELETE","id":"o-3"}`))
	src.process(ctx, []byte(`{}`))

	require.Len(t, out.changes, 1)
	assert.Equal(t, enums.ChangeOpDelete, out.changes[0].Op)

	_, err = NewPubSubSource(nil, out, nil)
	assert.Error(t, err)
}
