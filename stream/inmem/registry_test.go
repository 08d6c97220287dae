package inmem

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"goa.design/stepflow/stream"
)

func TestSetNotifiesGroupSubscriber(t *testing.T) {
	r := New()
	ctx := context.Background()
	require.NoError(t, r.Declare(ctx, stream.Schema{Name: "todos"}))

	ch := make(chan stream.Mutation, 1)
	sub := r.Subscribe("todos", "g1", "", ch)
	defer sub.Close()

	key := stream.ItemKey{Stream: "todos", GroupID: "g1", ID: "item-1"}
	_, err := r.Set(ctx, key, map[string]any{"done": true})
	require.NoError(t, err)

	select {
	case m := <-ch:
		require.Equal(t, key, m.Key)
		require.False(t, m.Delete)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive mutation")
	}
}

func TestSubscribeScopedToItemIgnoresOtherItems(t *testing.T) {
	r := New()
	ctx := context.Background()
	require.NoError(t, r.Declare(ctx, stream.Schema{Name: "todos"}))

	ch := make(chan stream.Mutation, 1)
	sub := r.Subscribe("todos", "g1", "item-1", ch)
	defer sub.Close()

	_, err := r.Set(ctx, stream.ItemKey{Stream: "todos", GroupID: "g1", ID: "item-2"}, "x")
	require.NoError(t, err)

	select {
	case m := <-ch:
		t.Fatalf("unexpected mutation for unrelated item: %+v", m)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCloseStopsDelivery(t *testing.T) {
	r := New()
	ctx := context.Background()
	ch := make(chan stream.Mutation, 1)
	sub := r.Subscribe("todos", "g1", "", ch)
	sub.Close()
	sub.Close() // idempotent

	_, err := r.Set(ctx, stream.ItemKey{Stream: "todos", GroupID: "g1", ID: "item-1"}, "x")
	require.NoError(t, err)

	select {
	case m := <-ch:
		t.Fatalf("unexpected mutation after close: %+v", m)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDeleteThenGetGroupOmitsItem(t *testing.T) {
	r := New()
	ctx := context.Background()
	key := stream.ItemKey{Stream: "todos", GroupID: "g1", ID: "item-1"}
	_, err := r.Set(ctx, key, "x")
	require.NoError(t, err)
	require.NoError(t, r.Delete(ctx, key))

	got, err := r.Get(ctx, key)
	require.NoError(t, err)
	require.Nil(t, got)

	group, err := r.GetGroup(ctx, "todos", "g1")
	require.NoError(t, err)
	require.Empty(t, group)
}
