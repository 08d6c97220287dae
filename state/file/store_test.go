package file

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"goa.design/stepflow/state"
)

func TestSetThenGetRoundTripsThroughDisk(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	key := state.Key{TraceID: "t1", Key: "user"}

	require.NoError(t, s.Set(ctx, key, "ada"))

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "ada", got)
}

func TestSetPersistsAcrossStoreInstances(t *testing.T) {
	dir := t.TempDir()
	key := state.Key{TraceID: "t1", Key: "user"}

	s1, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, s1.Set(context.Background(), key, "ada"))

	s2, err := New(dir)
	require.NoError(t, err)
	got, err := s2.Get(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, "ada", got)
}

func TestGetReturnsNilForUnknownKey(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	got, err := s.Get(context.Background(), state.Key{TraceID: "missing", Key: "x"})
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestDeleteRemovesKeyButKeepsOthers(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, state.Key{TraceID: "t1", Key: "a"}, 1))
	require.NoError(t, s.Set(ctx, state.Key{TraceID: "t1", Key: "b"}, 2))
	require.NoError(t, s.Delete(ctx, state.Key{TraceID: "t1", Key: "a"}))

	got, err := s.Get(ctx, state.Key{TraceID: "t1", Key: "a"})
	require.NoError(t, err)
	require.Nil(t, got)

	group, err := s.GetGroup(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, group, 1)
}

func TestClearRemovesEntireTrace(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, state.Key{TraceID: "t1", Key: "a"}, 1))
	require.NoError(t, s.Clear(ctx, "t1"))

	group, err := s.GetGroup(ctx, "t1")
	require.NoError(t, err)
	require.Empty(t, group)
}

func TestClearOnMissingTraceIsNotAnError(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Clear(context.Background(), "never-seen"))
}
