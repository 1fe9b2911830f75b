package pathstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-pathstore/pathstore/codec"
)

func TestContextIsolation(t *testing.T) {
	s := NewHistoryStore(codec.JSON{})
	path := NewPath(1, 1, 1)
	ctx := NewEditingContext(s)

	require.NoError(t, Set(ctx, path, "buffered"))
	assert.Equal(t, 1, ctx.Pending())

	t.Run("UncommittedInvisible", func(t *testing.T) {
		_, ok := Get[string](s, path)
		assert.False(t, ok, "buffered write leaked to the store")

		v, ok := Get[string](ctx, path)
		require.True(t, ok)
		assert.Equal(t, "buffered", v, "context must see its own write")
	})

	t.Run("CommitPublishes", func(t *testing.T) {
		require.NoError(t, ctx.Commit())
		assert.Equal(t, 0, ctx.Pending())

		v, ok := Get[string](s, path)
		require.True(t, ok)
		assert.Equal(t, "buffered", v)
	})
}

func TestContextDiscard(t *testing.T) {
	s := NewHistoryStore(codec.JSON{})
	path := NewPath(1, 1, 1)
	ctx := NewEditingContext(s)

	require.NoError(t, Set(ctx, path, "abandoned"))
	ctx.Discard()
	assert.Equal(t, 0, ctx.Pending())

	_, ok := Get[string](s, path)
	assert.False(t, ok, "discarded write reached the store")

	_, ok = Get[string](ctx, path)
	assert.False(t, ok, "discarded write still visible in the context")
}

func TestContextReadResolution(t *testing.T) {
	s := NewHistoryStore(codec.JSON{})
	path := NewPath(1, 1, 1)

	t.Run("NewerOverlayWins", func(t *testing.T) {
		ctx := NewEditingContext(s)
		require.NoError(t, SetAt(s, path, "under", 100))
		require.NoError(t, ctx.SetSample(path, Sample{Data: mustEncode(t, s.Codec(), "over"), Date: 200}))

		v, ok := Get[string](ctx, path)
		require.True(t, ok)
		assert.Equal(t, "over", v)
	})

	t.Run("NewerUnderlyingWins", func(t *testing.T) {
		ctx := NewEditingContext(s)
		require.NoError(t, ctx.SetSample(path, Sample{Data: mustEncode(t, s.Codec(), "stale"), Date: 150}))
		require.NoError(t, SetAt(s, path, "fresh", 300))

		v, ok := Get[string](ctx, path)
		require.True(t, ok)
		assert.Equal(t, "fresh", v)
	})

	t.Run("ExactTieFavorsUnderlying", func(t *testing.T) {
		ctx := NewEditingContext(s)
		require.NoError(t, SetAt(s, path, "under", 500))
		require.NoError(t, ctx.SetSample(path, Sample{Data: mustEncode(t, s.Codec(), "over"), Date: 500}))

		v, ok := Get[string](ctx, path)
		require.True(t, ok)
		assert.Equal(t, "under", v)
	})
}

func TestContextLastSetWins(t *testing.T) {
	s := NewHistoryStore(codec.JSON{})
	path := NewPath(1, 1, 1)
	ctx := NewEditingContext(s)

	require.NoError(t, Set(ctx, path, "first"))
	require.NoError(t, Set(ctx, path, "second"))
	assert.Equal(t, 1, ctx.Pending(), "overlay keeps one entry per path")

	require.NoError(t, ctx.Commit())
	v, _ := Get[string](s, path)
	assert.Equal(t, "second", v)
}

func TestSnapshotContext(t *testing.T) {
	s := NewHistoryStore(codec.JSON{})
	path := NewPath(1, 1, 1)
	require.NoError(t, Set(s, path, "before"))

	snap := NewSnapshotContext(s)
	live := NewEditingContext(s)

	// Give the concurrent write a date clearly past the snapshot instant
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, Set(s, path, "after"))

	v, ok := Get[string](snap, path)
	require.True(t, ok)
	assert.Equal(t, "before", v, "snapshot must not see later writes")

	v, ok = Get[string](live, path)
	require.True(t, ok)
	assert.Equal(t, "after", v, "live context sees the latest state")

	// Commit advances the snapshot past the concurrent write
	require.NoError(t, Set(snap, NewPath(1, 1, 2), "edit"))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, snap.Commit())
	v, _ = Get[string](snap, path)
	assert.Equal(t, "after", v)
}

func TestContextCommitPreservesDates(t *testing.T) {
	s := NewHistoryStore(codec.JSON{})
	path := NewPath(1, 1, 1)
	ctx := NewEditingContext(s)

	require.NoError(t, ctx.SetSample(path, Sample{Data: mustEncode(t, s.Codec(), "dated"), Date: 123}))
	require.NoError(t, ctx.Commit())

	sample, err := s.Sample(path)
	require.NoError(t, err)
	require.NotNil(t, sample)
	assert.Equal(t, Timestamp(123), sample.Date)
}

func TestContextEnumerate(t *testing.T) {
	s := NewHistoryStore(codec.JSON{})
	require.NoError(t, CreateInstanceAt(s, 1, 1, 100))
	require.NoError(t, CreateInstanceAt(s, 1, 2, 100))

	ctx := NewEditingContext(s)
	// Delete one instance and create another purely inside the context
	require.NoError(t, DeleteInstance(ctx, 1, 2))
	require.NoError(t, CreateInstance(ctx, 1, 3))

	statuses := make(map[InstanceKey]InstanceStatus)
	Enumerate(ctx, 1, func(i InstanceKey, st InstanceStatus) (InstanceKey, bool) {
		statuses[i] = st
		return i, true
	})

	assert.Equal(t, map[InstanceKey]InstanceStatus{
		1: StatusCreated,
		2: StatusDeleted,
		3: StatusCreated,
	}, statuses)

	// The store itself is untouched until commit
	inStore := Enumerate(s, 1, func(i InstanceKey, st InstanceStatus) (InstanceKey, bool) {
		return i, st == StatusCreated
	})
	assert.Equal(t, []InstanceKey{1, 2}, inStore)
}

func mustEncode(t *testing.T, c codec.Codec, v interface{}) []byte {
	t.Helper()
	data, err := c.Encode(v)
	require.NoError(t, err)
	return data
}
