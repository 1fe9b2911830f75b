package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-pathstore/pathstore"
	"github.com/wbrown/janus-pathstore/pathstore/codec"
)

func TestBadgerStoreRoundTrip(t *testing.T) {
	s := openBadger(t, BinaryStrategy)
	path := pathstore.NewPath(sensorModel, 1, propLabel)

	require.NoError(t, pathstore.Set(s, path, "boiler"))

	label, ok := pathstore.Get[string](s, path)
	require.True(t, ok)
	assert.Equal(t, "boiler", label)

	absent, err := s.Sample(pathstore.NewPath(sensorModel, 1, 99))
	require.NoError(t, err)
	assert.Nil(t, absent)
}

func TestBadgerStorePointInTime(t *testing.T) {
	s := openBadger(t, BinaryStrategy)
	path := pathstore.NewPath(sensorModel, 1, propValue)

	require.NoError(t, pathstore.SetAt(s, path, 10.0, 1000))
	require.NoError(t, pathstore.SetAt(s, path, 20.0, 1005))

	cases := []struct {
		name string
		at   pathstore.Timestamp
		want float64
	}{
		{"AtFirstWrite", 1000, 10.0},
		{"BetweenWrites", 1003, 10.0},
		{"AtSecondWrite", 1005, 20.0},
		{"AfterBoth", 2000, 20.0},
		{"Latest", 0, 20.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := pathstore.GetAt[float64](s, path, tc.at)
			require.True(t, ok)
			assert.Equal(t, tc.want, got.Value)
		})
	}

	t.Run("BeforeFirstWrite", func(t *testing.T) {
		sample, err := s.SampleAt(path, 999)
		require.NoError(t, err)
		assert.Nil(t, sample)
	})
}

func TestBadgerStoreOutOfOrderWrites(t *testing.T) {
	s := openBadger(t, BinaryStrategy)
	path := pathstore.NewPath(sensorModel, 1, propValue)

	require.NoError(t, pathstore.SetAt(s, path, 20.0, 200))
	require.NoError(t, pathstore.SetAt(s, path, 10.0, 100))

	latest, ok := pathstore.Get[float64](s, path)
	require.True(t, ok)
	assert.Equal(t, 20.0, latest, "a late-arriving older sample never wins")

	old, ok := pathstore.GetAt[float64](s, path, 150)
	require.True(t, ok)
	assert.Equal(t, 10.0, old.Value, "the older sample is still in the history")
}

func TestBadgerStoreEqualDateTiebreak(t *testing.T) {
	s := openBadger(t, BinaryStrategy)
	path := pathstore.NewPath(sensorModel, 1, propLabel)

	require.NoError(t, pathstore.SetAt(s, path, "first", 500))
	require.NoError(t, pathstore.SetAt(s, path, "second", 500))

	got, ok := pathstore.Get[string](s, path)
	require.True(t, ok)
	assert.Equal(t, "second", got, "insertion order breaks date ties")
}

func TestBadgerStoreEnumerateStatus(t *testing.T) {
	s := openBadger(t, BinaryStrategy)
	require.NoError(t, pathstore.CreateInstanceAt(s, sensorModel, 3, 300))
	require.NoError(t, pathstore.CreateInstanceAt(s, sensorModel, 1, 100))
	require.NoError(t, pathstore.DeleteInstanceAt(s, sensorModel, 1, 250))
	require.NoError(t, pathstore.CreateInstanceAt(s, sensorModel, 2, 200))

	t.Run("Latest", func(t *testing.T) {
		assert.Equal(t, map[pathstore.InstanceKey]pathstore.InstanceStatus{
			1: pathstore.StatusDeleted,
			2: pathstore.StatusCreated,
			3: pathstore.StatusCreated,
		}, collectStatuses(t, s, 0))
	})

	t.Run("BeforeDeletion", func(t *testing.T) {
		assert.Equal(t, map[pathstore.InstanceKey]pathstore.InstanceStatus{
			1: pathstore.StatusCreated,
			2: pathstore.StatusCreated,
		}, collectStatuses(t, s, 240))
	})

	t.Run("AscendingOrder", func(t *testing.T) {
		var order []pathstore.InstanceKey
		err := s.EnumerateStatus(sensorModel, func(instance pathstore.InstanceKey, _ pathstore.Sample) bool {
			order = append(order, instance)
			return true
		})
		require.NoError(t, err)
		assert.Equal(t, []pathstore.InstanceKey{1, 2, 3}, order)
	})

	t.Run("EarlyStop", func(t *testing.T) {
		visits := 0
		err := s.EnumerateStatus(sensorModel, func(pathstore.InstanceKey, pathstore.Sample) bool {
			visits++
			return false
		})
		require.NoError(t, err)
		assert.Equal(t, 1, visits)
	})
}

func TestBadgerStoreEnumerateProperties(t *testing.T) {
	s := openBadger(t, BinaryStrategy)
	require.NoError(t, pathstore.CreateInstanceAt(s, sensorModel, 1, 100))
	require.NoError(t, pathstore.SetAt(s, pathstore.NewPath(sensorModel, 1, propLabel), "old", 110))
	require.NoError(t, pathstore.SetAt(s, pathstore.NewPath(sensorModel, 1, propLabel), "new", 120))
	require.NoError(t, pathstore.SetAt(s, pathstore.NewPath(sensorModel, 1, propValue), 3.5, 115))
	require.NoError(t, pathstore.SetAt(s, pathstore.NewPath(sensorModel, 2, propLabel), "other instance", 110))

	var properties []pathstore.PropertyKey
	var dates []pathstore.Timestamp
	err := s.EnumerateProperties(sensorModel, 1, func(p pathstore.PropertyKey, sample pathstore.Sample) bool {
		properties = append(properties, p)
		dates = append(dates, sample.Date)
		return true
	})
	require.NoError(t, err)

	assert.Equal(t, []pathstore.PropertyKey{propLabel, propValue}, properties, "status row excluded, ascending order")
	assert.Equal(t, []pathstore.Timestamp{120, 115}, dates, "latest sample per property")
}

func TestBadgerStoreRecordsAfter(t *testing.T) {
	s := openBadger(t, BinaryStrategy)
	require.NoError(t, pathstore.CreateInstanceAt(s, sensorModel, 1, 100))
	require.NoError(t, pathstore.SetAt(s, pathstore.NewPath(sensorModel, 1, propValue), 1.0, 200))
	require.NoError(t, pathstore.SetAt(s, pathstore.NewPath(sensorModel, 1, propValue), 2.0, 300))

	all, err := s.RecordsAfter(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, pathstore.Timestamp(100), all[0].Sample.Date)

	tail, err := s.RecordsAfter(200)
	require.NoError(t, err)
	require.Len(t, tail, 1, "the cursor is strict")
	assert.Equal(t, pathstore.Timestamp(300), tail[0].Sample.Date)
	assert.Equal(t, pathstore.NewPath(sensorModel, 1, propValue), tail[0].Path)
}

func TestBadgerStoreReopen(t *testing.T) {
	dir := t.TempDir()
	path := pathstore.NewPath(sensorModel, 1, propLabel)

	s, err := NewBadgerStore(dir, codec.JSON{}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, pathstore.SetAt(s, path, "before restart", 500))
	require.NoError(t, s.Close())

	s, err = NewBadgerStore(dir, codec.JSON{}, nil, nil)
	require.NoError(t, err)
	defer s.Close()

	got, ok := pathstore.Get[string](s, path)
	require.True(t, ok)
	assert.Equal(t, "before restart", got)

	// The sequence survives the restart, so an equal-date write from
	// this process still wins the tie
	require.NoError(t, pathstore.SetAt(s, path, "after restart", 500))
	got, ok = pathstore.Get[string](s, path)
	require.True(t, ok)
	assert.Equal(t, "after restart", got)
}

func TestBadgerStoreL85Keys(t *testing.T) {
	s := openBadger(t, L85Strategy)
	require.NoError(t, pathstore.CreateInstanceAt(s, sensorModel, 1, 100))
	require.NoError(t, pathstore.SetAt(s, pathstore.NewPath(sensorModel, 1, propValue), 42.0, 200))

	v, ok := pathstore.Get[float64](s, pathstore.NewPath(sensorModel, 1, propValue))
	require.True(t, ok)
	assert.Equal(t, 42.0, v)

	assert.Equal(t, map[pathstore.InstanceKey]pathstore.InstanceStatus{
		1: pathstore.StatusCreated,
	}, collectStatuses(t, s, 0))
}
