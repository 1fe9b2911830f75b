package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-pathstore/pathstore"
	"github.com/wbrown/janus-pathstore/pathstore/codec"
)

const (
	sensorModel pathstore.ModelKey    = 1
	propLabel   pathstore.PropertyKey = 1
	propValue   pathstore.PropertyKey = 2
)

func openBadger(t *testing.T, strategy KeyEncodingStrategy) *BadgerStore {
	t.Helper()
	s, err := NewBadgerStore(t.TempDir(), codec.JSON{}, NewKeyEncoder(strategy), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func openSQL(t *testing.T) *SQLStore {
	t.Helper()
	s, err := OpenSQLStore(filepath.Join(t.TempDir(), "samples.db"), codec.JSON{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// collectStatuses drains an enumeration into instance order
func collectStatuses(t *testing.T, s pathstore.TimestampedStore, at pathstore.Timestamp) map[pathstore.InstanceKey]pathstore.InstanceStatus {
	t.Helper()
	out := map[pathstore.InstanceKey]pathstore.InstanceStatus{}
	err := s.EnumerateStatusAt(sensorModel, at, func(instance pathstore.InstanceKey, sample pathstore.Sample) bool {
		status, ok := pathstore.DecodeStatus(s.Codec(), sample.Data)
		require.True(t, ok)
		out[instance] = status
		return true
	})
	require.NoError(t, err)
	return out
}
