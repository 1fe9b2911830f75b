package storage

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/wbrown/janus-pathstore/pathstore"
	"github.com/wbrown/janus-pathstore/pathstore/codec"
)

// BadgerStore implements a timestamped store over BadgerDB. Every
// write appends a row to the primary keyspace and the time-ordered log
// keyspace; status writes also land in the status keyspace for
// instance enumeration. Rows are never overwritten, so the full sample
// history survives on disk and reads resolve the newest date at or
// before the asked instant, later insertion winning ties via a
// persisted sequence.
type BadgerStore struct {
	db      *badger.DB
	codec   codec.Codec
	encoder KeyEncoder
	seq     *badger.Sequence
}

var _ pathstore.TimestampedStore = (*BadgerStore)(nil)
var _ pathstore.PropertySource = (*BadgerStore)(nil)
var _ pathstore.RecordSource = (*BadgerStore)(nil)

// sequenceKey lives outside the sample keyspaces
var sequenceKey = []byte("#seq")

// NewBadgerStore creates a new BadgerDB-backed store at path. A nil
// encoder defaults to binary keys, a nil codec to JSON values, a nil
// logger silences badger's internal logging.
func NewBadgerStore(path string, c codec.Codec, encoder KeyEncoder, log *slog.Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if log != nil {
		opts.Logger = badgerLogger{log: log}
	} else {
		opts.Logger = nil
	}

	// Samples are small; keep them in the LSM tree
	opts.ValueThreshold = 1 << 10
	opts.DetectConflicts = false

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	seq, err := db.GetSequence(sequenceKey, 128)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open sequence: %w", err)
	}

	if encoder == nil {
		encoder = NewKeyEncoder(BinaryStrategy)
	}
	if c == nil {
		c = codec.JSON{}
	}

	return &BadgerStore{
		db:      db,
		codec:   c,
		encoder: encoder,
		seq:     seq,
	}, nil
}

// Codec returns the value codec
func (s *BadgerStore) Codec() codec.Codec {
	return s.codec
}

// Close releases the sequence lease and closes the database
func (s *BadgerStore) Close() error {
	if err := s.seq.Release(); err != nil {
		s.db.Close()
		return fmt.Errorf("failed to release sequence: %w", err)
	}
	return s.db.Close()
}

// SetSample appends a sample. A zero date is stamped with the current
// time before the write.
func (s *BadgerStore) SetSample(path pathstore.Path, sample pathstore.Sample) error {
	if sample.Date.IsZero() {
		sample.Date = pathstore.Now()
	}
	seq, err := s.seq.Next()
	if err != nil {
		return fmt.Errorf("failed to advance sequence: %w", err)
	}

	model := orderKey(int64(path.Model))
	instance := orderKey(int64(path.Instance))
	property := orderKey(int64(path.Property))
	date := orderDate(sample.Date)

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(s.encoder.EncodeKey(SpacePrimary, model, instance, property, date, seq), sample.Data); err != nil {
			return fmt.Errorf("failed to write primary key: %w", err)
		}
		if err := txn.Set(s.encoder.EncodeKey(SpaceLog, date, seq, model, instance, property), sample.Data); err != nil {
			return fmt.Errorf("failed to write log key: %w", err)
		}
		if path.IsStatus() {
			if err := txn.Set(s.encoder.EncodeKey(SpaceStatus, model, instance, date, seq), sample.Data); err != nil {
				return fmt.Errorf("failed to write status key: %w", err)
			}
		}
		return nil
	})
}

// Sample returns the latest sample at path, nil when the path has
// never been written
func (s *BadgerStore) Sample(path pathstore.Path) (*pathstore.Sample, error) {
	return s.SampleAt(path, 0)
}

// SampleAt returns the sample with the greatest date at or before the
// given instant, the latest when the instant is zero
func (s *BadgerStore) SampleAt(path pathstore.Path, at pathstore.Timestamp) (*pathstore.Sample, error) {
	model := orderKey(int64(path.Model))
	instance := orderKey(int64(path.Instance))
	property := orderKey(int64(path.Property))

	prefix, end := s.encoder.EncodePrefixRange(SpacePrimary, model, instance, property)
	seek := end
	if !at.IsZero() {
		seek = s.encoder.EncodeKey(SpacePrimary, model, instance, property, orderDate(at), ^uint64(0))
	}

	var result *pathstore.Sample
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(seek)
		if !it.ValidForPrefix(prefix) {
			return nil
		}

		components, err := s.encoder.DecodeKey(SpacePrimary, it.Item().Key())
		if err != nil {
			return err
		}
		data, err := it.Item().ValueCopy(nil)
		if err != nil {
			return err
		}
		result = &pathstore.Sample{Data: data, Date: unorderDate(components[3])}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return result, nil
}

// EnumerateStatus visits every instance's latest status in ascending
// instance order
func (s *BadgerStore) EnumerateStatus(model pathstore.ModelKey, visit func(pathstore.InstanceKey, pathstore.Sample) bool) error {
	return s.EnumerateStatusAt(model, 0, visit)
}

// EnumerateStatusAt visits every instance's status as of the given
// instant. Instances whose first status is later than the instant are
// skipped.
func (s *BadgerStore) EnumerateStatusAt(model pathstore.ModelKey, at pathstore.Timestamp, visit func(pathstore.InstanceKey, pathstore.Sample) bool) error {
	start, end := s.encoder.EncodePrefixRange(SpaceStatus, orderKey(int64(model)))

	var current pathstore.InstanceKey
	var best *pathstore.Sample
	stopped := false

	err := s.scan(start, end, func(item *badger.Item) (bool, error) {
		components, err := s.encoder.DecodeKey(SpaceStatus, item.Key())
		if err != nil {
			return false, err
		}
		instance := pathstore.InstanceKey(unorderKey(components[1]))
		date := unorderDate(components[2])

		if best != nil && instance != current {
			if !visit(current, *best) {
				stopped = true
				return false, nil
			}
			best = nil
		}
		current = instance

		if !at.IsZero() && date > at {
			return true, nil
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return false, err
		}
		best = &pathstore.Sample{Data: data, Date: date}
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("failed to enumerate model %d: %w", model, err)
	}
	if best != nil && !stopped {
		visit(current, *best)
	}
	return nil
}

// EnumerateProperties visits the latest sample of each ordinary
// property of an instance in ascending property order
func (s *BadgerStore) EnumerateProperties(model pathstore.ModelKey, instance pathstore.InstanceKey, visit func(pathstore.PropertyKey, pathstore.Sample) bool) error {
	start, end := s.encoder.EncodePrefixRange(SpacePrimary, orderKey(int64(model)), orderKey(int64(instance)))

	var current pathstore.PropertyKey
	var best *pathstore.Sample
	stopped := false

	err := s.scan(start, end, func(item *badger.Item) (bool, error) {
		components, err := s.encoder.DecodeKey(SpacePrimary, item.Key())
		if err != nil {
			return false, err
		}
		property := pathstore.PropertyKey(unorderKey(components[2]))

		if best != nil && property != current {
			if !visit(current, *best) {
				stopped = true
				return false, nil
			}
			best = nil
		}
		current = property

		if property == pathstore.InstanceIDProperty {
			return true, nil
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return false, err
		}
		best = &pathstore.Sample{Data: data, Date: unorderDate(components[3])}
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("failed to enumerate model %d instance %d: %w", model, instance, err)
	}
	if best != nil && !stopped {
		visit(current, *best)
	}
	return nil
}

// RecordsAfter returns every sample dated strictly after the cursor in
// canonical record order, the full log when the cursor is zero
func (s *BadgerStore) RecordsAfter(after pathstore.Timestamp) ([]pathstore.Record, error) {
	start, end := s.encoder.EncodePrefixRange(SpaceLog)
	if !after.IsZero() {
		start = s.encoder.EncodePrefix(SpaceLog, orderDate(after))
	}

	var records []pathstore.Record
	err := s.scan(start, end, func(item *badger.Item) (bool, error) {
		components, err := s.encoder.DecodeKey(SpaceLog, item.Key())
		if err != nil {
			return false, err
		}
		date := unorderDate(components[0])
		if !after.IsZero() && date <= after {
			return true, nil
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return false, err
		}
		records = append(records, pathstore.Record{
			Path: pathstore.Path{
				Model:    pathstore.ModelKey(unorderKey(components[2])),
				Instance: pathstore.InstanceKey(unorderKey(components[3])),
				Property: pathstore.PropertyKey(unorderKey(components[4])),
			},
			Sample: pathstore.Sample{Data: data, Date: date},
		})
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan log: %w", err)
	}
	pathstore.SortRecords(records)
	return records, nil
}

// scan walks keys in [start, end) forward, stopping early when fn
// returns false
func (s *BadgerStore) scan(start, end []byte, fn func(*badger.Item) (bool, error)) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		opts.PrefetchSize = 256

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(start); it.Valid(); it.Next() {
			if end != nil && bytes.Compare(it.Item().Key(), end) >= 0 {
				break
			}
			more, err := fn(it.Item())
			if err != nil {
				return err
			}
			if !more {
				break
			}
		}
		return nil
	})
}

// badgerLogger adapts slog.Logger to badger's Logger interface
type badgerLogger struct {
	log *slog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Info(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}
