package storage

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/wbrown/janus-pathstore/pathstore"
	"github.com/wbrown/janus-pathstore/pathstore/codec"
)

//go:embed schema.sql
var schemaSQL string

// SQLStore implements a timestamped store over SQLite. The samples
// table is append only; reads resolve the newest qualifying row per
// path with ORDER BY date DESC, seq DESC, so the rowid sequence breaks
// date ties in insertion order exactly like the memory stores.
type SQLStore struct {
	db    *sql.DB
	codec codec.Codec
}

var _ pathstore.TimestampedStore = (*SQLStore)(nil)
var _ pathstore.PropertySource = (*SQLStore)(nil)
var _ pathstore.RecordSource = (*SQLStore)(nil)

// OpenSQLStore creates or opens a SQLite database at the given path.
// A nil codec defaults to JSON values.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
func OpenSQLStore(path string, c codec.Codec) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	if c == nil {
		c = codec.JSON{}
	}
	return &SQLStore{db: db, codec: c}, nil
}

// applyPragmas sets required SQLite configuration
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Codec returns the value codec
func (s *SQLStore) Codec() codec.Codec {
	return s.codec
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SetSample appends a sample row. A zero date is stamped with the
// current time before the insert.
func (s *SQLStore) SetSample(path pathstore.Path, sample pathstore.Sample) error {
	if sample.Date.IsZero() {
		sample.Date = pathstore.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO samples (model, instance, property, date, data)
		VALUES (?, ?, ?, ?, ?)
	`,
		int64(path.Model),
		int64(path.Instance),
		int64(path.Property),
		float64(sample.Date),
		sample.Data,
	)
	if err != nil {
		return fmt.Errorf("write sample %s: %w", path, err)
	}
	return nil
}

// Sample returns the latest sample at path, nil when the path has
// never been written
func (s *SQLStore) Sample(path pathstore.Path) (*pathstore.Sample, error) {
	return s.SampleAt(path, 0)
}

// SampleAt returns the sample with the greatest date at or before the
// given instant, the latest when the instant is zero
func (s *SQLStore) SampleAt(path pathstore.Path, at pathstore.Timestamp) (*pathstore.Sample, error) {
	row := s.db.QueryRow(`
		SELECT date, data FROM samples
		WHERE model = ? AND instance = ? AND property = ?
		  AND (? = 0.0 OR date <= ?)
		ORDER BY date DESC, seq DESC
		LIMIT 1
	`,
		int64(path.Model),
		int64(path.Instance),
		int64(path.Property),
		float64(at),
		float64(at),
	)

	var date float64
	var data []byte
	if err := row.Scan(&date, &data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("read sample %s: %w", path, err)
	}
	return &pathstore.Sample{Data: data, Date: pathstore.Timestamp(date)}, nil
}

// EnumerateStatus visits every instance's latest status in ascending
// instance order
func (s *SQLStore) EnumerateStatus(model pathstore.ModelKey, visit func(pathstore.InstanceKey, pathstore.Sample) bool) error {
	return s.EnumerateStatusAt(model, 0, visit)
}

// EnumerateStatusAt visits every instance's status as of the given
// instant. Instances whose first status is later than the instant are
// skipped.
func (s *SQLStore) EnumerateStatusAt(model pathstore.ModelKey, at pathstore.Timestamp, visit func(pathstore.InstanceKey, pathstore.Sample) bool) error {
	rows, err := s.db.Query(`
		SELECT instance, date, data FROM (
			SELECT instance, date, data,
			       ROW_NUMBER() OVER (PARTITION BY instance ORDER BY date DESC, seq DESC) AS pick
			FROM samples
			WHERE model = ? AND property = ? AND (? = 0.0 OR date <= ?)
		)
		WHERE pick = 1
		ORDER BY instance ASC
	`,
		int64(model),
		int64(pathstore.InstanceIDProperty),
		float64(at),
		float64(at),
	)
	if err != nil {
		return fmt.Errorf("enumerate model %d: %w", model, err)
	}
	defer rows.Close()

	for rows.Next() {
		var instance int64
		var date float64
		var data []byte
		if err := rows.Scan(&instance, &date, &data); err != nil {
			return fmt.Errorf("scan status row: %w", err)
		}
		if !visit(pathstore.InstanceKey(instance), pathstore.Sample{Data: data, Date: pathstore.Timestamp(date)}) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate statuses: %w", err)
	}
	return nil
}

// EnumerateProperties visits the latest sample of each ordinary
// property of an instance in ascending property order
func (s *SQLStore) EnumerateProperties(model pathstore.ModelKey, instance pathstore.InstanceKey, visit func(pathstore.PropertyKey, pathstore.Sample) bool) error {
	rows, err := s.db.Query(`
		SELECT property, date, data FROM (
			SELECT property, date, data,
			       ROW_NUMBER() OVER (PARTITION BY property ORDER BY date DESC, seq DESC) AS pick
			FROM samples
			WHERE model = ? AND instance = ? AND property != ?
		)
		WHERE pick = 1
		ORDER BY property ASC
	`,
		int64(model),
		int64(instance),
		int64(pathstore.InstanceIDProperty),
	)
	if err != nil {
		return fmt.Errorf("enumerate model %d instance %d: %w", model, instance, err)
	}
	defer rows.Close()

	for rows.Next() {
		var property int64
		var date float64
		var data []byte
		if err := rows.Scan(&property, &date, &data); err != nil {
			return fmt.Errorf("scan property row: %w", err)
		}
		if !visit(pathstore.PropertyKey(property), pathstore.Sample{Data: data, Date: pathstore.Timestamp(date)}) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate properties: %w", err)
	}
	return nil
}

// RecordsAfter returns every sample dated strictly after the cursor in
// canonical record order, the full log when the cursor is zero
func (s *SQLStore) RecordsAfter(after pathstore.Timestamp) ([]pathstore.Record, error) {
	rows, err := s.db.Query(`
		SELECT model, instance, property, date, data FROM samples
		WHERE (? = 0.0 OR date > ?)
		ORDER BY date ASC, seq ASC
	`,
		float64(after),
		float64(after),
	)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []pathstore.Record
	for rows.Next() {
		var model, instance, property int64
		var date float64
		var data []byte
		if err := rows.Scan(&model, &instance, &property, &date, &data); err != nil {
			return nil, fmt.Errorf("scan record row: %w", err)
		}
		records = append(records, pathstore.Record{
			Path: pathstore.Path{
				Model:    pathstore.ModelKey(model),
				Instance: pathstore.InstanceKey(instance),
				Property: pathstore.PropertyKey(property),
			},
			Sample: pathstore.Sample{Data: data, Date: pathstore.Timestamp(date)},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	pathstore.SortRecords(records)
	return records, nil
}
