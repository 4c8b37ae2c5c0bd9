package measure

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/smazurov/startstop/internal/logging"

	_ "modernc.org/sqlite"
)

// timeLayout sorts lexically in chronological order.
const timeLayout = "2006-01-02T15:04:05.000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS measurements (
	run_id TEXT PRIMARY KEY,
	recorded_at TEXT NOT NULL,
	app TEXT NOT NULL,
	mode TEXT NOT NULL,
	build_ms INTEGER NOT NULL,
	time_to_first_ok_ms INTEGER NOT NULL,
	started_ms INTEGER NOT NULL,
	stopped_ms INTEGER NOT NULL,
	rss_kb INTEGER NOT NULL,
	fds INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_measurements_case ON measurements(app, mode, recorded_at);
`

// SQLiteRecorder keeps measurement history in a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	logger logging.Logger
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string, logger logging.Logger) (*SQLiteRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database dir: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema init: %w", err)
	}
	return &SQLiteRecorder{db: db, logger: logger}, nil
}

// Record implements Recorder.
func (s *SQLiteRecorder) Record(ctx context.Context, r Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO measurements (run_id, recorded_at, app, mode, build_ms, time_to_first_ok_ms, started_ms, stopped_ms, rss_kb, fds)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Timestamp.UTC().Format(timeLayout), r.App, r.Mode,
		r.BuildMs, r.TimeToFirstOKMs, r.StartedMs, r.StoppedMs, r.RSSKB, r.FDs,
	)
	if err != nil {
		return fmt.Errorf("failed to insert measurement: %w", err)
	}
	s.logger.Debug("Measurement stored", "run_id", r.RunID)
	return nil
}

// Query selects stored records, newest first. Empty app or mode match all.
// A limit of zero or less returns every row.
type Query struct {
	App   string
	Mode  string
	Limit int
}

// List returns records matching q.
func (s *SQLiteRecorder) List(ctx context.Context, q Query) ([]Record, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, recorded_at, app, mode, build_ms, time_to_first_ok_ms, started_ms, stopped_ms, rss_kb, fds
		 FROM measurements
		 WHERE (? = '' OR app = ?) AND (? = '' OR mode = ?)
		 ORDER BY recorded_at DESC
		 LIMIT ?`,
		q.App, q.App, q.Mode, q.Mode, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var ts string
		if err := rows.Scan(&r.RunID, &ts, &r.App, &r.Mode, &r.BuildMs, &r.TimeToFirstOKMs,
			&r.StartedMs, &r.StoppedMs, &r.RSSKB, &r.FDs); err != nil {
			return nil, err
		}
		if r.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
			return nil, fmt.Errorf("bad timestamp %q: %w", ts, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close implements Recorder.
func (s *SQLiteRecorder) Close() error { return s.db.Close() }
