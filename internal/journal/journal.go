// Package journal keeps a local SQLite history of successful submissions.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/plumber-cd/ez-netwatch/internal/domain"
)

const memoryPath = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS submissions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	recorded_at TEXT NOT NULL,
	mode TEXT NOT NULL,
	source TEXT NOT NULL,
	method TEXT NOT NULL,
	endpoint TEXT NOT NULL,
	ip_address TEXT NOT NULL,
	mac_address TEXT NOT NULL,
	vendor TEXT,
	description TEXT
);

CREATE INDEX IF NOT EXISTS idx_submissions_mac ON submissions(mac_address);
`

// Record is one accepted submission.
type Record struct {
	ID          int64
	At          time.Time
	Mode        domain.Mode
	Source      domain.Source
	Method      string
	Endpoint    string
	IPAddress   string
	MACAddress  string
	Vendor      *string
	Description *string
}

// NewRecord builds a record for payload sent over route.
func NewRecord(at time.Time, mode domain.Mode, source domain.Source, route domain.Route, payload domain.Payload) Record {
	return Record{
		At:          at,
		Mode:        mode,
		Source:      source,
		Method:      route.Method,
		Endpoint:    route.Path,
		IPAddress:   payload.IPAddress,
		MACAddress:  payload.MACAddress,
		Vendor:      payload.Vendor,
		Description: payload.Description,
	}
}

// Journal is a SQLite-backed submission history.
type Journal struct {
	db   *sql.DB
	path string
}

// Open opens or creates the journal at path. An empty path keeps it in memory.
func Open(path string) (*Journal, error) {
	if path == "" {
		path = memoryPath
	}
	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init journal schema: %w", err)
	}
	return &Journal{db: db, path: path}, nil
}

// Path returns the database location.
func (j *Journal) Path() string {
	return j.path
}

// Record appends rec and returns its id.
func (j *Journal) Record(ctx context.Context, rec Record) (int64, error) {
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	res, err := j.db.ExecContext(ctx, `
		INSERT INTO submissions (recorded_at, mode, source, method, endpoint, ip_address, mac_address, vendor, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.At.UTC().Format(time.RFC3339Nano),
		string(rec.Mode),
		string(rec.Source),
		rec.Method,
		rec.Endpoint,
		rec.IPAddress,
		rec.MACAddress,
		nullString(rec.Vendor),
		nullString(rec.Description),
	)
	if err != nil {
		return 0, fmt.Errorf("record submission: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record submission: %w", err)
	}
	return id, nil
}

// Recent returns up to limit records, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, recorded_at, mode, source, method, endpoint, ip_address, mac_address, vendor, description
		FROM submissions
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec         Record
			at          string
			mode        string
			source      string
			vendor      sql.NullString
			description sql.NullString
		)
		if err := rows.Scan(&rec.ID, &at, &mode, &source, &rec.Method, &rec.Endpoint, &rec.IPAddress, &rec.MACAddress, &vendor, &description); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		rec.At, err = time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("parse submission %d time: %w", rec.ID, err)
		}
		rec.Mode = domain.Mode(mode)
		rec.Source = domain.Source(source)
		rec.Vendor = stringPtr(vendor)
		rec.Description = stringPtr(description)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
