// Package history keeps an append-only journal of plan assignments.
//
// Every successful `vm set` and `vm clear` appends one row to a SQLite
// database. The journal is advisory: the authoritative assignment lives
// in the domain's metadata, so journal failures are reported but never
// abort the operation that triggered them.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Actions recorded in the journal.
const (
	ActionSet   = "set"
	ActionClear = "clear"
)

// Event is one journal row.
type Event struct {
	// ID is a UUIDv7, so ids sort by creation time.
	ID string

	// Seq is the logical position in the journal.
	Seq int64

	// Domain is the affected virtual machine.
	Domain string

	// Plan is the assigned plan name; empty for clears.
	Plan string

	// Action is ActionSet or ActionClear.
	Action string

	// RecordedAt is the wall-clock time of the record, RFC 3339.
	RecordedAt time.Time
}

// Journal provides durable storage for assignment events.
// Uses SQLite with WAL mode and a single-connection pool.
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal database at the given path and
// applies pragmas and schema. Idempotent.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to journal: %w", err)
	}

	// SQLite allows one writer at a time; a single connection avoids
	// SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply journal pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record appends one event. The event's ID and RecordedAt are assigned
// here; duplicate ids are silently ignored.
func (j *Journal) Record(ctx context.Context, domain, planName, action string) error {
	if action != ActionSet && action != ActionClear {
		return fmt.Errorf("unknown journal action %q", action)
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO assignments (id, domain, plan, action, recorded_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		uuid.Must(uuid.NewV7()).String(),
		domain,
		planName,
		action,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record assignment: %w", err)
	}
	return nil
}

// ByDomain returns the newest events for a domain, most recent first.
// limit <= 0 means no limit.
func (j *Journal) ByDomain(ctx context.Context, domain string, limit int) ([]Event, error) {
	query := `
		SELECT seq, id, domain, plan, action, recorded_at
		FROM assignments
		WHERE domain = ?
		ORDER BY seq DESC
	`
	args := []any{domain}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ev       Event
			planName sql.NullString
			recorded string
		)
		if err := rows.Scan(&ev.Seq, &ev.ID, &ev.Domain, &planName, &ev.Action, &recorded); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		ev.Plan = planName.String
		ev.RecordedAt, err = time.Parse(time.RFC3339Nano, recorded)
		if err != nil {
			return nil, fmt.Errorf("parse recorded_at %q: %w", recorded, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read assignments: %w", err)
	}
	return events, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}
