// Package audit provides access to the command_log table recording every
// command dispatched over the radio.
//
// The repository implements the bridge's Recorder hook on the write side
// and serves the API's audit endpoint on the read side. The protocol path
// never reads this table; it is history, not state.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openhearth/loragate/internal/bridges/lora"
)

// Default and maximum page sizes for audit queries.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// Entry represents a single command log row.
type Entry struct {
	ID           string    `json:"id"`
	DeviceID     string    `json:"device_id"`
	Command      string    `json:"command"`
	Value        string    `json:"value,omitempty"`
	Acknowledged bool      `json:"acknowledged"`
	Soft         bool      `json:"soft"`
	CreatedAt    time.Time `json:"created_at"`
}

// Filter controls which entries to return.
type Filter struct {
	DeviceID string // optional: filter by device
	Command  string // optional: filter by command name (ON, BRIGHTNESS, ...)
	Limit    int    // default 50, max 200
	Offset   int    // pagination offset
}

// ListResult contains the paginated command log results.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository reads and writes the command log in SQLite.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a command log repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Record inserts one command record. It satisfies the bridge's Recorder
// interface; the bridge calls it once per dispatched command.
func (r *Repository) Record(ctx context.Context, rec lora.CommandRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO command_log (id, device_id, command, value, acknowledged, soft, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.DeviceID, rec.Command, rec.Value,
		boolToInt(rec.Acknowledged), boolToInt(rec.Soft),
		rec.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting command log: %w", err)
	}

	return nil
}

// boolToInt maps Go bools onto SQLite INTEGER columns.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// List returns command log entries matching the filter, most recent first.
func (r *Repository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	// Clamp limit.
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	// Build WHERE clause dynamically.
	var conditions []string
	var args []any

	if filter.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.Command != "" {
		conditions = append(conditions, "command = ?")
		args = append(args, filter.Command)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Get total count.
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM command_log %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting command log: %w", err)
	}

	// Get paginated results.
	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT id, device_id, command, value, acknowledged, soft, created_at FROM command_log %s ORDER BY created_at DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying command log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var acknowledged, soft int
		var createdAt string

		if err := rows.Scan(&e.ID, &e.DeviceID, &e.Command, &e.Value,
			&acknowledged, &soft, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning command log: %w", err)
		}

		e.Acknowledged = acknowledged != 0
		e.Soft = soft != 0

		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing command log timestamp %q: %w", createdAt, err)
		}
		e.CreatedAt = t

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command log: %w", err)
	}

	if entries == nil {
		entries = []Entry{}
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

// ListRecent returns the most recent entries up to limit.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	result, err := r.List(ctx, Filter{Limit: limit})
	if err != nil {
		return nil, err
	}
	return result.Entries, nil
}
