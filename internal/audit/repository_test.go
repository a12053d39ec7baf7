package audit

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/openhearth/loragate/internal/bridges/lora"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE command_log (
			id           TEXT PRIMARY KEY,
			device_id    TEXT NOT NULL,
			command      TEXT NOT NULL,
			value        TEXT NOT NULL DEFAULT '',
			acknowledged INTEGER NOT NULL,
			soft         INTEGER NOT NULL,
			created_at   TEXT NOT NULL
		)
	`)
	if err != nil {
		t.Fatalf("creating command_log table: %v", err)
	}
	return db
}

func TestRepository_RecordAndList(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	ctx := context.Background()

	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	records := []lora.CommandRecord{
		{ID: "cmd-1", DeviceID: "001", Command: "ON", Acknowledged: true, CreatedAt: base},
		{ID: "cmd-2", DeviceID: "002", Command: "BRIGHTNESS", Value: "75", Acknowledged: true, Soft: true, CreatedAt: base.Add(time.Minute)},
		{ID: "cmd-3", DeviceID: "001", Command: "OFF", Acknowledged: false, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, rec := range records {
		if err := repo.Record(ctx, rec); err != nil {
			t.Fatalf("Record(%s) error = %v", rec.ID, err)
		}
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if result.Total != 3 {
		t.Errorf("Total = %d, want 3", result.Total)
	}
	if len(result.Entries) != 3 {
		t.Fatalf("len(Entries) = %d, want 3", len(result.Entries))
	}

	// Most recent first.
	if result.Entries[0].ID != "cmd-3" {
		t.Errorf("Entries[0].ID = %q, want cmd-3", result.Entries[0].ID)
	}

	soft := result.Entries[1]
	if soft.ID != "cmd-2" || !soft.Soft || !soft.Acknowledged || soft.Value != "75" {
		t.Errorf("soft entry = %+v", soft)
	}

	nack := result.Entries[0]
	if nack.Acknowledged {
		t.Error("cmd-3 should not be acknowledged")
	}
}

func TestRepository_Record_GeneratesIDAndTimestamp(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db)

	err := repo.Record(context.Background(), lora.CommandRecord{
		DeviceID: "001",
		Command:  "ON",
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	var id, createdAt string
	err = db.QueryRow("SELECT id, created_at FROM command_log").Scan(&id, &createdAt)
	if err != nil {
		t.Fatalf("querying row: %v", err)
	}

	if id == "" {
		t.Error("expected generated ID")
	}
	if _, err := time.Parse(time.RFC3339, createdAt); err != nil {
		t.Errorf("created_at %q is not RFC 3339: %v", createdAt, err)
	}
}

func TestRepository_List_Filters(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	ctx := context.Background()

	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	seed := []lora.CommandRecord{
		{ID: "cmd-1", DeviceID: "001", Command: "ON", Acknowledged: true, CreatedAt: base},
		{ID: "cmd-2", DeviceID: "001", Command: "OFF", Acknowledged: true, CreatedAt: base.Add(time.Minute)},
		{ID: "cmd-3", DeviceID: "002", Command: "ON", Acknowledged: true, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, rec := range seed {
		if err := repo.Record(ctx, rec); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	tests := []struct {
		name      string
		filter    Filter
		wantIDs   []string
		wantTotal int
	}{
		{
			name:      "by device",
			filter:    Filter{DeviceID: "001"},
			wantIDs:   []string{"cmd-2", "cmd-1"},
			wantTotal: 2,
		},
		{
			name:      "by command",
			filter:    Filter{Command: "ON"},
			wantIDs:   []string{"cmd-3", "cmd-1"},
			wantTotal: 2,
		},
		{
			name:      "by device and command",
			filter:    Filter{DeviceID: "001", Command: "ON"},
			wantIDs:   []string{"cmd-1"},
			wantTotal: 1,
		},
		{
			name:      "limit with pagination",
			filter:    Filter{Limit: 1, Offset: 1},
			wantIDs:   []string{"cmd-2"},
			wantTotal: 3,
		},
		{
			name:      "no matches returns empty slice",
			filter:    Filter{DeviceID: "099"},
			wantIDs:   []string{},
			wantTotal: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if result.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", result.Total, tt.wantTotal)
			}
			if len(result.Entries) != len(tt.wantIDs) {
				t.Fatalf("len(Entries) = %d, want %d", len(result.Entries), len(tt.wantIDs))
			}
			for i, want := range tt.wantIDs {
				if result.Entries[i].ID != want {
					t.Errorf("Entries[%d].ID = %q, want %q", i, result.Entries[i].ID, want)
				}
			}
		})
	}
}

func TestRepository_ListRecent(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	ctx := context.Background()

	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"cmd-1", "cmd-2", "cmd-3"} {
		rec := lora.CommandRecord{
			ID:           id,
			DeviceID:     "001",
			Command:      "ON",
			Acknowledged: true,
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Record(ctx, rec); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	entries, err := repo.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].ID != "cmd-3" || entries[1].ID != "cmd-2" {
		t.Errorf("entries = %v, want cmd-3 then cmd-2", entries)
	}
}
