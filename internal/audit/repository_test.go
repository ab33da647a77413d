package audit

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
	CREATE TABLE audit_logs (
		id          TEXT PRIMARY KEY,
		action      TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id   TEXT,
		user_id     TEXT,
		source      TEXT NOT NULL,
		details     TEXT,
		created_at  TEXT NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating test schema: %v", err)
	}
	return db
}

func TestSQLiteRepository_RecordAndList(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	entry := &Entry{
		Action:     ActionControl,
		EntityType: "device",
		EntityID:   "light-1",
		UserID:     "admin",
		Source:     "api",
		Details:    map[string]any{"power": true},
	}
	if err := repo.Record(ctx, entry); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if entry.ID == "" {
		t.Error("Record did not assign an ID")
	}
	if entry.CreatedAt.IsZero() {
		t.Error("Record did not set CreatedAt")
	}

	result, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if result.Total != 1 || len(result.Entries) != 1 {
		t.Fatalf("List returned total=%d entries=%d, want 1/1", result.Total, len(result.Entries))
	}
	got := result.Entries[0]
	if got.Action != ActionControl || got.EntityID != "light-1" || got.UserID != "admin" {
		t.Errorf("entry = %+v", got)
	}
	if v, ok := got.Details["power"].(bool); !ok || !v {
		t.Errorf("details = %v, want power=true", got.Details)
	}
}

func TestSQLiteRepository_ListFilters(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seed := []Entry{
		{Action: ActionCreate, EntityType: "device", EntityID: "light-1", Source: "api"},
		{Action: ActionControl, EntityType: "device", EntityID: "light-1", Source: "api"},
		{Action: ActionControl, EntityType: "device", EntityID: "thermo-1", Source: "chat"},
		{Action: ActionLogin, EntityType: "session", UserID: "admin", Source: "api"},
	}
	for i := range seed {
		seed[i].CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Record(ctx, &seed[i]); err != nil {
			t.Fatalf("Record seed %d: %v", i, err)
		}
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
	}{
		{"no filter", Filter{}, 4},
		{"by action", Filter{Action: ActionControl}, 2},
		{"by entity type", Filter{EntityType: "session"}, 1},
		{"by entity id", Filter{EntityID: "light-1"}, 2},
		{"action and entity", Filter{Action: ActionControl, EntityID: "light-1"}, 1},
		{"no match", Filter{Action: ActionDelete}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if result.Total != tt.wantTotal {
				t.Errorf("total = %d, want %d", result.Total, tt.wantTotal)
			}
		})
	}

	t.Run("most recent first", func(t *testing.T) {
		result, err := repo.List(ctx, Filter{})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if result.Entries[0].Action != ActionLogin {
			t.Errorf("first entry action = %q, want login", result.Entries[0].Action)
		}
	})

	t.Run("pagination", func(t *testing.T) {
		result, err := repo.List(ctx, Filter{Limit: 2, Offset: 2})
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if result.Total != 4 || len(result.Entries) != 2 {
			t.Errorf("total=%d page=%d, want 4/2", result.Total, len(result.Entries))
		}
	})
}
