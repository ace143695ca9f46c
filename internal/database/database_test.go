package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenAndMigrate(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Join(dir, "macdesigns.db")); err != nil {
		t.Fatalf("db file not created: %v", err)
	}

	tables := []string{"sessions", "security_state", "events", "achievements", "contact_messages"}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}

	_, err = db.Exec(db.Rebind("INSERT INTO sessions (id, profile_id, started_at, last_seen_at, ip_hash) VALUES (?, ?, ?, ?, ?)"),
		"test-session", "profile", 1, 1, "hash123")
	if err != nil {
		t.Fatalf("insert session: %v", err)
	}

	var id string
	if err := db.QueryRow("SELECT id FROM sessions WHERE id = ?", "test-session").Scan(&id); err != nil {
		t.Fatalf("query session: %v", err)
	}
	if id != "test-session" {
		t.Errorf("expected test-session, got %s", id)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	db.Close()

	db, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	if err := db.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}
}

func TestRebind(t *testing.T) {
	sqlite := &DB{Dialect: SQLite}
	pg := &DB{Dialect: Postgres}

	q := "UPDATE t SET a = ?, b = ? WHERE c = ?"
	if got := sqlite.Rebind(q); got != q {
		t.Errorf("sqlite rebind changed query: %s", got)
	}
	if got, want := pg.Rebind(q), "UPDATE t SET a = $1, b = $2 WHERE c = $3"; got != want {
		t.Errorf("postgres rebind = %q, want %q", got, want)
	}
}

func TestConnectDefaultsToSQLite(t *testing.T) {
	db, err := Connect(context.Background(), "", t.TempDir())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer db.Close()
	if db.Dialect != SQLite {
		t.Errorf("dialect = %s, want sqlite", db.Dialect)
	}
}
