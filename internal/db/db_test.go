package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

const failedToInitDB = "Failed to initialize database: %v"

func TestSetLogger(t *testing.T) {
	logger := zerolog.New(os.Stdout).Level(zerolog.InfoLevel)
	SetLogger(logger)

	// This test mainly ensures the function doesn't panic
}

func TestNewSQLite(t *testing.T) {
	db := NewSQLite(MemoryPath)

	if db == nil {
		t.Fatal("Expected non-nil SQLite instance")
	}

	if db.conn != nil {
		t.Error("Expected connection to be nil initially")
	}

	if err := db.Close(); err != nil {
		t.Errorf("Expected closing an unopened database to succeed, got %v", err)
	}
}

func TestSQLiteBasicOperations(t *testing.T) {
	logger := zerolog.New(os.Stdout).Level(zerolog.ErrorLevel)
	SetLogger(logger)

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	db := NewSQLite(path)
	defer db.Close()

	t.Run("InitDB creates tables", func(t *testing.T) {
		if err := db.InitDB(); err != nil {
			t.Fatalf(failedToInitDB, err)
		}

		if db.Get() == nil {
			t.Fatal("Expected database connection to be established")
		}

		if err := db.Get().Ping(); err != nil {
			t.Errorf("Failed to ping database: %v", err)
		}
	})

	t.Run("Verify tables are created", func(t *testing.T) {
		for _, table := range []string{"templates", "saved_buttons"} {
			var name string
			err := db.QueryRow(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
			if err != nil {
				t.Errorf("Expected table %s to exist: %v", table, err)
			}
		}
	})

	t.Run("Verify table schemas", func(t *testing.T) {
		want := map[string][]string{
			"templates":     {"key", "owner", "title", "body", "buttons", "media_kind", "media_ref", "created_at"},
			"saved_buttons": {"id", "owner", "label", "url", "created_at"},
		}

		for table, columns := range want {
			rows, err := db.Query(ctx, "PRAGMA table_info("+table+")")
			if err != nil {
				t.Fatalf("Failed to get %s table info: %v", table, err)
			}

			have := make(map[string]bool)
			for rows.Next() {
				var cid int
				var name, dataType string
				var notNull, pk int
				var defaultValue sql.NullString

				if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
					t.Errorf("Failed to scan column info: %v", err)
					continue
				}
				have[name] = true
			}
			rows.Close()

			for _, col := range columns {
				if !have[col] {
					t.Errorf("Expected %s table to have column %s", table, col)
				}
			}
		}
	})

	t.Run("Template key is unique", func(t *testing.T) {
		insert := `INSERT INTO templates (key, owner, title, created_at) VALUES (?, ?, ?, ?)`
		if _, err := db.Exec(ctx, insert, "AAAA2222", "1", "t", 1); err != nil {
			t.Fatalf("Failed to insert template: %v", err)
		}
		if _, err := db.Exec(ctx, insert, "AAAA2222", "2", "t", 2); err == nil {
			t.Error("Expected duplicate key insert to fail")
		}
	})

	t.Run("Saved buttons allow duplicates at the schema level", func(t *testing.T) {
		insert := `INSERT INTO saved_buttons (owner, label, url, created_at) VALUES (?, ?, ?, ?)`
		for i := 0; i < 2; i++ {
			if _, err := db.Exec(ctx, insert, "1", "A", "https://a.example", i); err != nil {
				t.Fatalf("Failed to insert saved button: %v", err)
			}
		}
	})

	t.Run("InitDB is idempotent", func(t *testing.T) {
		again := NewSQLite(path)
		defer again.Close()
		if err := again.InitDB(); err != nil {
			t.Fatalf("Expected re-initialization to succeed, got %v", err)
		}
	})
}

func TestSQLiteMemory(t *testing.T) {
	db := NewSQLite(MemoryPath)
	defer db.Close()

	if err := db.InitDB(); err != nil {
		t.Fatalf(failedToInitDB, err)
	}

	ctx := context.Background()
	if _, err := db.Exec(ctx, `INSERT INTO saved_buttons (owner, label, url, created_at) VALUES ('1', 'A', 'https://a', 0)`); err != nil {
		t.Fatalf("Failed to insert: %v", err)
	}

	var n int
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM saved_buttons`).Scan(&n); err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 row in the shared in-memory database, got %d", n)
	}
}
