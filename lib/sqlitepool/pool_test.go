// Copyright 2026 The Alcheme Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Error("Open with empty Path succeeded")
	}
}

func TestOnConnectCreatesSchema(t *testing.T) {
	pool, err := Open(Config{
		Path:     filepath.Join(t.TempDir(), "test.db"),
		PoolSize: 2,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, `
				CREATE TABLE IF NOT EXISTS documents (
					collection TEXT NOT NULL,
					id TEXT NOT NULL,
					body TEXT NOT NULL,
					PRIMARY KEY (collection, id)
				);
			`, nil)
		},
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pool.Close()

	ctx := context.Background()
	conn, err := pool.Take(ctx)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}

	err = sqlitex.Execute(conn, `INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)`, &sqlitex.ExecOptions{
		Args: []any{"posts", "p1", `{"caption":"hello"}`},
	})
	pool.Put(conn)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	// A second connection sees the row, so the schema exists on every
	// pool connection.
	conn, err = pool.Take(ctx)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	defer pool.Put(conn)

	var count int64
	err = sqlitex.Execute(conn, `SELECT COUNT(*) FROM documents`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			count = stmt.ColumnInt64(0)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestOnConnectErrorSurfacesFromTake(t *testing.T) {
	sentinel := errors.New("schema broken")
	pool, err := Open(Config{
		Path:      filepath.Join(t.TempDir(), "test.db"),
		PoolSize:  1,
		OnConnect: func(conn *sqlite.Conn) error { return sentinel },
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer pool.Close()

	if _, err := pool.Take(context.Background()); err == nil {
		t.Error("Take succeeded despite OnConnect error")
	}
}

func TestTakeAfterClose(t *testing.T) {
	pool, err := Open(Config{Path: filepath.Join(t.TempDir(), "test.db"), PoolSize: 1})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := pool.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := pool.Take(context.Background()); err == nil {
		t.Error("Take after Close succeeded")
	}
}
