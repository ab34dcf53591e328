// Copyright 2026 The Alcheme Authors
// SPDX-License-Identifier: Apache-2.0

package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/alcheme/alcheme/lib/apierror"
	"github.com/alcheme/alcheme/lib/clock"
	"github.com/alcheme/alcheme/lib/sqlitepool"
)

// schema is applied to every pool connection. The documents table is
// the single physical table; collections are a column, mirroring a
// path-addressed document database. created_at drives feed ordering
// and is fixed at first insert.
const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	body       TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (collection, id)
);

CREATE INDEX IF NOT EXISTS documents_by_time
	ON documents (collection, created_at DESC, id DESC);
`

// transactionAttempts bounds how many times RunTransaction retries a
// function whose commit lost to a concurrent writer.
const transactionAttempts = 3

// retryBackoff is the base delay between transaction attempts; the
// delay grows linearly with the attempt number.
const retryBackoff = 25 * time.Millisecond

// Config holds the parameters for opening a Store.
type Config struct {
	// Path is the SQLite database file, passed to the pool.
	Path string

	// PoolSize is forwarded to the connection pool.
	PoolSize int

	// Logger receives operational messages. If nil, a no-op logger
	// is used.
	Logger *slog.Logger

	// Clock supplies document timestamps and retry backoff. If nil,
	// the real clock is used.
	Clock clock.Clock
}

// Store is a transactional document store. Safe for concurrent use.
type Store struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
	clock  clock.Clock
}

// Doc is a stored document together with its metadata.
type Doc struct {
	Collection string
	ID         string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Body       json.RawMessage
}

// Decode unmarshals the document body into out.
func (d Doc) Decode(out any) error {
	if err := json.Unmarshal(d.Body, out); err != nil {
		return fmt.Errorf("docstore: decoding %s/%s: %w", d.Collection, d.ID, err)
	}
	return nil
}

// Open opens the database at cfg.Path, creating the schema if needed.
// The caller must Close the store when done.
func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: cfg.PoolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("docstore: %w", err)
	}

	return &Store{pool: pool, logger: logger, clock: clk}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Get reads one document and decodes its body into out. Returns an
// error of kind [apierror.KindNotFound] when the document does not
// exist. out may be nil to check existence with metadata.
func (s *Store) Get(ctx context.Context, collection, id string, out any) (Doc, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return Doc{}, err
	}
	defer s.pool.Put(conn)
	return getDoc(conn, collection, id, out)
}

// Exists reports whether a document exists without decoding it.
func (s *Store) Exists(ctx context.Context, collection, id string) (bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return false, err
	}
	defer s.pool.Put(conn)
	return docExists(conn, collection, id)
}

// ListOptions controls List ordering and pagination.
type ListOptions struct {
	// Limit caps the number of documents returned. Zero or negative
	// means no limit.
	Limit int

	// Descending orders by (created_at, id) descending. The default
	// is ascending.
	Descending bool

	// After resumes a paginated listing strictly after the given
	// document, in the selected order. Nil starts from the beginning.
	After *Cursor
}

// Cursor identifies a position in a listed collection.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// List returns documents in a collection ordered by creation time,
// with (created_at, id) as the total order.
func (s *Store) List(ctx context.Context, collection string, opts ListOptions) ([]Doc, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)
	return listDocs(conn, collection, opts)
}

// RunTransaction executes fn inside an IMMEDIATE transaction. All
// reads and writes through tx are atomic: if fn returns an error the
// transaction rolls back and the error is returned unchanged. A
// transaction that cannot obtain or keep the write lock is retried up
// to three times; exhausted retries surface as
// [apierror.KindTransientConflict].
func (s *Store) RunTransaction(ctx context.Context, fn func(tx *Tx) error) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	var lastErr error
	for attempt := 1; attempt <= transactionAttempts; attempt++ {
		err := runOnce(conn, s.clock.Now(), fn)
		if err == nil {
			return nil
		}
		if !isBusy(err) {
			return err
		}
		lastErr = err
		s.logger.Warn("transaction retry",
			"attempt", attempt,
			"error", err,
		)

		if attempt == transactionAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("docstore: transaction cancelled: %w", ctx.Err())
		case <-s.clock.After(time.Duration(attempt) * retryBackoff):
		}
	}

	return apierror.Wrap(apierror.KindTransientConflict, "transaction contention, retry the request", lastErr)
}

// runOnce executes fn in a single IMMEDIATE transaction attempt.
func runOnce(conn *sqlite.Conn, now time.Time, fn func(tx *Tx) error) (err error) {
	end, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("docstore: begin transaction: %w", err)
	}
	defer end(&err)

	return fn(&Tx{conn: conn, now: now})
}

// isBusy reports whether err is SQLite lock contention.
func isBusy(err error) bool {
	switch sqlite.ErrCode(err).ToPrimary() {
	case sqlite.ResultBusy, sqlite.ResultLocked:
		return true
	}
	return false
}

// Tx is the handle passed to a RunTransaction function. All methods
// operate within the enclosing transaction. Not safe for concurrent
// use.
type Tx struct {
	conn *sqlite.Conn
	now  time.Time
}

// Now returns the transaction timestamp. Every write in the
// transaction shares it.
func (tx *Tx) Now() time.Time {
	return tx.now
}

// Get reads one document within the transaction. Returns an error of
// kind [apierror.KindNotFound] when absent.
func (tx *Tx) Get(collection, id string, out any) (Doc, error) {
	return getDoc(tx.conn, collection, id, out)
}

// Exists reports whether a document exists within the transaction.
func (tx *Tx) Exists(collection, id string) (bool, error) {
	return docExists(tx.conn, collection, id)
}

// List returns documents in a collection within the transaction.
func (tx *Tx) List(collection string, opts ListOptions) ([]Doc, error) {
	return listDocs(tx.conn, collection, opts)
}

// Put upserts a document. created_at is fixed at first insert;
// updated_at always moves to the transaction timestamp.
func (tx *Tx) Put(collection, id string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("docstore: encoding %s/%s: %w", collection, id, err)
	}

	err = sqlitex.Execute(tx.conn, `
		INSERT INTO documents (collection, id, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET
			body = excluded.body,
			updated_at = excluded.updated_at
	`, &sqlitex.ExecOptions{
		Args: []any{collection, id, string(body), tx.now.UnixMilli(), tx.now.UnixMilli()},
	})
	if err != nil {
		return fmt.Errorf("docstore: writing %s/%s: %w", collection, id, err)
	}
	return nil
}

// Delete removes a document. Deleting an absent document is a no-op.
func (tx *Tx) Delete(collection, id string) error {
	err := sqlitex.Execute(tx.conn, `
		DELETE FROM documents WHERE collection = ? AND id = ?
	`, &sqlitex.ExecOptions{
		Args: []any{collection, id},
	})
	if err != nil {
		return fmt.Errorf("docstore: deleting %s/%s: %w", collection, id, err)
	}
	return nil
}

// getDoc reads one document on the given connection.
func getDoc(conn *sqlite.Conn, collection, id string, out any) (Doc, error) {
	var doc Doc
	found := false

	err := sqlitex.Execute(conn, `
		SELECT body, created_at, updated_at
		FROM documents WHERE collection = ? AND id = ?
	`, &sqlitex.ExecOptions{
		Args: []any{collection, id},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			found = true
			doc = Doc{
				Collection: collection,
				ID:         id,
				Body:       json.RawMessage(stmt.ColumnText(0)),
				CreatedAt:  time.UnixMilli(stmt.ColumnInt64(1)).UTC(),
				UpdatedAt:  time.UnixMilli(stmt.ColumnInt64(2)).UTC(),
			}
			return nil
		},
	})
	if err != nil {
		return Doc{}, fmt.Errorf("docstore: reading %s/%s: %w", collection, id, err)
	}
	if !found {
		return Doc{}, apierror.Newf(apierror.KindNotFound, "document %s/%s not found", collection, id)
	}
	if out != nil {
		if err := doc.Decode(out); err != nil {
			return Doc{}, err
		}
	}
	return doc, nil
}

// docExists checks for a document on the given connection.
func docExists(conn *sqlite.Conn, collection, id string) (bool, error) {
	exists := false
	err := sqlitex.Execute(conn, `
		SELECT 1 FROM documents WHERE collection = ? AND id = ?
	`, &sqlitex.ExecOptions{
		Args: []any{collection, id},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			exists = true
			return nil
		},
	})
	if err != nil {
		return false, fmt.Errorf("docstore: checking %s/%s: %w", collection, id, err)
	}
	return exists, nil
}

// listDocs lists a collection on the given connection.
func listDocs(conn *sqlite.Conn, collection string, opts ListOptions) ([]Doc, error) {
	query := `
		SELECT id, body, created_at, updated_at
		FROM documents WHERE collection = ?
	`
	args := []any{collection}

	if opts.After != nil {
		if opts.Descending {
			query += ` AND (created_at, id) < (?, ?)`
		} else {
			query += ` AND (created_at, id) > (?, ?)`
		}
		args = append(args, opts.After.CreatedAt.UnixMilli(), opts.After.ID)
	}

	if opts.Descending {
		query += ` ORDER BY created_at DESC, id DESC`
	} else {
		query += ` ORDER BY created_at ASC, id ASC`
	}

	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	var docs []Doc
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			docs = append(docs, Doc{
				Collection: collection,
				ID:         stmt.ColumnText(0),
				Body:       json.RawMessage(stmt.ColumnText(1)),
				CreatedAt:  time.UnixMilli(stmt.ColumnInt64(2)).UTC(),
				UpdatedAt:  time.UnixMilli(stmt.ColumnInt64(3)).UTC(),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("docstore: listing %s: %w", collection, err)
	}
	return docs, nil
}
