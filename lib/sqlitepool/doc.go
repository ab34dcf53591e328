// Copyright 2026 The Alcheme Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides the alcheme-standard SQLite connection
// pool backing the document store.
//
// It wraps zombiezen.com/go/sqlite with production defaults: WAL
// journal mode, NORMAL synchronous for process-crash durability
// without fsync-per-commit overhead, memory-mapped reads, and a busy
// timeout so short write contention waits instead of failing.
//
// The pool is built on zombiezen's sqlitex.Pool, which manages a
// fixed-size set of connections. Callers [Pool.Take] a connection,
// perform work, and [Pool.Put] it back. Connections are NOT safe for
// concurrent use; each goroutine holds its own connection for the
// duration of its work.
//
// # Pragmas
//
// Every connection in the pool is initialized with these pragmas:
//
//   - journal_mode=WAL: write-ahead logging for concurrent readers
//     and a single writer. Reads never block writes.
//   - synchronous=NORMAL: transactions survive process crashes. Not
//     durable across power failure, which is acceptable for a
//     per-instance API store whose contents can be rebuilt.
//   - busy_timeout=5000: wait up to 5 seconds for a write lock
//     instead of returning SQLITE_BUSY immediately.
//   - foreign_keys=OFF: the document store manages referential
//     integrity explicitly inside its transactions.
//   - cache_size=-8192: 8 MB page cache per connection.
//   - mmap_size=268435456: 256 MB memory-mapped I/O for reads.
//   - temp_store=MEMORY: temporary tables and indexes in memory.
//
// # Usage
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   "/var/alcheme/api.db",
//	    Logger: logger,
//	    OnConnect: func(conn *sqlite.Conn) error {
//	        return sqlitex.ExecuteScript(conn, schema, nil)
//	    },
//	})
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	conn, err := pool.Take(ctx)
//	if err != nil {
//	    return err
//	}
//	defer pool.Put(conn)
//
// The package is intentionally thin: standard pragmas plus the
// zombiezen types, no query builder. Higher layers write SQL with
// sqlitex.Execute and manage transactions with
// sqlitex.ImmediateTransaction.
package sqlitepool
