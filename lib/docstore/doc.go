// Copyright 2026 The Alcheme Authors
// SPDX-License-Identifier: Apache-2.0

// Package docstore is alcheme's transactional document store: JSON
// documents addressed by (collection, id), backed by SQLite through
// [lib/sqlitepool].
//
// The store exposes two surfaces. Plain reads ([Store.Get],
// [Store.List], [Store.Exists]) take a pooled connection for the
// duration of one statement. Writes go through [Store.RunTransaction],
// which opens an IMMEDIATE transaction so every read inside the
// function observes a consistent snapshot and every write commits
// atomically with it. Counter updates and their edge documents always
// share one transaction.
//
// A transaction that loses the write lock to a concurrent writer is
// retried a bounded number of times with a short backoff. When the
// retries are exhausted the error carries
// [apierror.KindTransientConflict], which the HTTP layer maps to a
// retryable status.
package docstore
