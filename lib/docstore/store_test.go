// Copyright 2026 The Alcheme Authors
// SPDX-License-Identifier: Apache-2.0

package docstore

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alcheme/alcheme/lib/apierror"
	"github.com/alcheme/alcheme/lib/clock"
)

type testDoc struct {
	Caption string `json:"caption"`
	Count   int64  `json:"count"`
}

func testStore(t *testing.T, clk clock.Clock) *Store {
	t.Helper()
	store, err := Open(Config{
		Path:  filepath.Join(t.TempDir(), "test.db"),
		Clock: clk,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func put(t *testing.T, store *Store, collection, id string, v any) {
	t.Helper()
	err := store.RunTransaction(context.Background(), func(tx *Tx) error {
		return tx.Put(collection, id, v)
	})
	if err != nil {
		t.Fatalf("put %s/%s: %v", collection, id, err)
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := testStore(t, clock.Fake(start))

	put(t, store, "posts", "p1", testDoc{Caption: "spring palette", Count: 3})

	var got testDoc
	doc, err := store.Get(context.Background(), "posts", "p1", &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Caption != "spring palette" || got.Count != 3 {
		t.Errorf("decoded %+v", got)
	}
	if !doc.CreatedAt.Equal(start) {
		t.Errorf("CreatedAt = %v, want %v", doc.CreatedAt, start)
	}
}

func TestGetNotFound(t *testing.T) {
	store := testStore(t, nil)

	_, err := store.Get(context.Background(), "posts", "missing", nil)
	if apierror.KindOf(err) != apierror.KindNotFound {
		t.Errorf("kind = %v, want KindNotFound", apierror.KindOf(err))
	}
}

func TestPutPreservesCreatedAt(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := testStore(t, fake)

	put(t, store, "posts", "p1", testDoc{Caption: "v1"})
	created := fake.Now()

	fake.Advance(time.Hour)
	put(t, store, "posts", "p1", testDoc{Caption: "v2"})

	var got testDoc
	doc, err := store.Get(context.Background(), "posts", "p1", &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Caption != "v2" {
		t.Errorf("Caption = %q, want v2", got.Caption)
	}
	if !doc.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt moved to %v", doc.CreatedAt)
	}
	if !doc.UpdatedAt.Equal(fake.Now()) {
		t.Errorf("UpdatedAt = %v, want %v", doc.UpdatedAt, fake.Now())
	}
}

func TestDeleteIdempotent(t *testing.T) {
	store := testStore(t, nil)
	ctx := context.Background()

	put(t, store, "posts", "p1", testDoc{})
	for i := 0; i < 2; i++ {
		err := store.RunTransaction(ctx, func(tx *Tx) error {
			return tx.Delete("posts", "p1")
		})
		if err != nil {
			t.Fatalf("delete pass %d: %v", i+1, err)
		}
	}

	exists, err := store.Exists(ctx, "posts", "p1")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Error("document still exists after delete")
	}
}

func TestListOrderingAndCursor(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := testStore(t, fake)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d"} {
		put(t, store, "posts", id, testDoc{Caption: id})
		fake.Advance(time.Minute)
	}

	page, err := store.List(ctx, "posts", ListOptions{Descending: true, Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page) != 2 || page[0].ID != "d" || page[1].ID != "c" {
		t.Fatalf("first page = %v", ids(page))
	}

	last := page[len(page)-1]
	rest, err := store.List(ctx, "posts", ListOptions{
		Descending: true,
		Limit:      2,
		After:      &Cursor{CreatedAt: last.CreatedAt, ID: last.ID},
	})
	if err != nil {
		t.Fatalf("List after cursor: %v", err)
	}
	if len(rest) != 2 || rest[0].ID != "b" || rest[1].ID != "a" {
		t.Fatalf("second page = %v", ids(rest))
	}

	ascending, err := store.List(ctx, "posts", ListOptions{})
	if err != nil {
		t.Fatalf("List ascending: %v", err)
	}
	if len(ascending) != 4 || ascending[0].ID != "a" {
		t.Fatalf("ascending = %v", ids(ascending))
	}
}

func TestTransactionRollsBackOnError(t *testing.T) {
	store := testStore(t, nil)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.RunTransaction(ctx, func(tx *Tx) error {
		if err := tx.Put("posts", "p1", testDoc{}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	exists, err := store.Exists(ctx, "posts", "p1")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Error("write survived a rolled-back transaction")
	}
}

func TestConcurrentCounterIncrements(t *testing.T) {
	store := testStore(t, nil)
	ctx := context.Background()

	put(t, store, "stats", "s1", testDoc{Count: 0})

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.RunTransaction(ctx, func(tx *Tx) error {
				var stats testDoc
				if _, err := tx.Get("stats", "s1", &stats); err != nil {
					return err
				}
				stats.Count++
				return tx.Put("stats", "s1", stats)
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("transaction: %v", err)
		}
	}

	var stats testDoc
	if _, err := store.Get(ctx, "stats", "s1", &stats); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stats.Count != workers {
		t.Errorf("Count = %d, want %d", stats.Count, workers)
	}
}

func ids(docs []Doc) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}
