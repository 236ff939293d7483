package docstore

import (
	"context"
	"errors"
	"testing"
)

type testDoc struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Count  int    `json:"count"`
}

func TestMemStore_getSetDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemStore()

	if err := s.Set(ctx, "users/u1/items", "i1", testDoc{Name: "jacket"}); err != nil {
		t.Fatal(err)
	}

	var got testDoc
	if err := s.Get(ctx, "users/u1/items", "i1", &got); err != nil {
		t.Fatal(err)
	}
	if got.Name != "jacket" {
		t.Errorf("got %+v", got)
	}

	if err := s.Delete(ctx, "users/u1/items", "i1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Get(ctx, "users/u1/items", "i1", &got); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete: got %v, want ErrNotFound", err)
	}
}

func TestMemStore_collectionGroup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemStore()

	s.Set(ctx, "users/u1/items", "i1", testDoc{Name: "a", Status: "listed"})
	s.Set(ctx, "users/u2/items", "i2", testDoc{Name: "b", Status: "listed"})
	s.Set(ctx, "users/u2/swaps", "s1", testDoc{Name: "c"})

	docs, err := s.CollectionGroup(ctx, "items")
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2", len(docs))
	}

	docs, err = s.CollectionGroup(ctx, "items", Where("name", "b"))
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].ID != "i2" {
		t.Fatalf("filtered group query: got %+v", docs)
	}
}

func TestMemStore_increment(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemStore()

	s.Set(ctx, "users/u1/items", "i1", testDoc{Count: 2})
	if err := s.Increment(ctx, "users/u1/items", "i1", "count", 3); err != nil {
		t.Fatal(err)
	}

	var got testDoc
	s.Get(ctx, "users/u1/items", "i1", &got)
	if got.Count != 5 {
		t.Errorf("count = %d, want 5", got.Count)
	}

	if err := s.Increment(ctx, "users/u1/items", "missing", "count", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestMemStore_batchGuardFailureRollsBackEverything(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemStore()

	s.Set(ctx, "swapRequests", "r1", testDoc{Status: "accepted"})
	s.Set(ctx, "users/u1/items", "i1", testDoc{Name: "jacket"})

	ops := []Op{
		Update("users/u1/items", "i1", map[string]any{"name": "renamed"}),
		Guarded(
			Update("swapRequests", "r1", map[string]any{"status": "rejected"}),
			map[string]any{"status": "pending"},
		),
	}
	err := s.BatchWrite(ctx, ops)
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("got %v, want ErrPreconditionFailed", err)
	}

	// first op must not have been applied
	var item testDoc
	s.Get(ctx, "users/u1/items", "i1", &item)
	if item.Name != "jacket" {
		t.Errorf("batch partially applied: item = %+v", item)
	}
}

func TestMemStore_batchGuardSuccess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemStore()

	s.Set(ctx, "swapRequests", "r1", testDoc{Status: "pending"})

	ops := []Op{
		Guarded(
			Update("swapRequests", "r1", map[string]any{"status": "accepted"}),
			map[string]any{"status": "pending"},
		),
		Set("users/u1/swaps", "rec1", testDoc{Name: "record"}),
	}
	if err := s.BatchWrite(ctx, ops); err != nil {
		t.Fatal(err)
	}

	var req testDoc
	s.Get(ctx, "swapRequests", "r1", &req)
	if req.Status != "accepted" {
		t.Errorf("status = %q, want accepted", req.Status)
	}
	var rec testDoc
	if err := s.Get(ctx, "users/u1/swaps", "rec1", &rec); err != nil {
		t.Errorf("record not written: %v", err)
	}
}

func TestMemStore_batchUpdateMissingDocFails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemStore()

	ops := []Op{
		Set("users/u1/items", "i1", testDoc{Name: "new"}),
		Update("users/u1/items", "ghost", map[string]any{"name": "x"}),
	}
	if err := s.BatchWrite(ctx, ops); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	var item testDoc
	if err := s.Get(ctx, "users/u1/items", "i1", &item); !errors.Is(err, ErrNotFound) {
		t.Errorf("set op applied despite failed batch")
	}
}

// A guarded Set follows the same contract as a guarded Update: the guard is
// checked, a mismatch fails the batch, and nothing is upserted.
func TestMemStore_batchGuardedSet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemStore()

	s.Set(ctx, "swapRequests", "r1", testDoc{Status: "accepted"})

	err := s.BatchWrite(ctx, []Op{
		Guarded(
			Set("swapRequests", "r1", testDoc{Status: "rejected"}),
			map[string]any{"status": "pending"},
		),
	})
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("got %v, want ErrPreconditionFailed", err)
	}
	var req testDoc
	s.Get(ctx, "swapRequests", "r1", &req)
	if req.Status != "accepted" {
		t.Errorf("status = %q, guarded set must not apply", req.Status)
	}

	err = s.BatchWrite(ctx, []Op{
		Guarded(
			Set("swapRequests", "ghost", testDoc{Status: "rejected"}),
			map[string]any{"status": "pending"},
		),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("guarded set of missing doc: got %v, want ErrNotFound", err)
	}
}

func TestLeaf(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"users/u1/items": "items",
		"swapRequests":   "swapRequests",
		"users/u1/swaps": "swaps",
	}
	for path, want := range cases {
		if got := Leaf(path); got != want {
			t.Errorf("Leaf(%q) = %q, want %q", path, got, want)
		}
	}
}
