package swap

import (
	"context"
	"errors"
	"sync"
	"testing"

	"swapstyle-service/internal/docstore"
	"swapstyle-service/internal/errs"
	"swapstyle-service/internal/model"
)

// seedMarketplace sets up two users who each own one item, ready to swap.
func seedMarketplace(t *testing.T) (*Ledger, *docstore.MemStore) {
	t.Helper()
	ctx := context.Background()
	docs := docstore.NewMemStore()

	docs.Set(ctx, model.UsersPath, "u1", model.User{ID: "u1", DisplayName: "Ada"})
	docs.Set(ctx, model.UsersPath, "u2", model.User{ID: "u2", DisplayName: "Ben"})

	docs.Set(ctx, model.UserItemsPath("u1"), "itemA", model.Item{
		ID: "itemA", OwnerID: "u1", OwnerName: "Ada", Name: "jacket",
		Value: 50, Condition: model.ConditionGood, Category: "Clothing",
	})
	docs.Set(ctx, model.UserItemsPath("u2"), "itemB", model.Item{
		ID: "itemB", OwnerID: "u2", OwnerName: "Ben", Name: "boots",
		Value: 55, Condition: model.ConditionGood, Category: "Shoes",
	})
	docs.Set(ctx, model.ItemIndexPath, "itemA", model.ItemIndexEntry{ItemID: "itemA", OwnerID: "u1", OwnerName: "Ada"})
	docs.Set(ctx, model.ItemIndexPath, "itemB", model.ItemIndexEntry{ItemID: "itemB", OwnerID: "u2", OwnerName: "Ben"})

	return NewLedger(docs), docs
}

func TestRequest_validation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, _ := seedMarketplace(t)

	cases := []struct {
		name                       string
		fromUID, fromID, toUID, to string
	}{
		{"same user", "u1", "itemA", "u1", "itemA"},
		{"same item", "u1", "itemA", "u2", "itemA"},
		{"unresolvable from item", "u1", "ghost", "u2", "itemB"},
		{"unresolvable target item", "u1", "itemA", "u2", "ghost"},
		{"item not owned by requester", "u2", "itemA", "u2", "itemB"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := l.Request(ctx, tc.fromUID, tc.fromID, tc.toUID, tc.to)
			var vErr *errs.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("got %v, want ValidationError", err)
			}
		})
	}
}

func TestRequest_writesAllThreeCopiesAndNotification(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, docs := seedMarketplace(t)

	req, err := l.Request(ctx, "u1", "itemA", "u2", "itemB")
	if err != nil {
		t.Fatal(err)
	}
	if req.Status != model.SwapPending {
		t.Fatalf("status = %s, want pending", req.Status)
	}
	if req.FromUserName != "Ada" || req.ToUserName != "Ben" {
		t.Fatalf("denormalized names wrong: %+v", req)
	}

	for _, path := range []string{
		model.SwapRequestsPath,
		model.ReceivedRequestsPath("u2"),
		model.SentRequestsPath("u1"),
	} {
		var cp model.SwapRequest
		if err := docs.Get(ctx, path, req.ID, &cp); err != nil {
			t.Errorf("copy missing at %s: %v", path, err)
		}
	}

	notes, err := l.Notifications(ctx, "u2")
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 1 || notes[0].Type != "swap_request" || notes[0].FromUserID != "u1" {
		t.Fatalf("notifications = %+v", notes)
	}
}

func TestAccept_exchangesItems(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, docs := seedMarketplace(t)

	req, err := l.Request(ctx, "u1", "itemA", "u2", "itemB")
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Accept(ctx, req.ID); err != nil {
		t.Fatal(err)
	}

	// status accepted on every copy
	for _, path := range []string{
		model.SwapRequestsPath,
		model.ReceivedRequestsPath("u2"),
		model.SentRequestsPath("u1"),
	} {
		var cp model.SwapRequest
		if err := docs.Get(ctx, path, req.ID, &cp); err != nil {
			t.Fatalf("copy missing at %s: %v", path, err)
		}
		if cp.Status != model.SwapAccepted {
			t.Errorf("%s: status = %s, want accepted", path, cp.Status)
		}
	}

	// ownership exchanged on both item records
	var itemA, itemB model.Item
	docs.Get(ctx, model.UserItemsPath("u1"), "itemA", &itemA)
	docs.Get(ctx, model.UserItemsPath("u2"), "itemB", &itemB)
	if itemA.SwappedWith != "u2" {
		t.Errorf("itemA.swappedWith = %q, want u2", itemA.SwappedWith)
	}
	if itemB.SwappedWith != "u1" {
		t.Errorf("itemB.swappedWith = %q, want u1", itemB.SwappedWith)
	}

	// one SwapRecord per party
	records := []struct {
		uid, wantItem, wantCounterpart string
	}{
		{"u1", "itemB", "u2"},
		{"u2", "itemA", "u1"},
	}
	for _, want := range records {
		recs, err := l.History(ctx, want.uid)
		if err != nil {
			t.Fatal(err)
		}
		if len(recs) != 1 {
			t.Fatalf("%s has %d swap records, want 1", want.uid, len(recs))
		}
		if recs[0].ItemID != want.wantItem || recs[0].CounterpartID != want.wantCounterpart {
			t.Errorf("%s record = %+v", want.uid, recs[0])
		}
	}

	// requester is told
	notes, _ := l.Notifications(ctx, "u1")
	if len(notes) != 1 || notes[0].Type != "swap_accepted" {
		t.Errorf("requester notifications = %+v", notes)
	}
}

func TestReject_recordsHistoryWithoutExchange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, docs := seedMarketplace(t)

	req, err := l.Request(ctx, "u1", "itemA", "u2", "itemB")
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Reject(ctx, req.ID); err != nil {
		t.Fatal(err)
	}

	var global model.SwapRequest
	docs.Get(ctx, model.SwapRequestsPath, req.ID, &global)
	if global.Status != model.SwapRejected {
		t.Fatalf("status = %s, want rejected", global.Status)
	}

	var itemA, itemB model.Item
	docs.Get(ctx, model.UserItemsPath("u1"), "itemA", &itemA)
	docs.Get(ctx, model.UserItemsPath("u2"), "itemB", &itemB)

	if itemA.SwappedWith != "" || itemB.SwappedWith != "" {
		t.Errorf("rejected swap must not exchange ownership: %q / %q", itemA.SwappedWith, itemB.SwappedWith)
	}
	if len(itemA.RejectedWith) != 1 || itemA.RejectedWith[0] != "itemB" {
		t.Errorf("itemA.rejectedWith = %v", itemA.RejectedWith)
	}
	if len(itemB.RejectedWith) != 1 || itemB.RejectedWith[0] != "itemA" {
		t.Errorf("itemB.rejectedWith = %v", itemB.RejectedWith)
	}

	// no swap records on either side
	for _, uid := range []string{"u1", "u2"} {
		recs, _ := l.History(ctx, uid)
		if len(recs) != 0 {
			t.Errorf("%s has swap records after a rejection", uid)
		}
	}
}

func TestTransitionsAreTerminal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, _ := seedMarketplace(t)

	req, err := l.Request(ctx, "u1", "itemA", "u2", "itemB")
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Accept(ctx, req.ID); err != nil {
		t.Fatal(err)
	}

	var stateErr *errs.InvalidStateError
	if err := l.Accept(ctx, req.ID); !errors.As(err, &stateErr) {
		t.Errorf("second accept: got %v, want InvalidStateError", err)
	}
	if err := l.Reject(ctx, req.ID); !errors.As(err, &stateErr) {
		t.Errorf("reject after accept: got %v, want InvalidStateError", err)
	}
}

func TestAccept_missingRequest(t *testing.T) {
	t.Parallel()
	l, _ := seedMarketplace(t)

	var nfErr *errs.NotFoundError
	if err := l.Accept(context.Background(), "nope"); !errors.As(err, &nfErr) {
		t.Errorf("got %v, want NotFoundError", err)
	}
}

func TestAccept_concurrentRaceHasOneWinner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// run the race repeatedly; exactly one accept must win every time
	for i := 0; i < 25; i++ {
		l, _ := seedMarketplace(t)
		req, err := l.Request(ctx, "u1", "itemA", "u2", "itemB")
		if err != nil {
			t.Fatal(err)
		}

		var wg sync.WaitGroup
		results := make([]error, 2)
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func(slot int) {
				defer wg.Done()
				results[slot] = l.Accept(ctx, req.ID)
			}(j)
		}
		wg.Wait()

		var wins, losses int
		for _, err := range results {
			if err == nil {
				wins++
				continue
			}
			var stateErr *errs.InvalidStateError
			if errors.As(err, &stateErr) {
				losses++
				continue
			}
			t.Fatalf("unexpected error: %v", err)
		}
		if wins != 1 || losses != 1 {
			t.Fatalf("round %d: wins=%d losses=%d, want exactly one of each", i, wins, losses)
		}
	}
}

func TestExchangeItems_standalone(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, docs := seedMarketplace(t)

	err := l.ExchangeItems(ctx, "u1", "itemA", "u2", "itemB", "Ada", "Ben")
	if err != nil {
		t.Fatal(err)
	}

	var itemA, itemB model.Item
	docs.Get(ctx, model.UserItemsPath("u1"), "itemA", &itemA)
	docs.Get(ctx, model.UserItemsPath("u2"), "itemB", &itemB)
	if itemA.SwappedWith != "u2" || itemB.SwappedWith != "u1" {
		t.Errorf("exchange incomplete: %q / %q", itemA.SwappedWith, itemB.SwappedWith)
	}

	recsA, _ := l.History(ctx, "u1")
	recsB, _ := l.History(ctx, "u2")
	if len(recsA) != 1 || len(recsB) != 1 {
		t.Fatalf("records = %d/%d, want 1/1", len(recsA), len(recsB))
	}
	if recsA[0].CounterpartName != "Ben" || recsB[0].CounterpartName != "Ada" {
		t.Errorf("counterpart names: %+v / %+v", recsA[0], recsB[0])
	}
}
