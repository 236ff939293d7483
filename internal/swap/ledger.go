package swap

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"swapstyle-service/internal/docstore"
	"swapstyle-service/internal/errs"
	"swapstyle-service/internal/model"
)

// Ledger owns the swap-request state machine. Every transition out of
// pending is a guarded batch write: the guard checks the global request copy
// is still pending at commit time, so of two racing accepts exactly one wins
// and the loser gets InvalidStateError.
type Ledger struct {
	docs docstore.Store
}

func NewLedger(docs docstore.Store) *Ledger {
	return &Ledger{docs: docs}
}

// Request creates a pending swap request. The global copy, the target's
// inbox copy, the requester's outbox copy, and the target's notification are
// committed as one batch.
func (l *Ledger) Request(ctx context.Context, fromUserID, fromItemID, toUserID, toItemID string) (*model.SwapRequest, error) {
	if fromUserID == toUserID {
		return nil, &errs.ValidationError{Reason: "cannot swap with yourself"}
	}
	if fromItemID == toItemID {
		return nil, &errs.ValidationError{Reason: "cannot swap an item with itself"}
	}

	fromEntry, err := l.indexEntry(ctx, fromItemID)
	if err != nil {
		return nil, err
	}
	toEntry, err := l.indexEntry(ctx, toItemID)
	if err != nil {
		return nil, err
	}
	if fromEntry.OwnerID != fromUserID {
		return nil, &errs.ValidationError{Reason: fmt.Sprintf("item %s is not owned by %s", fromItemID, fromUserID)}
	}
	if toEntry.OwnerID != toUserID {
		return nil, &errs.ValidationError{Reason: fmt.Sprintf("item %s is not owned by %s", toItemID, toUserID)}
	}

	req := model.SwapRequest{
		ID:           newID(),
		FromUserID:   fromUserID,
		FromUserName: fromEntry.OwnerName,
		FromItemID:   fromItemID,
		ToUserID:     toUserID,
		ToUserName:   toEntry.OwnerName,
		ToItemID:     toItemID,
		Status:       model.SwapPending,
		CreatedAt:    time.Now().UTC(),
	}

	ops := []docstore.Op{
		docstore.Set(model.SwapRequestsPath, req.ID, req),
		docstore.Set(model.ReceivedRequestsPath(toUserID), req.ID, req),
		docstore.Set(model.SentRequestsPath(fromUserID), req.ID, req),
		notifyOp(toUserID, model.Notification{
			Type:       "swap_request",
			FromUserID: fromUserID,
			ItemID:     toItemID,
			Message:    fmt.Sprintf("%s wants to swap for your item", fromEntry.OwnerName),
		}),
	}
	if err := l.docs.BatchWrite(ctx, ops); err != nil {
		return nil, &errs.StoreError{Op: "SwapLedger.Request", Err: err}
	}
	return &req, nil
}

// Accept transitions the request to accepted and performs the item exchange
// in the same batch: one SwapRecord under each party plus swappedWith set on
// both item records. All-or-nothing.
func (l *Ledger) Accept(ctx context.Context, requestID string) error {
	req, err := l.load(ctx, requestID)
	if err != nil {
		return err
	}

	fromName := l.displayName(ctx, req.FromUserID, req.FromUserName)
	toName := l.displayName(ctx, req.ToUserID, req.ToUserName)

	ops := l.transitionOps(req, model.SwapAccepted)
	ops = append(ops, exchangeOps(req.FromUserID, req.FromItemID, req.ToUserID, req.ToItemID, fromName, toName)...)
	ops = append(ops, notifyOp(req.FromUserID, model.Notification{
		Type:       "swap_accepted",
		FromUserID: req.ToUserID,
		ItemID:     req.ToItemID,
		Message:    fmt.Sprintf("%s accepted your swap", toName),
	}))

	return l.commitTransition(ctx, requestID, ops)
}

// Reject transitions the request to rejected without exchanging ownership.
// Each item's rejection history gains the counterpart item id.
func (l *Ledger) Reject(ctx context.Context, requestID string) error {
	req, err := l.load(ctx, requestID)
	if err != nil {
		return err
	}

	fromItem, err := l.loadItem(ctx, req.FromUserID, req.FromItemID)
	if err != nil {
		return err
	}
	toItem, err := l.loadItem(ctx, req.ToUserID, req.ToItemID)
	if err != nil {
		return err
	}

	toName := l.displayName(ctx, req.ToUserID, req.ToUserName)

	ops := l.transitionOps(req, model.SwapRejected)
	ops = append(ops,
		docstore.Update(model.UserItemsPath(req.FromUserID), req.FromItemID, map[string]any{
			"rejectedWith": append(fromItem.RejectedWith, req.ToItemID),
		}),
		docstore.Update(model.UserItemsPath(req.ToUserID), req.ToItemID, map[string]any{
			"rejectedWith": append(toItem.RejectedWith, req.FromItemID),
		}),
		notifyOp(req.FromUserID, model.Notification{
			Type:       "swap_rejected",
			FromUserID: req.ToUserID,
			ItemID:     req.ToItemID,
			Message:    fmt.Sprintf("%s declined your swap", toName),
		}),
	)

	return l.commitTransition(ctx, requestID, ops)
}

// ExchangeItems performs the cross-account exchange on its own: a SwapRecord
// under each party and swappedWith on both item records, one atomic batch.
// Accept folds these same ops into its transition batch.
func (l *Ledger) ExchangeItems(ctx context.Context, fromUserID, fromItemID, toUserID, toItemID, fromName, toName string) error {
	ops := exchangeOps(fromUserID, fromItemID, toUserID, toItemID, fromName, toName)
	if err := l.docs.BatchWrite(ctx, ops); err != nil {
		return &errs.StoreError{Op: "SwapLedger.ExchangeItems", Err: err}
	}
	return nil
}

// Received lists a user's inbox copies.
func (l *Ledger) Received(ctx context.Context, uid string) ([]model.SwapRequest, error) {
	return l.listRequests(ctx, model.ReceivedRequestsPath(uid))
}

// Sent lists a user's outbox copies.
func (l *Ledger) Sent(ctx context.Context, uid string) ([]model.SwapRequest, error) {
	return l.listRequests(ctx, model.SentRequestsPath(uid))
}

// History lists a user's completed-swap ledger entries.
func (l *Ledger) History(ctx context.Context, uid string) ([]model.SwapRecord, error) {
	docs, err := l.docs.Query(ctx, model.UserSwapsPath(uid))
	if err != nil {
		return nil, &errs.StoreError{Op: "SwapLedger.History", Err: err}
	}
	records := make([]model.SwapRecord, 0, len(docs))
	for _, d := range docs {
		var rec model.SwapRecord
		if err := d.Decode(&rec); err != nil {
			return nil, &errs.StoreError{Op: "SwapLedger.History", Err: err}
		}
		records = append(records, rec)
	}
	return records, nil
}

// Notifications lists a user's inbox notifications.
func (l *Ledger) Notifications(ctx context.Context, uid string) ([]model.Notification, error) {
	docs, err := l.docs.Query(ctx, model.UserNotificationsPath(uid))
	if err != nil {
		return nil, &errs.StoreError{Op: "SwapLedger.Notifications", Err: err}
	}
	out := make([]model.Notification, 0, len(docs))
	for _, d := range docs {
		var n model.Notification
		if err := d.Decode(&n); err != nil {
			return nil, &errs.StoreError{Op: "SwapLedger.Notifications", Err: err}
		}
		out = append(out, n)
	}
	return out, nil
}

func (l *Ledger) load(ctx context.Context, requestID string) (*model.SwapRequest, error) {
	var req model.SwapRequest
	err := l.docs.Get(ctx, model.SwapRequestsPath, requestID, &req)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, &errs.NotFoundError{Kind: "swap request", ID: requestID}
	}
	if err != nil {
		return nil, &errs.StoreError{Op: "SwapLedger.load", Err: err}
	}
	if req.Status.Terminal() {
		return nil, &errs.InvalidStateError{RequestID: requestID, Status: string(req.Status)}
	}
	return &req, nil
}

// transitionOps updates the status on all three request copies. Only the
// global copy carries the pending guard; it is the single source of truth the
// race is decided on.
func (l *Ledger) transitionOps(req *model.SwapRequest, to model.SwapStatus) []docstore.Op {
	fields := map[string]any{"status": string(to)}
	return []docstore.Op{
		docstore.Guarded(
			docstore.Update(model.SwapRequestsPath, req.ID, fields),
			map[string]any{"status": string(model.SwapPending)},
		),
		docstore.Update(model.ReceivedRequestsPath(req.ToUserID), req.ID, fields),
		docstore.Update(model.SentRequestsPath(req.FromUserID), req.ID, fields),
	}
}

func (l *Ledger) commitTransition(ctx context.Context, requestID string, ops []docstore.Op) error {
	err := l.docs.BatchWrite(ctx, ops)
	if errors.Is(err, docstore.ErrPreconditionFailed) {
		// lost the race: someone else already resolved it
		return &errs.InvalidStateError{RequestID: requestID, Status: l.currentStatus(ctx, requestID)}
	}
	if errors.Is(err, docstore.ErrNotFound) {
		return &errs.NotFoundError{Kind: "swap request", ID: requestID}
	}
	if err != nil {
		return &errs.StoreError{Op: "SwapLedger.commitTransition", Err: err}
	}
	return nil
}

func (l *Ledger) currentStatus(ctx context.Context, requestID string) string {
	var req model.SwapRequest
	if err := l.docs.Get(ctx, model.SwapRequestsPath, requestID, &req); err != nil {
		return "resolved"
	}
	return string(req.Status)
}

func (l *Ledger) listRequests(ctx context.Context, path string) ([]model.SwapRequest, error) {
	docs, err := l.docs.Query(ctx, path)
	if err != nil {
		return nil, &errs.StoreError{Op: "SwapLedger.listRequests", Err: err}
	}
	out := make([]model.SwapRequest, 0, len(docs))
	for _, d := range docs {
		var req model.SwapRequest
		if err := d.Decode(&req); err != nil {
			return nil, &errs.StoreError{Op: "SwapLedger.listRequests", Err: err}
		}
		out = append(out, req)
	}
	return out, nil
}

func (l *Ledger) indexEntry(ctx context.Context, itemID string) (*model.ItemIndexEntry, error) {
	var entry model.ItemIndexEntry
	err := l.docs.Get(ctx, model.ItemIndexPath, itemID, &entry)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, &errs.ValidationError{Reason: fmt.Sprintf("item %s cannot be resolved", itemID)}
	}
	if err != nil {
		return nil, &errs.StoreError{Op: "SwapLedger.indexEntry", Err: err}
	}
	return &entry, nil
}

func (l *Ledger) loadItem(ctx context.Context, ownerID, itemID string) (*model.Item, error) {
	var item model.Item
	err := l.docs.Get(ctx, model.UserItemsPath(ownerID), itemID, &item)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, &errs.NotFoundError{Kind: "item", ID: itemID}
	}
	if err != nil {
		return nil, &errs.StoreError{Op: "SwapLedger.loadItem", Err: err}
	}
	return &item, nil
}

// displayName prefers the current users doc over the name denormalized at
// request time.
func (l *Ledger) displayName(ctx context.Context, uid, fallback string) string {
	var u model.User
	if err := l.docs.Get(ctx, model.UsersPath, uid, &u); err == nil && u.DisplayName != "" {
		return u.DisplayName
	}
	return fallback
}

func exchangeOps(fromUserID, fromItemID, toUserID, toItemID, fromName, toName string) []docstore.Op {
	now := time.Now().UTC()
	fromRec := model.SwapRecord{
		ID:              newID(),
		ItemID:          toItemID,
		CounterpartID:   toUserID,
		CounterpartName: toName,
		SwappedAt:       now,
	}
	toRec := model.SwapRecord{
		ID:              newID(),
		ItemID:          fromItemID,
		CounterpartID:   fromUserID,
		CounterpartName: fromName,
		SwappedAt:       now,
	}
	return []docstore.Op{
		docstore.Set(model.UserSwapsPath(fromUserID), fromRec.ID, fromRec),
		docstore.Set(model.UserSwapsPath(toUserID), toRec.ID, toRec),
		docstore.Update(model.UserItemsPath(fromUserID), fromItemID, map[string]any{
			"swappedWith": toUserID,
		}),
		docstore.Update(model.UserItemsPath(toUserID), toItemID, map[string]any{
			"swappedWith": fromUserID,
		}),
	}
}

func notifyOp(uid string, n model.Notification) docstore.Op {
	n.ID = uuid.NewString()
	n.UserID = uid
	n.CreatedAt = time.Now().UTC()
	return docstore.Set(model.UserNotificationsPath(uid), n.ID, n)
}

func newID() string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return ulid.MustNew(ulid.Now(), entropy).String()
}
