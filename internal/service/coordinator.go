package service

import (
	"context"
	"time"

	"swapstyle-service/internal/blobstore"
	"swapstyle-service/internal/catalog"
	"swapstyle-service/internal/docstore"
	"swapstyle-service/internal/engagement"
	"swapstyle-service/internal/errs"
	"swapstyle-service/internal/model"
	"swapstyle-service/internal/swap"
)

// BrowseQuery narrows a catalog browse. RadiusKm > 0 requires Origin.
type BrowseQuery struct {
	Category    string
	Subcategory string
	RadiusKm    float64
	Origin      *model.Coordinate
}

// Coordinator is the session facade the UI layer talks to. One Coordinator
// per authenticated user; all dependencies are injected, nothing is global.
type Coordinator struct {
	userID  string
	docs    docstore.Store
	catalog *catalog.Store
	ledger  *swap.Ledger
	tracker *engagement.Tracker
}

func New(docs docstore.Store, blobs blobstore.Store, userID string) *Coordinator {
	cat := catalog.New(docs, blobs, userID)
	return &Coordinator{
		userID:  userID,
		docs:    docs,
		catalog: cat,
		ledger:  swap.NewLedger(docs),
		tracker: engagement.New(cat),
	}
}

func (c *Coordinator) UserID() string { return c.userID }

// Close cancels any running dwell timers. Call when the session ends.
func (c *Coordinator) Close() { c.tracker.Close() }

// RegisterProfile upserts the session user's profile document.
func (c *Coordinator) RegisterProfile(ctx context.Context, displayName string) error {
	if displayName == "" {
		return &errs.ValidationError{Field: "displayName", Reason: "required"}
	}
	u := model.User{ID: c.userID, DisplayName: displayName, CreatedAt: time.Now().UTC()}
	if err := c.docs.Set(ctx, model.UsersPath, c.userID, u); err != nil {
		return &errs.StoreError{Op: "Coordinator.RegisterProfile", Err: err}
	}
	return nil
}

// MyItems lists and caches the session user's listings.
func (c *Coordinator) MyItems(ctx context.Context) ([]model.Item, error) {
	return c.catalog.ListForUser(ctx, c.userID)
}

// ItemsForUser lists another user's listings.
func (c *Coordinator) ItemsForUser(ctx context.Context, uid string) ([]model.Item, error) {
	return c.catalog.ListForUser(ctx, uid)
}

// GetItem resolves an item by id alone, via the owner index.
func (c *Coordinator) GetItem(ctx context.Context, itemID string) (*model.Item, error) {
	entry, err := c.catalog.OwnerOf(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return c.catalog.Get(ctx, entry.OwnerID, itemID)
}

// Browse queries the catalog. A radius without a coordinate fails with
// LocationUnavailableError; retrying location resolution is the caller's
// job, not ours.
func (c *Coordinator) Browse(ctx context.Context, q BrowseQuery) ([]model.Item, error) {
	if q.RadiusKm > 0 {
		if q.Origin == nil {
			return nil, &errs.LocationUnavailableError{}
		}
		return c.catalog.ListByCategoryAndRadius(ctx, q.Category, q.Subcategory, q.RadiusKm, *q.Origin)
	}
	if q.Category == "" {
		return c.catalog.ListAll(ctx)
	}
	return c.catalog.ListByCategory(ctx, q.Category, q.Subcategory)
}

// Hottest returns the catalog ranked by engagement.
func (c *Coordinator) Hottest(ctx context.Context) ([]model.Item, error) {
	items, err := c.catalog.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.HottestFirst(items), nil
}

// CreateItem lists a new item owned by the session user.
func (c *Coordinator) CreateItem(ctx context.Context, in catalog.CreateItemInput) (*model.Item, error) {
	return c.catalog.Create(ctx, c.userID, c.profileName(ctx), in)
}

// UpdateItem overwrites one of the session user's listings.
func (c *Coordinator) UpdateItem(ctx context.Context, item model.Item) error {
	if item.OwnerID != c.userID {
		return &errs.AuthError{Reason: "cannot update another user's item"}
	}
	return c.catalog.Update(ctx, item)
}

// DeleteItem removes one of the session user's listings.
func (c *Coordinator) DeleteItem(ctx context.Context, itemID string) error {
	entry, err := c.catalog.OwnerOf(ctx, itemID)
	if err != nil {
		return err
	}
	if entry.OwnerID != c.userID {
		return &errs.AuthError{Reason: "cannot delete another user's item"}
	}
	return c.catalog.Delete(ctx, itemID, c.userID)
}

// RequestSwap offers one of the session user's items against a target item.
func (c *Coordinator) RequestSwap(ctx context.Context, requesterID, requesterItemID, targetUserID, targetItemID string) (*model.SwapRequest, error) {
	if requesterID != c.userID {
		return nil, &errs.AuthError{Reason: "requester is not the authenticated session user"}
	}
	return c.ledger.Request(ctx, requesterID, requesterItemID, targetUserID, targetItemID)
}

func (c *Coordinator) AcceptSwap(ctx context.Context, requestID string) error {
	return c.ledger.Accept(ctx, requestID)
}

func (c *Coordinator) RejectSwap(ctx context.Context, requestID string) error {
	return c.ledger.Reject(ctx, requestID)
}

// ReceivedRequests lists the session user's swap inbox.
func (c *Coordinator) ReceivedRequests(ctx context.Context) ([]model.SwapRequest, error) {
	return c.ledger.Received(ctx, c.userID)
}

// SentRequests lists the session user's swap outbox.
func (c *Coordinator) SentRequests(ctx context.Context) ([]model.SwapRequest, error) {
	return c.ledger.Sent(ctx, c.userID)
}

// SwapHistory lists the session user's completed swaps.
func (c *Coordinator) SwapHistory(ctx context.Context) ([]model.SwapRecord, error) {
	return c.ledger.History(ctx, c.userID)
}

// Notifications lists the session user's notifications.
func (c *Coordinator) Notifications(ctx context.Context) ([]model.Notification, error) {
	return c.ledger.Notifications(ctx, c.userID)
}

// StartViewing begins the dwell timer for an item detail view.
func (c *Coordinator) StartViewing(itemID string) { c.tracker.StartView(itemID) }

// StopViewing ends the dwell timer, discarding uncommitted dwell time.
func (c *Coordinator) StopViewing(itemID string) { c.tracker.StopView(itemID) }

// AddToCart records cart intent against the item's engagement counters.
func (c *Coordinator) AddToCart(itemID string) { c.tracker.AddToCart(itemID) }

func (c *Coordinator) profileName(ctx context.Context) string {
	var u model.User
	if err := c.docs.Get(ctx, model.UsersPath, c.userID, &u); err == nil && u.DisplayName != "" {
		return u.DisplayName
	}
	return c.userID
}
