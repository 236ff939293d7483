package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"swapstyle-service/internal/blobstore"
	"swapstyle-service/internal/docstore"
	"swapstyle-service/internal/errs"
	"swapstyle-service/internal/geo"
	"swapstyle-service/internal/model"
)

// ImageUpload is one image to persist before an item is created.
type ImageUpload struct {
	Name string
	Data []byte
}

// CreateItemInput carries the caller-supplied fields for a new listing.
type CreateItemInput struct {
	Name          string
	Details       string
	OriginalPrice float64
	Value         float64
	Condition     model.Condition
	Category      string
	Subcategory   string
	Latitude      float64
	Longitude     float64
	Images        []ImageUpload
}

// Store is the catalog cache and query surface over the document store.
// The cached own-items list tracks the session user's latest successful
// mutating call; callers serialize access to one Store instance.
type Store struct {
	docs  docstore.Store
	blobs blobstore.Store

	sessionUserID string
	items         []model.Item // session user's listings
}

func New(docs docstore.Store, blobs blobstore.Store, sessionUserID string) *Store {
	return &Store{docs: docs, blobs: blobs, sessionUserID: sessionUserID}
}

// CachedItems returns the session user's cached listings.
func (s *Store) CachedItems() []model.Item { return s.items }

// ListForUser fetches every item owned by uid. When uid is the session user
// the own-items cache is replaced with the result.
func (s *Store) ListForUser(ctx context.Context, uid string) ([]model.Item, error) {
	docs, err := s.docs.Query(ctx, model.UserItemsPath(uid))
	if err != nil {
		return nil, &errs.StoreError{Op: "CatalogStore.ListForUser", Err: err}
	}
	items, err := decodeItems(docs)
	if err != nil {
		return nil, err
	}
	if uid == s.sessionUserID {
		s.items = items
	}
	return items, nil
}

// ListAll fetches the whole catalog across all users. Prefer the filtered
// variants when a category or radius is known.
func (s *Store) ListAll(ctx context.Context) ([]model.Item, error) {
	docs, err := s.docs.CollectionGroup(ctx, "items")
	if err != nil {
		return nil, &errs.StoreError{Op: "CatalogStore.ListAll", Err: err}
	}
	return decodeItems(docs)
}

// ListByCategory filters the catalog by category and, when non-empty,
// subcategory.
func (s *Store) ListByCategory(ctx context.Context, category, subcategory string) ([]model.Item, error) {
	preds := []docstore.Predicate{docstore.Where("category", category)}
	if subcategory != "" {
		preds = append(preds, docstore.Where("subcategory", subcategory))
	}
	docs, err := s.docs.CollectionGroup(ctx, "items", preds...)
	if err != nil {
		return nil, &errs.StoreError{Op: "CatalogStore.ListByCategory", Err: err}
	}
	return decodeItems(docs)
}

// ListByCategoryAndRadius combines the category filter with a proximity
// filter around origin; radiusKm <= 0 means no radius filter, and a radius
// also proximity-sorts the result.
func (s *Store) ListByCategoryAndRadius(ctx context.Context, category, subcategory string, radiusKm float64, origin model.Coordinate) ([]model.Item, error) {
	var (
		items []model.Item
		err   error
	)
	if category == "" {
		items, err = s.ListAll(ctx)
	} else {
		items, err = s.ListByCategory(ctx, category, subcategory)
	}
	if err != nil {
		return nil, err
	}
	if radiusKm <= 0 {
		return items, nil
	}
	items = geo.FilterWithinRadius(items, origin, radiusKm)
	return geo.SortByProximity(items, origin), nil
}

// Get loads one item.
func (s *Store) Get(ctx context.Context, ownerID, itemID string) (*model.Item, error) {
	var item model.Item
	err := s.docs.Get(ctx, model.UserItemsPath(ownerID), itemID, &item)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, &errs.NotFoundError{Kind: "item", ID: itemID}
	}
	if err != nil {
		return nil, &errs.StoreError{Op: "CatalogStore.Get", Err: err}
	}
	return &item, nil
}

// Create validates the listing, uploads every image, and writes the item
// document together with its owner-lookup index entry in one batch. No item
// becomes visible unless all images persisted.
func (s *Store) Create(ctx context.Context, ownerID, ownerName string, in CreateItemInput) (*model.Item, error) {
	if err := validateListing(in.Name, in.Category, in.Subcategory, in.Value, in.OriginalPrice); err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(in.Images))
	for _, img := range in.Images {
		url, err := s.blobs.Put(ctx, img.Name, img.Data)
		if err != nil {
			return nil, &errs.UploadError{Filename: img.Name, Err: err}
		}
		urls = append(urls, url)
	}

	item := model.Item{
		ID:            newID(),
		OwnerID:       ownerID,
		OwnerName:     ownerName,
		Name:          in.Name,
		Details:       in.Details,
		OriginalPrice: in.OriginalPrice,
		Value:         in.Value,
		ImageURLs:     urls,
		Condition:     in.Condition,
		Category:      in.Category,
		Subcategory:   in.Subcategory,
		Latitude:      in.Latitude,
		Longitude:     in.Longitude,
		CreatedAt:     time.Now().UTC(),
	}

	ops := []docstore.Op{
		docstore.Set(model.UserItemsPath(ownerID), item.ID, item),
		docstore.Set(model.ItemIndexPath, item.ID, model.ItemIndexEntry{
			ItemID:    item.ID,
			OwnerID:   ownerID,
			OwnerName: ownerName,
		}),
	}
	if err := s.docs.BatchWrite(ctx, ops); err != nil {
		return nil, &errs.StoreError{Op: "CatalogStore.Create", Err: err}
	}

	if ownerID == s.sessionUserID {
		s.items = append(s.items, item)
	}
	return &item, nil
}

// validateListing holds the item invariants shared by Create and Update.
func validateListing(name, category, subcategory string, value, originalPrice float64) error {
	if name == "" {
		return &errs.ValidationError{Field: "name", Reason: "required"}
	}
	if category == "" {
		return &errs.ValidationError{Field: "category", Reason: "required"}
	}
	if !model.ValidCategory(category, subcategory) {
		return &errs.ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q/%q", category, subcategory)}
	}
	if value < 0 {
		return &errs.ValidationError{Field: "value", Reason: "must be non-negative"}
	}
	if originalPrice < 0 {
		return &errs.ValidationError{Field: "originalPrice", Reason: "must be non-negative"}
	}
	return nil
}

// Update overwrites the full item record. The same invariants as Create
// apply; the current server-side state is read first, and a missing record
// fails with NotFoundError.
func (s *Store) Update(ctx context.Context, item model.Item) error {
	if err := validateListing(item.Name, item.Category, item.Subcategory, item.Value, item.OriginalPrice); err != nil {
		return err
	}
	path := model.UserItemsPath(item.OwnerID)
	var current model.Item
	err := s.docs.Get(ctx, path, item.ID, &current)
	if errors.Is(err, docstore.ErrNotFound) {
		return &errs.NotFoundError{Kind: "item", ID: item.ID}
	}
	if err != nil {
		return &errs.StoreError{Op: "CatalogStore.Update", Err: err}
	}

	if err := s.docs.Set(ctx, path, item.ID, item); err != nil {
		return &errs.StoreError{Op: "CatalogStore.Update", Err: err}
	}

	if item.OwnerID == s.sessionUserID {
		for i := range s.items {
			if s.items[i].ID == item.ID {
				s.items[i] = item
				break
			}
		}
	}
	return nil
}

// Delete removes the item and its index entry, and evicts it from the cache.
func (s *Store) Delete(ctx context.Context, itemID, ownerID string) error {
	ops := []docstore.Op{
		docstore.Delete(model.UserItemsPath(ownerID), itemID),
		docstore.Delete(model.ItemIndexPath, itemID),
	}
	if err := s.docs.BatchWrite(ctx, ops); err != nil {
		return &errs.StoreError{Op: "CatalogStore.Delete", Err: err}
	}

	if ownerID == s.sessionUserID {
		for i := range s.items {
			if s.items[i].ID == itemID {
				s.items = append(s.items[:i], s.items[i+1:]...)
				break
			}
		}
	}
	return nil
}

// RecordClick bumps the item's view-click counter. Best-effort: a store
// failure is logged and swallowed so browsing never blocks on it.
func (s *Store) RecordClick(ctx context.Context, itemID string) {
	s.bumpCounter(ctx, itemID, "clickCount")
}

// RecordAddToCart bumps the item's add-to-cart counter. Best-effort.
func (s *Store) RecordAddToCart(ctx context.Context, itemID string) {
	s.bumpCounter(ctx, itemID, "cartCount")
}

func (s *Store) bumpCounter(ctx context.Context, itemID, field string) {
	entry, err := s.ownerOf(ctx, itemID)
	if err != nil {
		log.Printf("catalog: bump %s for %s: %v", field, itemID, err)
		return
	}
	if err := s.docs.Increment(ctx, model.UserItemsPath(entry.OwnerID), itemID, field, 1); err != nil {
		log.Printf("catalog: bump %s for %s: %v", field, itemID, err)
	}
}

// OwnerOf resolves an item's owner through the denormalized index.
func (s *Store) OwnerOf(ctx context.Context, itemID string) (*model.ItemIndexEntry, error) {
	return s.ownerOf(ctx, itemID)
}

func (s *Store) ownerOf(ctx context.Context, itemID string) (*model.ItemIndexEntry, error) {
	var entry model.ItemIndexEntry
	err := s.docs.Get(ctx, model.ItemIndexPath, itemID, &entry)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, &errs.NotFoundError{Kind: "item", ID: itemID}
	}
	if err != nil {
		return nil, &errs.StoreError{Op: "CatalogStore.ownerOf", Err: err}
	}
	return &entry, nil
}

// HottestFirst orders items by clickCount+cartCount descending. The sort is
// stable, so ties keep creation order.
func HottestFirst(items []model.Item) []model.Item {
	out := make([]model.Item, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Engagement() > out[j].Engagement()
	})
	return out
}

func decodeItems(docs []docstore.Doc) ([]model.Item, error) {
	items := make([]model.Item, 0, len(docs))
	for _, d := range docs {
		var it model.Item
		if err := d.Decode(&it); err != nil {
			return nil, &errs.StoreError{Op: "CatalogStore.decode", Err: err}
		}
		items = append(items, it)
	}
	// ULIDs are time-ordered, so sorting by id is creation order.
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func newID() string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return ulid.MustNew(ulid.Now(), entropy).String()
}
