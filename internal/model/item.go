package model

import "time"

type Condition string

const (
	ConditionNew  Condition = "New"
	ConditionUsed Condition = "Used"
	ConditionGood Condition = "Good"
	ConditionPoor Condition = "Poor"
)

// Coordinate is a WGS84 lat/lng pair.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Item is a listed catalog entry. Items live under users/{ownerId}/items in
// the document store; coordinates must be populated by the caller before the
// item is inserted (a missing coordinate reads as (0,0) and skews distances).
type Item struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"ownerId"`
	OwnerName     string    `json:"ownerName"`
	Name          string    `json:"name"`
	Details       string    `json:"details"`
	OriginalPrice float64   `json:"originalPrice"`
	Value         float64   `json:"value"` // assessed value, swap-fairness comparison
	ImageURLs     []string  `json:"imageUrls"`
	Condition     Condition `json:"condition"`
	Category      string    `json:"category"`
	Subcategory   string    `json:"subcategory,omitempty"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	ClickCount    int       `json:"clickCount"`
	CartCount     int       `json:"cartCount"`
	SwappedWith   string    `json:"swappedWith,omitempty"`  // counterpart owner id after an accepted swap
	RejectedWith  []string  `json:"rejectedWith,omitempty"` // item ids this item declined to swap with
	CreatedAt     time.Time `json:"createdAt"`
}

func (i Item) Coord() Coordinate {
	return Coordinate{Latitude: i.Latitude, Longitude: i.Longitude}
}

// Engagement is the ranking score used to surface "hottest" items.
func (i Item) Engagement() int {
	return i.ClickCount + i.CartCount
}

// User is the profile document backing display-name denormalization.
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ItemIndexEntry is the denormalized owner lookup for an item id, so swap
// flows never need a full catalog scan to resolve ownership.
type ItemIndexEntry struct {
	ItemID    string `json:"itemId"`
	OwnerID   string `json:"ownerId"`
	OwnerName string `json:"ownerName"`
}
