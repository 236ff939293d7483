package model

import "time"

type SwapStatus string

const (
	SwapPending  SwapStatus = "pending"
	SwapAccepted SwapStatus = "accepted"
	SwapRejected SwapStatus = "rejected"
)

// Terminal reports whether no further transition is permitted.
func (s SwapStatus) Terminal() bool {
	return s == SwapAccepted || s == SwapRejected
}

// SwapRequest is the offer one user makes against another user's item.
// A copy lives in the global swapRequests collection plus the target's
// received_requests and the requester's sent_requests; all three carry the
// same id and status. Requests are never deleted, only transitioned.
type SwapRequest struct {
	ID           string     `json:"id"`
	FromUserID   string     `json:"fromUserId"`
	FromUserName string     `json:"fromUserName"`
	FromItemID   string     `json:"fromItemId"`
	ToUserID     string     `json:"toUserId"`
	ToUserName   string     `json:"toUserName"`
	ToItemID     string     `json:"toItemId"`
	Status       SwapStatus `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// SwapRecord is one party's ledger entry for a completed exchange.
// Immutable once written.
type SwapRecord struct {
	ID              string    `json:"id"`
	ItemID          string    `json:"itemId"` // the item this party received
	CounterpartID   string    `json:"counterpartId"`
	CounterpartName string    `json:"counterpartName"`
	SwappedAt       time.Time `json:"swappedAt"`
}

// Notification is an inbox entry emitted alongside swap actions.
type Notification struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Type       string    `json:"type"` // swap_request, swap_accepted, swap_rejected
	FromUserID string    `json:"fromUserId"`
	ItemID     string    `json:"itemId"`
	Message    string    `json:"message"`
	Read       bool      `json:"read"`
	CreatedAt  time.Time `json:"createdAt"`
}
