package model

// Collection layout in the document store. Per-user data hangs off
// users/{uid}; the leaf names are what collection-group queries target.
const (
	UsersPath        = "users"
	ItemIndexPath    = "itemIndex"
	SwapRequestsPath = "swapRequests"
)

func UserItemsPath(uid string) string         { return "users/" + uid + "/items" }
func UserSwapsPath(uid string) string         { return "users/" + uid + "/swaps" }
func UserNotificationsPath(uid string) string { return "users/" + uid + "/notifications" }
func ReceivedRequestsPath(uid string) string  { return "users/" + uid + "/received_requests" }
func SentRequestsPath(uid string) string      { return "users/" + uid + "/sent_requests" }
