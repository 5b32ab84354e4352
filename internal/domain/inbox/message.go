package inbox

import "time"

// Role says which side of a conversation the local user is on.
type Role string

const (
	// RoleOwner marks conversations about items the local user owns.
	RoleOwner Role = "OWNER"
	// RoleRenter marks conversations where the local user is the renter.
	RoleRenter Role = "RENTER"
)

// Kind distinguishes plain chat text from administrative offer events.
// Administrative kinds are rendered as action prompts by consumers but
// share the ordering and unread rules of regular messages.
type Kind string

const (
	KindText          Kind = "TEXT"
	KindOfferMade     Kind = "OFFER_MADE"
	KindOfferAccepted Kind = "OFFER_ACCEPTED"
)

// ConversationKey identifies one thread: one item, one counterparty,
// seen from one side. A key maps to exactly one group within its view.
type ConversationKey struct {
	ItemID       string `json:"itemid"`
	Counterparty string `json:"counterparty"`
	Role         Role   `json:"role"`
}

// Message is one chat event. Messages are immutable once accepted.
// The relay issues no message ID, so (OccurredAt, Body) is the
// identity used for deduplication.
type Message struct {
	Sender     string    `json:"sender"`
	Body       string    `json:"body"`
	ItemID     string    `json:"itemid"`
	OwnerID    string    `json:"ownerid"`
	RenterID   string    `json:"renterid"`
	OccurredAt time.Time `json:"occurred_at"`
	Kind       Kind      `json:"kind"`
}
