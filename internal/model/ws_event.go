package model

import "encoding/json"

// WS event types pushed to clients.
const (
	EventListingNew     = "listing:new"
	EventNewBid         = "bid:new"
	EventOutbid         = "bid:outbid"
	EventListingSold    = "listing:sold"
	EventListingExpired = "listing:expired"
	EventNewMessage     = "message:new"
	EventTyping         = "typing"
)

type WSEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type BidEvent struct {
	ListingID string `json:"listing_id"`
	Title     string `json:"title"`
	Amount    int64  `json:"amount"`
	BidderID  string `json:"bidder_id"`
}

type SoldEvent struct {
	ListingID string `json:"listing_id"`
	Title     string `json:"title"`
	Amount    int64  `json:"amount"`
	BuyerID   string `json:"buyer_id"`
}

type TypingEvent struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Typing         bool   `json:"typing"`
}
