package model

import "time"

type Bid struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listing_id"`
	BidderID  string    `json:"bidder_id"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}
