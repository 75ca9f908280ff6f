package model

import "time"

// Listing statuses. Transitions are draft -> active -> sold | cancelled |
// expired; the last three are terminal.
const (
	StatusDraft     = "draft"
	StatusActive    = "active"
	StatusSold      = "sold"
	StatusCancelled = "cancelled"
	StatusExpired   = "expired"
)

var ValidCategories = map[string]bool{
	"electronics": true, "books": true, "furniture": true, "clothing": true,
	"sports": true, "kitchen": true, "decor": true, "other": true,
}

var ValidConditions = map[string]bool{
	"new": true, "like-new": true, "excellent": true, "good": true, "fair": true,
}

// Auction durations offered by the post form, in hours.
var ValidDurations = map[int]bool{24: true, 48: true, 72: true}

type Listing struct {
	ID             string     `json:"id"`
	SellerID       string     `json:"seller_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Category       string     `json:"category"`
	Condition      string     `json:"condition"`
	Location       string     `json:"location"`
	Tags           []string   `json:"tags"`
	Images         []string   `json:"images"`
	Price          int64      `json:"price"`
	BiddingEnabled bool       `json:"bidding_enabled"`
	DurationHours  int        `json:"duration_hours"`
	Status         string     `json:"status"`
	CurrentBid     *int64     `json:"current_bid,omitempty"`
	BidCount       int        `json:"bid_count"`
	LikeCount      int        `json:"like_count"`
	ViewCount      int        `json:"view_count"`
	SoldToID       *string    `json:"sold_to_id,omitempty"`
	SoldAt         *time.Time `json:"sold_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Terminal reports whether no further status transitions are allowed.
func (l *Listing) Terminal() bool {
	return l.Status == StatusSold || l.Status == StatusCancelled || l.Status == StatusExpired
}

// MinimumBid returns the lowest acceptable bid: the floor price when no bid
// exists yet, otherwise the current bid plus the configured increment.
func (l *Listing) MinimumBid(increment int64) int64 {
	if l.CurrentBid == nil {
		return l.Price
	}
	return *l.CurrentBid + increment
}

// Editable reports whether descriptive fields may still be changed.
func (l *Listing) Editable() bool {
	return l.Status == StatusDraft || l.Status == StatusActive
}

type CreateListingRequest struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Category       string   `json:"category"`
	Condition      string   `json:"condition"`
	Location       string   `json:"location"`
	Tags           []string `json:"tags"`
	Images         []string `json:"images"`
	Price          int64    `json:"price"`
	BiddingEnabled bool     `json:"bidding_enabled"`
	DurationHours  int      `json:"duration_hours"`
}

type UpdateListingRequest struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Category    *string   `json:"category,omitempty"`
	Condition   *string   `json:"condition,omitempty"`
	Location    *string   `json:"location,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Images      *[]string `json:"images,omitempty"`
	Price       *int64    `json:"price,omitempty"`
}

type SearchListingsRequest struct {
	Category   string `json:"category"`
	SearchText string `json:"search_text"`
	MinPrice   *int64 `json:"min_price,omitempty"`
	MaxPrice   *int64 `json:"max_price,omitempty"`
	SortBy     string `json:"sort_by"`
	Limit      int    `json:"limit"`
	Offset     int    `json:"offset"`
}

type PlaceBidRequest struct {
	Amount int64 `json:"amount"`
}

type LikeResult struct {
	LikeCount int  `json:"like_count"`
	Liked     bool `json:"liked"`
}

type ViewResult struct {
	ViewCount int `json:"view_count"`
}

// TrendingEntry is a listing id with its recent-view score.
type TrendingEntry struct {
	ListingID string  `json:"listing_id"`
	Score     float64 `json:"score"`
}
