package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/SageGlitchy/CMart/internal/config"
	"github.com/SageGlitchy/CMart/internal/model"
	"github.com/SageGlitchy/CMart/internal/repository"

	"github.com/oklog/ulid/v2"
)

// ListingStore is the persistence surface the lifecycle manager needs.
// Satisfied by repository.ListingRepository.
type ListingStore interface {
	Create(ctx context.Context, l *model.Listing) (*model.Listing, error)
	GetByID(ctx context.Context, id string) (*model.Listing, error)
	GetByIDs(ctx context.Context, ids []string) ([]model.Listing, error)
	Update(ctx context.Context, l *model.Listing) (*model.Listing, error)
	Publish(ctx context.Context, id string, expiresAt *time.Time) (*model.Listing, error)
	Search(ctx context.Context, req *model.SearchListingsRequest) ([]model.Listing, int, error)
	GetBySellerID(ctx context.Context, sellerID, status string) ([]model.Listing, error)
	MarkSold(ctx context.Context, listingID, buyerID string, finalPrice int64) (*model.Listing, error)
	Cancel(ctx context.Context, listingID, sellerID string) (*model.Listing, error)
	ToggleLike(ctx context.Context, listingID, userID string) (*model.LikeResult, error)
	RecordView(ctx context.Context, listingID string) (int, error)
	ExpireDue(ctx context.Context, now time.Time) ([]model.Listing, error)
}

// BidStore is satisfied by repository.BidRepository.
type BidStore interface {
	Insert(ctx context.Context, bid *model.Bid, increment int64) (*model.Bid, error)
	ListByListing(ctx context.Context, listingID string) ([]model.Bid, error)
	Highest(ctx context.Context, listingID string) (*model.Bid, error)
}

// Notifier delivers best-effort user notifications. Failures never affect
// the state mutation that produced them.
type Notifier interface {
	SendToUser(userID string, event *model.WSEvent)
}

// Announcer publishes new listings to a community channel, best-effort.
type Announcer interface {
	AnnounceListing(l *model.Listing)
}

// Broadcaster pushes an event to every connected client. Backs the live
// feed on the browse page.
type Broadcaster interface {
	Broadcast(event *model.WSEvent)
}

type ListingService struct {
	listings    ListingStore
	bids        BidStore
	cfg         config.MarketConfig
	notifier    Notifier
	announcer   Announcer
	broadcaster Broadcaster
	trending    *TrendingCache
	now         func() time.Time
}

func NewListingService(listings ListingStore, bids BidStore, cfg config.MarketConfig, notifier Notifier) *ListingService {
	return &ListingService{
		listings: listings,
		bids:     bids,
		cfg:      cfg,
		notifier: notifier,
		now:      time.Now,
	}
}

// WithAnnouncer wires the optional community webhook.
func (s *ListingService) WithAnnouncer(a Announcer) *ListingService {
	s.announcer = a
	return s
}

// WithBroadcaster wires the WS hub's fan-out for the live listing feed.
func (s *ListingService) WithBroadcaster(b Broadcaster) *ListingService {
	s.broadcaster = b
	return s
}

// WithTrending wires the optional Redis trending cache.
func (s *ListingService) WithTrending(t *TrendingCache) *ListingService {
	s.trending = t
	return s
}

func newID() string {
	return ulid.Make().String()
}

// CreateListing stores a draft. Drafts may be incomplete; only the fields
// that are present get checked. The full contract is enforced at publish.
func (s *ListingService) CreateListing(ctx context.Context, sellerID string, req *model.CreateListingRequest) (*model.Listing, error) {
	verr := &ValidationError{}
	if req.Price <= 0 {
		verr.add("price", "price must be a positive number")
	}
	if req.Category != "" && !model.ValidCategories[req.Category] {
		verr.add("category", "unknown category")
	}
	if req.Condition != "" && !model.ValidConditions[req.Condition] {
		verr.add("condition", "unknown condition")
	}
	if len(req.Images) > s.cfg.MaxImages {
		verr.add("images", "too many images")
	}
	duration := req.DurationHours
	if req.BiddingEnabled {
		if duration == 0 {
			duration = 48
		}
		if !model.ValidDurations[duration] {
			verr.add("duration_hours", "duration must be 24, 48, or 72 hours")
		}
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}

	listing := &model.Listing{
		ID:             newID(),
		SellerID:       sellerID,
		Title:          req.Title,
		Description:    req.Description,
		Category:       req.Category,
		Condition:      req.Condition,
		Location:       req.Location,
		Tags:           req.Tags,
		Images:         req.Images,
		Price:          req.Price,
		BiddingEnabled: req.BiddingEnabled,
		DurationHours:  duration,
	}
	if listing.Tags == nil {
		listing.Tags = []string{}
	}
	if listing.Images == nil {
		listing.Images = []string{}
	}
	return s.listings.Create(ctx, listing)
}

// UpdateListing changes descriptive fields; allowed for the seller while
// the listing is draft or active.
func (s *ListingService) UpdateListing(ctx context.Context, listingID, sellerID string, req *model.UpdateListingRequest) (*model.Listing, error) {
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, ErrListingNotFound
	}
	if listing.SellerID != sellerID {
		return nil, ErrNotOwner
	}
	if !listing.Editable() {
		return nil, ErrInvalidState
	}

	if req.Title != nil {
		listing.Title = *req.Title
	}
	if req.Description != nil {
		listing.Description = *req.Description
	}
	if req.Category != nil {
		listing.Category = *req.Category
	}
	if req.Condition != nil {
		listing.Condition = *req.Condition
	}
	if req.Location != nil {
		listing.Location = *req.Location
	}
	if req.Tags != nil {
		listing.Tags = *req.Tags
	}
	if req.Images != nil {
		listing.Images = *req.Images
	}
	if req.Price != nil {
		listing.Price = *req.Price
	}

	verr := &ValidationError{}
	if listing.Price <= 0 {
		verr.add("price", "price must be a positive number")
	}
	if listing.Category != "" && !model.ValidCategories[listing.Category] {
		verr.add("category", "unknown category")
	}
	if listing.Condition != "" && !model.ValidConditions[listing.Condition] {
		verr.add("condition", "unknown condition")
	}
	if len(listing.Images) > s.cfg.MaxImages {
		verr.add("images", "too many images")
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}

	updated, err := s.listings.Update(ctx, listing)
	if err != nil {
		return nil, ErrInvalidState
	}
	return updated, nil
}

// PublishListing flips draft -> active after exhaustive validation: every
// missing or invalid field is reported at once, not just the first.
func (s *ListingService) PublishListing(ctx context.Context, listingID, sellerID string) (*model.Listing, error) {
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, ErrListingNotFound
	}
	if listing.SellerID != sellerID {
		return nil, ErrNotOwner
	}
	if listing.Status != model.StatusDraft {
		return nil, ErrInvalidState
	}

	if verr := s.validateForPublish(listing); verr != nil {
		return nil, verr
	}

	var expiresAt *time.Time
	if listing.BiddingEnabled {
		t := s.now().Add(time.Duration(listing.DurationHours) * time.Hour)
		expiresAt = &t
	}

	published, err := s.listings.Publish(ctx, listingID, expiresAt)
	if err != nil {
		return nil, ErrInvalidState
	}

	if s.announcer != nil {
		go s.announcer.AnnounceListing(published)
	}
	if s.broadcaster != nil {
		if data, err := json.Marshal(published); err == nil {
			s.broadcaster.Broadcast(&model.WSEvent{Type: model.EventListingNew, Data: data})
		}
	}
	return published, nil
}

func (s *ListingService) validateForPublish(l *model.Listing) *ValidationError {
	verr := &ValidationError{}
	if l.Title == "" {
		verr.add("title", "title is required")
	}
	if !model.ValidCategories[l.Category] {
		verr.add("category", "category is required")
	}
	if l.Price <= 0 {
		verr.add("price", "price must be a positive number")
	}
	if len(l.Description) < s.cfg.MinDescriptionLen {
		verr.add("description", fmt.Sprintf("description must be at least %d characters", s.cfg.MinDescriptionLen))
	}
	if len(l.Images) == 0 {
		verr.add("images", "at least one image is required")
	} else if len(l.Images) > s.cfg.MaxImages {
		verr.add("images", "too many images")
	}
	if len(verr.Fields) == 0 {
		return nil
	}
	return verr
}

// PlaceBid runs the ordered precondition checks, then appends the bid
// atomically with the listing's current-bid view. Preconditions are
// re-verified under the row lock, so a race falls back to the same typed
// errors computed from fresh state.
func (s *ListingService) PlaceBid(ctx context.Context, listingID, bidderID string, amount int64) (*model.Bid, error) {
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, ErrListingNotFound
	}

	if err := s.checkBidPreconditions(listing, bidderID, amount); err != nil {
		return nil, err
	}

	bid := &model.Bid{
		ID:        newID(),
		ListingID: listingID,
		BidderID:  bidderID,
		Amount:    amount,
	}

	prev, err := s.bids.Insert(ctx, bid, s.cfg.BidIncrement)
	if err != nil {
		if errors.Is(err, repository.ErrBidConflict) {
			// Lost a race; report against the committed state.
			fresh, gerr := s.listings.GetByID(ctx, listingID)
			if gerr != nil {
				return nil, ErrListingNotFound
			}
			if perr := s.checkBidPreconditions(fresh, bidderID, amount); perr != nil {
				return nil, perr
			}
			return nil, &BidTooLowError{Required: fresh.MinimumBid(s.cfg.BidIncrement)}
		}
		return nil, err
	}

	s.notifyBid(listing, bid, prev)
	return bid, nil
}

func (s *ListingService) checkBidPreconditions(l *model.Listing, bidderID string, amount int64) error {
	if l.Status != model.StatusActive || !l.BiddingEnabled {
		return ErrInvalidState
	}
	if bidderID == l.SellerID {
		return ErrSelfBid
	}
	if l.ExpiresAt != nil && !s.now().Before(*l.ExpiresAt) {
		return ErrAuctionClosed
	}
	if min := l.MinimumBid(s.cfg.BidIncrement); amount < min {
		return &BidTooLowError{Required: min}
	}
	return nil
}

func (s *ListingService) notifyBid(l *model.Listing, bid *model.Bid, prev *model.Bid) {
	if s.notifier == nil {
		return
	}
	data, _ := json.Marshal(model.BidEvent{
		ListingID: l.ID,
		Title:     l.Title,
		Amount:    bid.Amount,
		BidderID:  bid.BidderID,
	})
	s.notifier.SendToUser(l.SellerID, &model.WSEvent{Type: model.EventNewBid, Data: data})
	if prev != nil && prev.BidderID != bid.BidderID {
		s.notifier.SendToUser(prev.BidderID, &model.WSEvent{Type: model.EventOutbid, Data: data})
	}
}

// AcceptOffer finishes an active listing. Fixed-price path: actingID is the
// buyer paying the ask. Bidding path: actingID is the seller accepting the
// current highest bid.
func (s *ListingService) AcceptOffer(ctx context.Context, listingID, actingID string) (*model.Listing, error) {
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, ErrListingNotFound
	}
	if listing.Status != model.StatusActive {
		return nil, ErrInvalidState
	}

	var buyerID string
	var finalPrice int64
	if listing.BiddingEnabled {
		if actingID != listing.SellerID {
			return nil, ErrNotOwner
		}
		highest, err := s.bids.Highest(ctx, listingID)
		if err != nil {
			return nil, err
		}
		if highest == nil {
			return nil, ErrNoBids
		}
		buyerID = highest.BidderID
		finalPrice = highest.Amount
	} else {
		if actingID == listing.SellerID {
			return nil, ErrSelfPurchase
		}
		buyerID = actingID
		finalPrice = listing.Price
	}

	sold, err := s.listings.MarkSold(ctx, listingID, buyerID, finalPrice)
	if err != nil {
		return nil, ErrInvalidState
	}

	if s.notifier != nil {
		data, _ := json.Marshal(model.SoldEvent{
			ListingID: sold.ID,
			Title:     sold.Title,
			Amount:    finalPrice,
			BuyerID:   buyerID,
		})
		s.notifier.SendToUser(buyerID, &model.WSEvent{Type: model.EventListingSold, Data: data})
		s.notifier.SendToUser(sold.SellerID, &model.WSEvent{Type: model.EventListingSold, Data: data})
	}
	return sold, nil
}

// CancelListing moves active -> cancelled, seller only.
func (s *ListingService) CancelListing(ctx context.Context, listingID, actingID string) (*model.Listing, error) {
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, ErrListingNotFound
	}
	if listing.SellerID != actingID {
		return nil, ErrNotOwner
	}
	if listing.Status != model.StatusActive {
		return nil, ErrInvalidState
	}

	cancelled, err := s.listings.Cancel(ctx, listingID, actingID)
	if err != nil {
		return nil, ErrInvalidState
	}
	return cancelled, nil
}

// ToggleLike flips the caller's like: first call likes, second unlikes.
func (s *ListingService) ToggleLike(ctx context.Context, listingID, userID string) (*model.LikeResult, error) {
	if _, err := s.listings.GetByID(ctx, listingID); err != nil {
		return nil, ErrListingNotFound
	}
	return s.listings.ToggleLike(ctx, listingID, userID)
}

// RecordView counts an impression; every call increments.
func (s *ListingService) RecordView(ctx context.Context, listingID, viewerID string) (*model.ViewResult, error) {
	count, err := s.listings.RecordView(ctx, listingID)
	if err != nil {
		return nil, ErrListingNotFound
	}
	if s.trending != nil {
		s.trending.Bump(ctx, listingID)
	}
	return &model.ViewResult{ViewCount: count}, nil
}

// ExpireDue sweeps overdue auctions to expired. Idempotent: a second sweep
// finds nothing and notifies nobody. The highest bid is never auto-accepted;
// expiry without seller action is its own terminal state.
func (s *ListingService) ExpireDue(ctx context.Context) (int, error) {
	expired, err := s.listings.ExpireDue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	for i := range expired {
		l := &expired[i]
		if s.notifier != nil {
			data, _ := json.Marshal(model.BidEvent{ListingID: l.ID, Title: l.Title})
			s.notifier.SendToUser(l.SellerID, &model.WSEvent{Type: model.EventListingExpired, Data: data})
		}
	}
	if len(expired) > 0 {
		log.Printf("[MARKET] expired %d auctions", len(expired))
	}
	return len(expired), nil
}

func (s *ListingService) GetListing(ctx context.Context, id string) (*model.Listing, error) {
	listing, err := s.listings.GetByID(ctx, id)
	if err != nil {
		return nil, ErrListingNotFound
	}
	return listing, nil
}

func (s *ListingService) SearchListings(ctx context.Context, req *model.SearchListingsRequest) ([]model.Listing, int, error) {
	return s.listings.Search(ctx, req)
}

func (s *ListingService) GetMyListings(ctx context.Context, sellerID, status string) ([]model.Listing, error) {
	return s.listings.GetBySellerID(ctx, sellerID, status)
}

func (s *ListingService) ListBids(ctx context.Context, listingID string) ([]model.Bid, error) {
	if _, err := s.listings.GetByID(ctx, listingID); err != nil {
		return nil, ErrListingNotFound
	}
	return s.bids.ListByListing(ctx, listingID)
}

// TrendingListings resolves the top recently-viewed listings. Returns only
// listings that are still active, in score order.
func (s *ListingService) TrendingListings(ctx context.Context, limit int) ([]model.Listing, error) {
	if s.trending == nil {
		return []model.Listing{}, nil
	}
	entries, err := s.trending.Top(ctx, limit)
	if err != nil {
		return []model.Listing{}, nil // cache down, not an error for callers
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ListingID
	}
	listings, err := s.listings.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]model.Listing, len(listings))
	for _, l := range listings {
		byID[l.ID] = l
	}
	ordered := make([]model.Listing, 0, len(entries))
	for _, e := range entries {
		if l, ok := byID[e.ListingID]; ok && l.Status == model.StatusActive {
			ordered = append(ordered, l)
		}
	}
	return ordered, nil
}
