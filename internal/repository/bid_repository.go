package repository

import (
	"context"
	"errors"

	"github.com/SageGlitchy/CMart/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrBidConflict is returned when the bid no longer meets the minimum once
// the listing row is locked (another bid landed first, or the auction
// finished between the service's checks and the insert).
var ErrBidConflict = errors.New("bid conflicts with current listing state")

type BidRepository struct {
	pool *pgxpool.Pool
}

func NewBidRepository(pool *pgxpool.Pool) *BidRepository {
	return &BidRepository{pool: pool}
}

// Insert appends the bid and updates the listing's current-bid view in one
// transaction. The listing row lock serializes concurrent bids per listing,
// so the minimum is re-verified against the latest committed bid. Returns
// the previous highest bid (nil when this is the first) for outbid
// notification.
func (r *BidRepository) Insert(ctx context.Context, bid *model.Bid, increment int64) (*model.Bid, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var price int64
	var currentBid *int64
	var status string
	err = tx.QueryRow(ctx, `
		SELECT price, current_bid, status
		FROM listings
		WHERE id = $1 AND bidding_enabled = TRUE AND (expires_at IS NULL OR expires_at > NOW())
		FOR UPDATE
	`, bid.ListingID).Scan(&price, &currentBid, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBidConflict
		}
		return nil, err
	}

	minimum := price
	if currentBid != nil {
		minimum = *currentBid + increment
	}
	if status != model.StatusActive || bid.Amount < minimum {
		return nil, ErrBidConflict
	}

	var prev *model.Bid
	p := &model.Bid{}
	err = tx.QueryRow(ctx, `
		SELECT id, listing_id, bidder_id, amount, created_at
		FROM bids
		WHERE listing_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, bid.ListingID).Scan(&p.ID, &p.ListingID, &p.BidderID, &p.Amount, &p.CreatedAt)
	if err == nil {
		prev = p
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO bids (id, listing_id, bidder_id, amount)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, bid.ID, bid.ListingID, bid.BidderID, bid.Amount).Scan(&bid.CreatedAt)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE listings
		SET current_bid = $2, bid_count = bid_count + 1, updated_at = NOW()
		WHERE id = $1
	`, bid.ListingID, bid.Amount)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return prev, nil
}

func (r *BidRepository) ListByListing(ctx context.Context, listingID string) ([]model.Bid, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, listing_id, bidder_id, amount, created_at
		FROM bids
		WHERE listing_id = $1
		ORDER BY created_at ASC, id ASC
	`, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []model.Bid
	for rows.Next() {
		var b model.Bid
		if err := rows.Scan(&b.ID, &b.ListingID, &b.BidderID, &b.Amount, &b.CreatedAt); err != nil {
			return nil, err
		}
		bids = append(bids, b)
	}
	if bids == nil {
		bids = []model.Bid{}
	}
	return bids, rows.Err()
}

// Highest returns the current highest bid, or nil when none exists.
func (r *BidRepository) Highest(ctx context.Context, listingID string) (*model.Bid, error) {
	b := &model.Bid{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, listing_id, bidder_id, amount, created_at
		FROM bids
		WHERE listing_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, listingID).Scan(&b.ID, &b.ListingID, &b.BidderID, &b.Amount, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}
