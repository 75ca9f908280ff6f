package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/SageGlitchy/CMart/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const listingColumns = `id, seller_id, title, description, category, condition, location,
	       tags, images, price, bidding_enabled, duration_hours, status, current_bid, bid_count,
	       like_count, view_count, sold_to_id, sold_at, created_at, published_at,
	       expires_at, updated_at`

type ListingRepository struct {
	pool *pgxpool.Pool
}

func NewListingRepository(pool *pgxpool.Pool) *ListingRepository {
	return &ListingRepository{pool: pool}
}

func scanListing(row pgx.Row) (*model.Listing, error) {
	l := &model.Listing{}
	err := row.Scan(
		&l.ID, &l.SellerID, &l.Title, &l.Description, &l.Category, &l.Condition, &l.Location,
		&l.Tags, &l.Images, &l.Price, &l.BiddingEnabled, &l.DurationHours, &l.Status, &l.CurrentBid, &l.BidCount,
		&l.LikeCount, &l.ViewCount, &l.SoldToID, &l.SoldAt, &l.CreatedAt, &l.PublishedAt,
		&l.ExpiresAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (r *ListingRepository) Create(ctx context.Context, l *model.Listing) (*model.Listing, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO listings (
			id, seller_id, title, description, category, condition, location,
			tags, images, price, bidding_enabled, duration_hours, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 'draft')
		RETURNING created_at, updated_at
	`,
		l.ID, l.SellerID, l.Title, l.Description, l.Category, l.Condition, l.Location,
		l.Tags, l.Images, l.Price, l.BiddingEnabled, l.DurationHours,
	).Scan(&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.Status = model.StatusDraft
	return l, nil
}

func (r *ListingRepository) GetByID(ctx context.Context, id string) (*model.Listing, error) {
	return scanListing(r.pool.QueryRow(ctx, `
		SELECT `+listingColumns+`
		FROM listings WHERE id = $1
	`, id))
}

// Update writes the descriptive fields. The caller enforces ownership and
// editability; the status guard here only protects against races with the
// sweeper or a concurrent accept.
func (r *ListingRepository) Update(ctx context.Context, l *model.Listing) (*model.Listing, error) {
	return scanListing(r.pool.QueryRow(ctx, `
		UPDATE listings
		SET title = $2, description = $3, category = $4, condition = $5, location = $6,
		    tags = $7, images = $8, price = $9, updated_at = NOW()
		WHERE id = $1 AND status IN ('draft', 'active')
		RETURNING `+listingColumns+`
	`,
		l.ID, l.Title, l.Description, l.Category, l.Condition, l.Location,
		l.Tags, l.Images, l.Price,
	))
}

// Publish flips draft -> active. Returns pgx.ErrNoRows when the listing is
// no longer a draft.
func (r *ListingRepository) Publish(ctx context.Context, id string, expiresAt *time.Time) (*model.Listing, error) {
	return scanListing(r.pool.QueryRow(ctx, `
		UPDATE listings
		SET status = 'active', published_at = NOW(), expires_at = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'draft'
		RETURNING `+listingColumns+`
	`, id, expiresAt))
}

func (r *ListingRepository) Search(ctx context.Context, req *model.SearchListingsRequest) ([]model.Listing, int, error) {
	var conditions []string
	var args []interface{}
	argIdx := 1

	conditions = append(conditions, "status = 'active'")

	if req.Category != "" && req.Category != "all" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argIdx))
		args = append(args, req.Category)
		argIdx++
	}

	if req.SearchText != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(description) LIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+strings.ToLower(req.SearchText)+"%")
		argIdx++
	}

	if req.MinPrice != nil {
		conditions = append(conditions, fmt.Sprintf("price >= $%d", argIdx))
		args = append(args, *req.MinPrice)
		argIdx++
	}

	if req.MaxPrice != nil {
		conditions = append(conditions, fmt.Sprintf("price <= $%d", argIdx))
		args = append(args, *req.MaxPrice)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM listings WHERE " + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	orderBy := "published_at DESC"
	switch req.SortBy {
	case "price_asc":
		orderBy = "price ASC"
	case "price_desc":
		orderBy = "price DESC"
	case "newest":
		orderBy = "published_at DESC"
	case "oldest":
		orderBy = "published_at ASC"
	case "popular":
		orderBy = "view_count DESC"
	}

	limit := req.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM listings
		WHERE %s
		ORDER BY %s
		LIMIT %d OFFSET %d
	`, listingColumns, where, orderBy, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	listings, err := collectListings(rows)
	if err != nil {
		return nil, 0, err
	}
	return listings, total, nil
}

func (r *ListingRepository) GetBySellerID(ctx context.Context, sellerID string, status string) ([]model.Listing, error) {
	query := `
		SELECT ` + listingColumns + `
		FROM listings
		WHERE seller_id = $1
		ORDER BY created_at DESC
	`
	args := []interface{}{sellerID}
	if status != "" && status != "all" {
		query = `
			SELECT ` + listingColumns + `
			FROM listings
			WHERE seller_id = $1 AND status = $2
			ORDER BY created_at DESC
		`
		args = append(args, status)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectListings(rows)
}

func (r *ListingRepository) GetByIDs(ctx context.Context, ids []string) ([]model.Listing, error) {
	if len(ids) == 0 {
		return []model.Listing{}, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+listingColumns+`
		FROM listings WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectListings(rows)
}

// MarkSold finishes the listing atomically: the row lock re-verifies the
// listing is still active, the seller's sales counter moves in the same
// transaction. Returns pgx.ErrNoRows when the listing was not active.
func (r *ListingRepository) MarkSold(ctx context.Context, listingID, buyerID string, finalPrice int64) (*model.Listing, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	l, err := scanListing(tx.QueryRow(ctx, `
		SELECT `+listingColumns+`
		FROM listings
		WHERE id = $1 AND status = 'active'
		FOR UPDATE
	`, listingID))
	if err != nil {
		return nil, err
	}

	soldAt := time.Now()
	_, err = tx.Exec(ctx, `
		UPDATE listings
		SET status = 'sold', sold_to_id = $2, sold_at = $3, current_bid = $4, updated_at = NOW()
		WHERE id = $1
	`, listingID, buyerID, soldAt, finalPrice)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE users SET total_sales = total_sales + 1, updated_at = NOW()
		WHERE id = $1
	`, l.SellerID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	l.Status = model.StatusSold
	l.SoldToID = &buyerID
	l.SoldAt = &soldAt
	l.CurrentBid = &finalPrice
	return l, nil
}

func (r *ListingRepository) Cancel(ctx context.Context, listingID, sellerID string) (*model.Listing, error) {
	return scanListing(r.pool.QueryRow(ctx, `
		UPDATE listings SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND seller_id = $2 AND status = 'active'
		RETURNING `+listingColumns+`
	`, listingID, sellerID))
}

// ToggleLike flips the (listing, user) like pair and keeps like_count equal
// to the number of pairs in the same transaction.
func (r *ListingRepository) ToggleLike(ctx context.Context, listingID, userID string) (*model.LikeResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		DELETE FROM listing_likes WHERE listing_id = $1 AND user_id = $2
	`, listingID, userID)
	if err != nil {
		return nil, err
	}

	liked := tag.RowsAffected() == 0
	var count int
	if liked {
		if _, err := tx.Exec(ctx, `
			INSERT INTO listing_likes (listing_id, user_id) VALUES ($1, $2)
		`, listingID, userID); err != nil {
			return nil, err
		}
		err = tx.QueryRow(ctx, `
			UPDATE listings SET like_count = like_count + 1 WHERE id = $1
			RETURNING like_count
		`, listingID).Scan(&count)
	} else {
		err = tx.QueryRow(ctx, `
			UPDATE listings SET like_count = like_count - 1 WHERE id = $1
			RETURNING like_count
		`, listingID).Scan(&count)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &model.LikeResult{LikeCount: count, Liked: liked}, nil
}

// RecordView counts an impression. Views are never deduplicated per viewer.
func (r *ListingRepository) RecordView(ctx context.Context, listingID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		UPDATE listings SET view_count = view_count + 1 WHERE id = $1
		RETURNING view_count
	`, listingID).Scan(&count)
	return count, err
}

// ExpireDue moves every overdue auction to expired and returns the affected
// rows so the caller can notify sellers. The status filter makes repeated
// sweeps no-ops.
func (r *ListingRepository) ExpireDue(ctx context.Context, now time.Time) ([]model.Listing, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE listings SET status = 'expired', updated_at = NOW()
		WHERE status = 'active' AND bidding_enabled = TRUE AND expires_at <= $1
		RETURNING `+listingColumns+`
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectListings(rows)
}

func collectListings(rows pgx.Rows) ([]model.Listing, error) {
	var listings []model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	if listings == nil {
		listings = []model.Listing{}
	}
	return listings, rows.Err()
}
