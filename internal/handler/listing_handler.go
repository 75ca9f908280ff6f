package handler

import (
	"errors"
	"log"
	"strconv"

	"github.com/SageGlitchy/CMart/internal/model"
	"github.com/SageGlitchy/CMart/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ListingHandler struct {
	listingSvc *service.ListingService
}

func NewListingHandler(listingSvc *service.ListingService) *ListingHandler {
	return &ListingHandler{listingSvc: listingSvc}
}

// GET /api/v1/market/listings
func (h *ListingHandler) Search(c *fiber.Ctx) error {
	req := &model.SearchListingsRequest{
		Category:   c.Query("category", ""),
		SearchText: c.Query("search", ""),
		SortBy:     c.Query("sort_by", "newest"),
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		if v, err := strconv.Atoi(limitStr); err == nil {
			req.Limit = v
		}
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if v, err := strconv.Atoi(offsetStr); err == nil {
			req.Offset = v
		}
	}
	if minStr := c.Query("min_price"); minStr != "" {
		if v, err := strconv.ParseInt(minStr, 10, 64); err == nil {
			req.MinPrice = &v
		}
	}
	if maxStr := c.Query("max_price"); maxStr != "" {
		if v, err := strconv.ParseInt(maxStr, 10, 64); err == nil {
			req.MaxPrice = &v
		}
	}

	listings, total, err := h.listingSvc.SearchListings(c.Context(), req)
	if err != nil {
		log.Printf("[MARKET] search error: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to search listings"})
	}

	return c.JSON(fiber.Map{
		"listings": listings,
		"total":    total,
	})
}

// POST /api/v1/market/listings
func (h *ListingHandler) Create(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req model.CreateListingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}

	listing, err := h.listingSvc.CreateListing(c.Context(), userID, &req)
	if err != nil {
		return marketError(c, err)
	}

	return c.Status(201).JSON(listing)
}

// PUT /api/v1/market/listings/:id
func (h *ListingHandler) Update(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req model.UpdateListingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}

	listing, err := h.listingSvc.UpdateListing(c.Context(), c.Params("id"), userID, &req)
	if err != nil {
		return marketError(c, err)
	}

	return c.JSON(listing)
}

// POST /api/v1/market/listings/:id/publish
func (h *ListingHandler) Publish(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	listing, err := h.listingSvc.PublishListing(c.Context(), c.Params("id"), userID)
	if err != nil {
		return marketError(c, err)
	}

	return c.JSON(listing)
}

// GET /api/v1/market/listings/:id
func (h *ListingHandler) GetByID(c *fiber.Ctx) error {
	listing, err := h.listingSvc.GetListing(c.Context(), c.Params("id"))
	if err != nil {
		return marketError(c, err)
	}

	return c.JSON(listing)
}

// GET /api/v1/market/listings/:id/bids
func (h *ListingHandler) ListBids(c *fiber.Ctx) error {
	bids, err := h.listingSvc.ListBids(c.Context(), c.Params("id"))
	if err != nil {
		return marketError(c, err)
	}

	return c.JSON(fiber.Map{"bids": bids})
}

// POST /api/v1/market/listings/:id/bids
func (h *ListingHandler) PlaceBid(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	var req model.PlaceBidRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Amount <= 0 {
		return c.Status(400).JSON(fiber.Map{"error": "amount must be a positive number"})
	}

	bid, err := h.listingSvc.PlaceBid(c.Context(), c.Params("id"), userID, req.Amount)
	if err != nil {
		return marketError(c, err)
	}

	return c.Status(201).JSON(bid)
}

// POST /api/v1/market/listings/:id/accept
func (h *ListingHandler) Accept(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	listing, err := h.listingSvc.AcceptOffer(c.Context(), c.Params("id"), userID)
	if err != nil {
		return marketError(c, err)
	}

	return c.JSON(listing)
}

// DELETE /api/v1/market/listings/:id
func (h *ListingHandler) Cancel(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	listing, err := h.listingSvc.CancelListing(c.Context(), c.Params("id"), userID)
	if err != nil {
		return marketError(c, err)
	}

	return c.JSON(listing)
}

// POST /api/v1/market/listings/:id/like
func (h *ListingHandler) ToggleLike(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)

	result, err := h.listingSvc.ToggleLike(c.Context(), c.Params("id"), userID)
	if err != nil {
		return marketError(c, err)
	}

	return c.JSON(result)
}

// POST /api/v1/market/listings/:id/view
func (h *ListingHandler) RecordView(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)

	result, err := h.listingSvc.RecordView(c.Context(), c.Params("id"), userID)
	if err != nil {
		return marketError(c, err)
	}

	return c.JSON(result)
}

// GET /api/v1/market/my-listings
func (h *ListingHandler) MyListings(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(string)
	status := c.Query("status", "all")

	listings, err := h.listingSvc.GetMyListings(c.Context(), userID, status)
	if err != nil {
		log.Printf("[MARKET] my-listings error: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to get listings"})
	}

	return c.JSON(fiber.Map{"listings": listings})
}

// GET /api/v1/market/trending
func (h *ListingHandler) Trending(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "10"))

	listings, err := h.listingSvc.TrendingListings(c.Context(), limit)
	if err != nil {
		log.Printf("[MARKET] trending error: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "failed to get trending listings"})
	}

	return c.JSON(fiber.Map{"listings": listings})
}

func marketError(c *fiber.Ctx, err error) error {
	var verr *service.ValidationError
	var lowErr *service.BidTooLowError

	switch {
	case errors.As(err, &verr):
		return c.Status(422).JSON(fiber.Map{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
	case errors.As(err, &lowErr):
		return c.Status(409).JSON(fiber.Map{
			"error":       "bid too low",
			"minimum_bid": lowErr.Required,
		})
	case errors.Is(err, service.ErrListingNotFound):
		return c.Status(404).JSON(fiber.Map{"error": "listing not found"})
	case errors.Is(err, service.ErrInvalidState):
		return c.Status(409).JSON(fiber.Map{"error": "operation not allowed in current listing state"})
	case errors.Is(err, service.ErrSelfBid):
		return c.Status(400).JSON(fiber.Map{"error": "cannot bid on your own listing"})
	case errors.Is(err, service.ErrAuctionClosed):
		return c.Status(409).JSON(fiber.Map{"error": "auction has already ended"})
	case errors.Is(err, service.ErrNotOwner):
		return c.Status(403).JSON(fiber.Map{"error": "not the listing owner"})
	case errors.Is(err, service.ErrSelfPurchase):
		return c.Status(400).JSON(fiber.Map{"error": "cannot buy your own listing"})
	case errors.Is(err, service.ErrNoBids):
		return c.Status(409).JSON(fiber.Map{"error": "no bids to accept"})
	default:
		log.Printf("[MARKET ERROR] %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "internal server error"})
	}
}
