package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrListingNotFound = errors.New("listing not found")

	// ErrInvalidState covers every operation attempted outside the allowed
	// state-machine transition (publishing a non-draft, bidding on a
	// fixed-price or finished listing, accepting twice, ...).
	ErrInvalidState = errors.New("operation not allowed in current listing state")

	ErrSelfBid       = errors.New("sellers cannot bid on their own listing")
	ErrAuctionClosed = errors.New("auction has already ended")
	ErrNotOwner      = errors.New("not the listing owner")
	ErrSelfPurchase  = errors.New("cannot buy your own listing")
	ErrNoBids        = errors.New("no bids to accept")

	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotParticipant       = errors.New("not a participant of this conversation")
	ErrSelfMessage          = errors.New("cannot message yourself")
	ErrInvalidMessage       = errors.New("invalid message")
)

// FieldError names one invalid field and why it is invalid.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError reports every invalid field at once. Publish validation
// never short-circuits because the post form surfaces all errors together.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return "validation failed: " + strings.Join(names, ", ")
}

func (e *ValidationError) add(field, reason string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: reason})
}

// BidTooLowError carries the minimum the bidder must meet.
type BidTooLowError struct {
	Required int64
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid too low: minimum is %d", e.Required)
}
