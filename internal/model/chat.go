package model

import "time"

// Message kinds. A product message carries a listing id in Content so the
// client can render an inline listing card.
const (
	MessageKindText    = "text"
	MessageKindImage   = "image"
	MessageKindProduct = "product"
)

func ValidMessageKind(kind string) bool {
	return kind == MessageKindText || kind == MessageKindImage || kind == MessageKindProduct
}

// Conversation is a thread between an unordered pair of users, optionally
// scoped to a listing. Participants are stored sorted so the pair is unique.
type Conversation struct {
	ID            string    `json:"id"`
	ParticipantA  string    `json:"participant_a"`
	ParticipantB  string    `json:"participant_b"`
	ListingID     *string   `json:"listing_id,omitempty"`
	UnreadA       int       `json:"-"`
	UnreadB       int       `json:"-"`
	LastMessageAt time.Time `json:"last_message_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// NormalizePair returns the two ids in storage order.
func NormalizePair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// Other returns the participant that is not userID.
func (c *Conversation) Other(userID string) string {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}

// HasParticipant reports whether userID belongs to the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.ParticipantA == userID || c.ParticipantB == userID
}

// UnreadFor returns the unread counter belonging to userID.
func (c *Conversation) UnreadFor(userID string) int {
	if c.ParticipantA == userID {
		return c.UnreadA
	}
	return c.UnreadB
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Kind           string    `json:"kind"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

type SendMessageRequest struct {
	RecipientID string `json:"recipient_id"`
	ListingID   string `json:"listing_id,omitempty"`
	Kind        string `json:"kind"`
	Content     string `json:"content"`
}

// ConversationView is a conversation as seen by one participant.
type ConversationView struct {
	ID            string    `json:"id"`
	OtherUserID   string    `json:"other_user_id"`
	OtherOnline   bool      `json:"other_online"`
	ListingID     *string   `json:"listing_id,omitempty"`
	UnreadCount   int       `json:"unread_count"`
	LastMessageAt time.Time `json:"last_message_at"`
}
