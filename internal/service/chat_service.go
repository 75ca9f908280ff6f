package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/SageGlitchy/CMart/internal/model"
)

// ChatStore is satisfied by repository.ChatRepository.
type ChatStore interface {
	GetOrCreate(ctx context.Context, conv *model.Conversation) (*model.Conversation, error)
	GetByID(ctx context.Context, id string) (*model.Conversation, error)
	AppendMessage(ctx context.Context, msg *model.Message) (*model.Message, error)
	ListForUser(ctx context.Context, userID string) ([]model.Conversation, error)
	ListMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error)
	MarkRead(ctx context.Context, conversationID, userID string) error
}

const maxMessageLength = 2000

// Presence reports whether a user holds an open WS connection. Satisfied
// by the WS hub.
type Presence interface {
	Online(userID string) bool
}

type ChatService struct {
	store    ChatStore
	notifier Notifier
	presence Presence
}

func NewChatService(store ChatStore, notifier Notifier) *ChatService {
	return &ChatService{store: store, notifier: notifier}
}

// WithPresence wires the online indicator shown on conversation lists.
func (s *ChatService) WithPresence(p Presence) *ChatService {
	s.presence = p
	return s
}

// SendMessage lazily creates the conversation for the pair (optionally
// scoped to a listing) and appends the message. Messages are append-only;
// there is no edit or delete.
func (s *ChatService) SendMessage(ctx context.Context, senderID string, req *model.SendMessageRequest) (*model.Message, error) {
	if req.RecipientID == "" || req.RecipientID == senderID {
		if req.RecipientID == senderID {
			return nil, ErrSelfMessage
		}
		return nil, ErrInvalidMessage
	}
	kind := req.Kind
	if kind == "" {
		kind = model.MessageKindText
	}
	if !model.ValidMessageKind(kind) {
		return nil, ErrInvalidMessage
	}
	content := req.Content
	if kind == model.MessageKindText {
		content = strings.TrimSpace(content)
	}
	if content == "" || len(content) > maxMessageLength {
		return nil, ErrInvalidMessage
	}

	a, b := model.NormalizePair(senderID, req.RecipientID)
	conv := &model.Conversation{
		ID:           newID(),
		ParticipantA: a,
		ParticipantB: b,
	}
	if req.ListingID != "" {
		lid := req.ListingID
		conv.ListingID = &lid
	}

	conv, err := s.store.GetOrCreate(ctx, conv)
	if err != nil {
		return nil, err
	}

	msg := &model.Message{
		ID:             newID(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		Kind:           kind,
		Content:        content,
	}
	msg, err = s.store.AppendMessage(ctx, msg)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		data, _ := json.Marshal(msg)
		s.notifier.SendToUser(req.RecipientID, &model.WSEvent{Type: model.EventNewMessage, Data: data})
	}
	return msg, nil
}

// ListConversations returns the caller's threads, newest activity first.
func (s *ChatService) ListConversations(ctx context.Context, userID string) ([]model.ConversationView, error) {
	convs, err := s.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]model.ConversationView, 0, len(convs))
	for i := range convs {
		c := &convs[i]
		other := c.Other(userID)
		view := model.ConversationView{
			ID:            c.ID,
			OtherUserID:   other,
			ListingID:     c.ListingID,
			UnreadCount:   c.UnreadFor(userID),
			LastMessageAt: c.LastMessageAt,
		}
		if s.presence != nil {
			view.OtherOnline = s.presence.Online(other)
		}
		views = append(views, view)
	}
	return views, nil
}

// ListMessages pages a conversation chronologically; participants only.
func (s *ChatService) ListMessages(ctx context.Context, conversationID, userID string, limit int) ([]model.Message, error) {
	conv, err := s.store.GetByID(ctx, conversationID)
	if err != nil {
		return nil, ErrConversationNotFound
	}
	if !conv.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return s.store.ListMessages(ctx, conversationID, limit)
}

// MarkRead zeroes the caller's unread counter.
func (s *ChatService) MarkRead(ctx context.Context, conversationID, userID string) error {
	conv, err := s.store.GetByID(ctx, conversationID)
	if err != nil {
		return ErrConversationNotFound
	}
	if !conv.HasParticipant(userID) {
		return ErrNotParticipant
	}
	return s.store.MarkRead(ctx, conversationID, userID)
}

// RelayTyping forwards a typing indicator to the peer. Typing state is
// never persisted.
func (s *ChatService) RelayTyping(ctx context.Context, conversationID, userID string, typing bool) error {
	conv, err := s.store.GetByID(ctx, conversationID)
	if err != nil {
		return ErrConversationNotFound
	}
	if !conv.HasParticipant(userID) {
		return ErrNotParticipant
	}
	if s.notifier != nil {
		data, _ := json.Marshal(model.TypingEvent{
			ConversationID: conversationID,
			UserID:         userID,
			Typing:         typing,
		})
		s.notifier.SendToUser(conv.Other(userID), &model.WSEvent{Type: model.EventTyping, Data: data})
	}
	return nil
}
