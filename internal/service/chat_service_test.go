package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/SageGlitchy/CMart/internal/model"
)

// fakeChatStore keys conversations by the sorted pair plus listing scope,
// the same uniqueness the conversations table enforces.
type fakeChatStore struct {
	byID     map[string]*model.Conversation
	byPair   map[string]string // pair key -> conversation id
	messages map[string][]model.Message
	now      time.Time
}

func newFakeChatStore() *fakeChatStore {
	return &fakeChatStore{
		byID:     make(map[string]*model.Conversation),
		byPair:   make(map[string]string),
		messages: make(map[string][]model.Message),
		now:      time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func pairKey(c *model.Conversation) string {
	lid := ""
	if c.ListingID != nil {
		lid = *c.ListingID
	}
	return c.ParticipantA + "|" + c.ParticipantB + "|" + lid
}

func (f *fakeChatStore) GetOrCreate(ctx context.Context, conv *model.Conversation) (*model.Conversation, error) {
	key := pairKey(conv)
	if id, ok := f.byPair[key]; ok {
		cp := *f.byID[id]
		return &cp, nil
	}
	conv.CreatedAt = f.now
	cp := *conv
	f.byID[conv.ID] = &cp
	f.byPair[key] = conv.ID
	out := cp
	return &out, nil
}

func (f *fakeChatStore) GetByID(ctx context.Context, id string) (*model.Conversation, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, errNoRows
	}
	cp := *c
	return &cp, nil
}

func (f *fakeChatStore) AppendMessage(ctx context.Context, msg *model.Message) (*model.Message, error) {
	c, ok := f.byID[msg.ConversationID]
	if !ok {
		return nil, errNoRows
	}
	msg.CreatedAt = f.now
	f.messages[msg.ConversationID] = append(f.messages[msg.ConversationID], *msg)
	c.LastMessageAt = f.now
	if msg.SenderID == c.ParticipantA {
		c.UnreadB++
	} else {
		c.UnreadA++
	}
	return msg, nil
}

func (f *fakeChatStore) ListForUser(ctx context.Context, userID string) ([]model.Conversation, error) {
	var out []model.Conversation
	for _, c := range f.byID {
		if c.HasParticipant(userID) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeChatStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	msgs := f.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (f *fakeChatStore) MarkRead(ctx context.Context, conversationID, userID string) error {
	c, ok := f.byID[conversationID]
	if !ok {
		return errNoRows
	}
	if c.ParticipantA == userID {
		c.UnreadA = 0
	} else {
		c.UnreadB = 0
	}
	return nil
}

// fakePresence marks a fixed set of users as connected.
type fakePresence struct {
	online map[string]bool
}

func (p *fakePresence) Online(userID string) bool {
	return p.online[userID]
}

func newTestChatService(t *testing.T) (*ChatService, *fakeChatStore, *fakeNotifier) {
	t.Helper()
	store := newFakeChatStore()
	notifier := newFakeNotifier()
	return NewChatService(store, notifier), store, notifier
}

func TestSendMessageCreatesConversationLazily(t *testing.T) {
	svc, store, notifier := newTestChatService(t)
	ctx := context.Background()

	msg, err := svc.SendMessage(ctx, "bob", &model.SendMessageRequest{
		RecipientID: "alice",
		Content:     "Is the desk still available?",
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if msg.Kind != model.MessageKindText {
		t.Errorf("expected kind to default to text, got %q", msg.Kind)
	}

	conv, err := store.GetByID(ctx, msg.ConversationID)
	if err != nil {
		t.Fatalf("conversation not created: %v", err)
	}
	// Pair is stored sorted regardless of who wrote first.
	if conv.ParticipantA != "alice" || conv.ParticipantB != "bob" {
		t.Errorf("expected sorted pair (alice, bob), got (%s, %s)", conv.ParticipantA, conv.ParticipantB)
	}

	if notifier.count("alice", model.EventNewMessage) != 1 {
		t.Error("expected recipient notified of new message")
	}
	if notifier.count("bob", model.EventNewMessage) != 0 {
		t.Error("sender must not be notified of own message")
	}

	// A reply lands in the same conversation, not a new one.
	reply, err := svc.SendMessage(ctx, "alice", &model.SendMessageRequest{
		RecipientID: "bob",
		Content:     "Yes, still here.",
	})
	if err != nil {
		t.Fatalf("SendMessage reply: %v", err)
	}
	if reply.ConversationID != msg.ConversationID {
		t.Error("expected reply to reuse the existing conversation")
	}
	if len(store.byID) != 1 {
		t.Errorf("expected a single conversation, got %d", len(store.byID))
	}
}

func TestSendMessageListingScopedThreads(t *testing.T) {
	svc, store, _ := newTestChatService(t)
	ctx := context.Background()

	first, err := svc.SendMessage(ctx, "bob", &model.SendMessageRequest{
		RecipientID: "alice",
		ListingID:   "listing-1",
		Content:     "Would you take 40 for it?",
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	second, err := svc.SendMessage(ctx, "bob", &model.SendMessageRequest{
		RecipientID: "alice",
		ListingID:   "listing-2",
		Content:     "Also interested in the lamp.",
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	// Same pair, different listings: separate threads.
	if first.ConversationID == second.ConversationID {
		t.Error("expected distinct conversations per listing scope")
	}
	if len(store.byID) != 2 {
		t.Errorf("expected 2 conversations, got %d", len(store.byID))
	}
}

func TestSendMessageValidation(t *testing.T) {
	svc, _, _ := newTestChatService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  model.SendMessageRequest
		want error
	}{
		{"self message", model.SendMessageRequest{RecipientID: "bob", Content: "hi"}, ErrSelfMessage},
		{"missing recipient", model.SendMessageRequest{Content: "hi"}, ErrInvalidMessage},
		{"empty content", model.SendMessageRequest{RecipientID: "alice"}, ErrInvalidMessage},
		{"whitespace only", model.SendMessageRequest{RecipientID: "alice", Content: "   "}, ErrInvalidMessage},
		{"bad kind", model.SendMessageRequest{RecipientID: "alice", Kind: "video", Content: "x"}, ErrInvalidMessage},
		{"too long", model.SendMessageRequest{RecipientID: "alice", Content: strings.Repeat("a", maxMessageLength+1)}, ErrInvalidMessage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.SendMessage(ctx, "bob", &tc.req); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestUnreadCounters(t *testing.T) {
	svc, _, _ := newTestChatService(t)
	ctx := context.Background()

	var convID string
	for i := 0; i < 3; i++ {
		msg, err := svc.SendMessage(ctx, "bob", &model.SendMessageRequest{
			RecipientID: "alice",
			Content:     "ping",
		})
		if err != nil {
			t.Fatalf("SendMessage: %v", err)
		}
		convID = msg.ConversationID
	}

	views, err := svc.ListConversations(ctx, "alice")
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(views) != 1 || views[0].UnreadCount != 3 {
		t.Fatalf("expected one conversation with 3 unread, got %+v", views)
	}
	if views[0].OtherUserID != "bob" {
		t.Errorf("expected other participant bob, got %q", views[0].OtherUserID)
	}

	// Sender's own view carries no unread.
	bobViews, _ := svc.ListConversations(ctx, "bob")
	if bobViews[0].UnreadCount != 0 {
		t.Errorf("sender must not accrue unread, got %d", bobViews[0].UnreadCount)
	}

	if err := svc.MarkRead(ctx, convID, "alice"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	views, _ = svc.ListConversations(ctx, "alice")
	if views[0].UnreadCount != 0 {
		t.Errorf("expected unread reset to 0, got %d", views[0].UnreadCount)
	}
}

func TestListConversationsShowsPresence(t *testing.T) {
	svc, _, _ := newTestChatService(t)
	svc.WithPresence(&fakePresence{online: map[string]bool{"bob": true}})
	ctx := context.Background()

	if _, err := svc.SendMessage(ctx, "bob", &model.SendMessageRequest{
		RecipientID: "alice",
		Content:     "hi",
	}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	aliceViews, err := svc.ListConversations(ctx, "alice")
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if !aliceViews[0].OtherOnline {
		t.Error("expected bob to show as online")
	}

	bobViews, _ := svc.ListConversations(ctx, "bob")
	if bobViews[0].OtherOnline {
		t.Error("expected alice to show as offline")
	}
}

func TestListMessagesParticipantsOnly(t *testing.T) {
	svc, _, _ := newTestChatService(t)
	ctx := context.Background()

	msg, err := svc.SendMessage(ctx, "bob", &model.SendMessageRequest{
		RecipientID: "alice",
		Content:     "hello",
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if _, err := svc.ListMessages(ctx, msg.ConversationID, "eve", 50); !errors.Is(err, ErrNotParticipant) {
		t.Errorf("expected ErrNotParticipant, got %v", err)
	}
	if _, err := svc.ListMessages(ctx, "missing", "alice", 50); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("expected ErrConversationNotFound, got %v", err)
	}

	msgs, err := svc.ListMessages(ctx, msg.ConversationID, "alice", 50)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Content != "hello" {
		t.Errorf("expected the sent message back, got %+v", msgs)
	}
}

func TestRelayTyping(t *testing.T) {
	svc, store, notifier := newTestChatService(t)
	ctx := context.Background()

	msg, err := svc.SendMessage(ctx, "bob", &model.SendMessageRequest{
		RecipientID: "alice",
		Content:     "hey",
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	if err := svc.RelayTyping(ctx, msg.ConversationID, "bob", true); err != nil {
		t.Fatalf("RelayTyping: %v", err)
	}
	if notifier.count("alice", model.EventTyping) != 1 {
		t.Error("expected peer to receive the typing event")
	}
	if notifier.count("bob", model.EventTyping) != 0 {
		t.Error("typing event must not echo to the typist")
	}

	if err := svc.RelayTyping(ctx, msg.ConversationID, "eve", true); !errors.Is(err, ErrNotParticipant) {
		t.Errorf("expected ErrNotParticipant, got %v", err)
	}

	// Typing never touches stored messages.
	if got := len(store.messages[msg.ConversationID]); got != 1 {
		t.Errorf("expected typing to leave messages untouched, got %d", got)
	}
}
