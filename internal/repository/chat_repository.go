package repository

import (
	"context"

	"github.com/SageGlitchy/CMart/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const conversationColumns = `id, participant_a, participant_b, listing_id,
	       unread_a, unread_b, last_message_at, created_at`

type ChatRepository struct {
	pool *pgxpool.Pool
}

func NewChatRepository(pool *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{pool: pool}
}

func scanConversation(row pgx.Row) (*model.Conversation, error) {
	c := &model.Conversation{}
	err := row.Scan(
		&c.ID, &c.ParticipantA, &c.ParticipantB, &c.ListingID,
		&c.UnreadA, &c.UnreadB, &c.LastMessageAt, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetOrCreate returns the conversation for the sorted participant pair and
// optional listing scope, creating it on first contact. The unique index on
// the pair makes concurrent first messages converge on one row.
func (r *ChatRepository) GetOrCreate(ctx context.Context, conv *model.Conversation) (*model.Conversation, error) {
	existing, err := scanConversation(r.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE participant_a = $1 AND participant_b = $2
		  AND COALESCE(listing_id, '') = COALESCE($3, '')
	`, conv.ParticipantA, conv.ParticipantB, conv.ListingID))
	if err == nil {
		return existing, nil
	}
	if err != pgx.ErrNoRows {
		return nil, err
	}

	created, err := scanConversation(r.pool.QueryRow(ctx, `
		INSERT INTO conversations (id, participant_a, participant_b, listing_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (participant_a, participant_b, COALESCE(listing_id, '')) DO NOTHING
		RETURNING `+conversationColumns+`
	`, conv.ID, conv.ParticipantA, conv.ParticipantB, conv.ListingID))
	if err == pgx.ErrNoRows {
		// Lost the race; fetch the winner.
		return scanConversation(r.pool.QueryRow(ctx, `
			SELECT `+conversationColumns+`
			FROM conversations
			WHERE participant_a = $1 AND participant_b = $2
			  AND COALESCE(listing_id, '') = COALESCE($3, '')
		`, conv.ParticipantA, conv.ParticipantB, conv.ListingID))
	}
	return created, err
}

func (r *ChatRepository) GetByID(ctx context.Context, id string) (*model.Conversation, error) {
	return scanConversation(r.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+` FROM conversations WHERE id = $1
	`, id))
}

// AppendMessage stores the message and bumps the recipient's unread counter
// and the thread timestamp in one transaction.
func (r *ChatRepository) AppendMessage(ctx context.Context, msg *model.Message) (*model.Message, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, kind, content)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, msg.ID, msg.ConversationID, msg.SenderID, msg.Kind, msg.Content).Scan(&msg.CreatedAt)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE conversations
		SET last_message_at = $2,
		    unread_a = unread_a + CASE WHEN participant_b = $3 THEN 1 ELSE 0 END,
		    unread_b = unread_b + CASE WHEN participant_a = $3 THEN 1 ELSE 0 END
		WHERE id = $1
	`, msg.ConversationID, msg.CreatedAt, msg.SenderID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *ChatRepository) ListForUser(ctx context.Context, userID string) ([]model.Conversation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE participant_a = $1 OR participant_b = $1
		ORDER BY last_message_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []model.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, *c)
	}
	if convs == nil {
		convs = []model.Conversation{}
	}
	return convs, rows.Err()
}

// ListMessages returns up to limit recent messages in chronological order.
// ULID ids are time-ordered, so the id tiebreak preserves insertion order
// for same-timestamp messages.
func (r *ChatRepository) ListMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, conversation_id, sender_id, kind, content, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Kind, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse for chronological order (oldest first)
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	return msgs, nil
}

func (r *ChatRepository) MarkRead(ctx context.Context, conversationID, userID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE conversations
		SET unread_a = CASE WHEN participant_a = $2 THEN 0 ELSE unread_a END,
		    unread_b = CASE WHEN participant_b = $2 THEN 0 ELSE unread_b END
		WHERE id = $1
	`, conversationID, userID)
	return err
}
