package conversation

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/tagreview/pkg/models"
)

// Store handles database operations for conversations, participants and
// messages.
type Store struct {
	db *sql.DB
}

// NewStore creates a new conversation store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateConversation persists the conversation and its first participant in
// one transaction.
func (s *Store) CreateConversation(ctx context.Context, conv *models.Conversation, firstParticipantID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO conversations (review_id, property, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`, conv.ReviewID, conv.Property).Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversation_participants (conversation_id, user_id, added_at)
		VALUES ($1, $2, NOW())
	`, conv.ID, firstParticipantID)
	if err != nil {
		return fmt.Errorf("failed to insert first participant: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetConversation fetches a single conversation. A missing id yields
// (nil, nil).
func (s *Store) GetConversation(ctx context.Context, id int64) (*models.Conversation, error) {
	query := `
		SELECT id, review_id, property, created_at, updated_at
		FROM conversations
		WHERE id = $1
	`

	conv := &models.Conversation{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&conv.ID,
		&conv.ReviewID,
		&conv.Property,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return conv, nil
}

// ListConversations returns a review's conversations in insertion order.
func (s *Store) ListConversations(ctx context.Context, reviewID int64) ([]*models.Conversation, error) {
	query := `
		SELECT id, review_id, property, created_at, updated_at
		FROM conversations
		WHERE review_id = $1
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, reviewID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	// Initialize as empty slice (not nil) so JSON encodes as [] instead of null
	conversations := make([]*models.Conversation, 0)
	for rows.Next() {
		conv := &models.Conversation{}
		err := rows.Scan(
			&conv.ID,
			&conv.ReviewID,
			&conv.Property,
			&conv.CreatedAt,
			&conv.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversations: %w", err)
	}

	return conversations, nil
}

// ListParticipants returns a conversation's participants in the order they
// were added.
func (s *Store) ListParticipants(ctx context.Context, conversationID int64) ([]*models.Participant, error) {
	query := `
		SELECT conversation_id, user_id, added_at
		FROM conversation_participants
		WHERE conversation_id = $1
		ORDER BY added_at ASC, user_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query participants: %w", err)
	}
	defer rows.Close()

	// Initialize as empty slice (not nil) so JSON encodes as [] instead of null
	participants := make([]*models.Participant, 0)
	for rows.Next() {
		p := &models.Participant{}
		if err := rows.Scan(&p.ConversationID, &p.UserID, &p.AddedAt); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}

	return participants, nil
}

// AddParticipant attaches a user to a conversation. Adding an existing
// participant is a no-op.
func (s *Store) AddParticipant(ctx context.Context, conversationID, userID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_participants (conversation_id, user_id, added_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (conversation_id, user_id) DO NOTHING
	`, conversationID, userID)
	if err != nil {
		return fmt.Errorf("failed to add participant: %w", err)
	}
	return nil
}

// GetReview fetches the review a conversation would attach to. Missing id
// yields (nil, nil).
func (s *Store) GetReview(ctx context.Context, id int64) (*models.RevisionContainerReview, error) {
	query := `
		SELECT id, revision_container_id, approver_id, status, comment, created_at, updated_at
		FROM revision_reviews
		WHERE id = $1
	`

	review := &models.RevisionContainerReview{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&review.ID,
		&review.RevisionContainerID,
		&review.ApproverID,
		&review.Status,
		&review.Comment,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}

	return review, nil
}

// CreateMessage persists a message.
func (s *Store) CreateMessage(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (conversation_id, author_id, content, is_deleted, created_at, updated_at)
		VALUES ($1, $2, $3, FALSE, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query, msg.ConversationID, msg.AuthorID, msg.Content).
		Scan(&msg.ID, &msg.CreatedAt, &msg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	return nil
}

// GetMessage fetches a single message, deleted or not. A missing id yields
// (nil, nil).
func (s *Store) GetMessage(ctx context.Context, id int64) (*models.Message, error) {
	query := `
		SELECT id, conversation_id, author_id, content, is_deleted, created_at, updated_at
		FROM messages
		WHERE id = $1
	`

	msg := &models.Message{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.AuthorID,
		&msg.Content,
		&msg.IsDeleted,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return msg, nil
}

// ListMessages returns a conversation's messages in creation order, deleted
// ones included.
func (s *Store) ListMessages(ctx context.Context, conversationID int64) ([]*models.Message, error) {
	query := `
		SELECT id, conversation_id, author_id, content, is_deleted, created_at, updated_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	// Initialize as empty slice (not nil) so JSON encodes as [] instead of null
	messages := make([]*models.Message, 0)
	for rows.Next() {
		msg := &models.Message{}
		err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.AuthorID,
			&msg.Content,
			&msg.IsDeleted,
			&msg.CreatedAt,
			&msg.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	return messages, nil
}

// UpdateMessageContent replaces a message's content in place. The author and
// creation timestamp stay untouched. A missing id yields (nil, nil).
func (s *Store) UpdateMessageContent(ctx context.Context, id int64, content string) (*models.Message, error) {
	query := `
		UPDATE messages
		SET content = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING id, conversation_id, author_id, content, is_deleted, created_at, updated_at
	`

	msg := &models.Message{}
	err := s.db.QueryRowContext(ctx, query, content, id).Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.AuthorID,
		&msg.Content,
		&msg.IsDeleted,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update message: %w", err)
	}

	return msg, nil
}

// SoftDeleteMessage flips the deletion flag. The row is retained.
func (s *Store) SoftDeleteMessage(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE messages
		SET is_deleted = TRUE, updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to soft-delete message: %w", err)
	}
	return nil
}

// LatestMessages returns, per conversation, the newest non-deleted message,
// or the newest deleted one when every message in the conversation is
// deleted. Conversations without messages are absent from the map.
func (s *Store) LatestMessages(ctx context.Context, conversationIDs []int64) (map[int64]*models.Message, error) {
	latest := make(map[int64]*models.Message)
	if len(conversationIDs) == 0 {
		return latest, nil
	}

	// Non-deleted rows sort before deleted ones, newest first within each;
	// DISTINCT ON keeps the top row per conversation.
	query := `
		SELECT DISTINCT ON (conversation_id)
		       id, conversation_id, author_id, content, is_deleted, created_at, updated_at
		FROM messages
		WHERE conversation_id = ANY($1)
		ORDER BY conversation_id, is_deleted ASC, id DESC
	`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(conversationIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query latest messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		msg := &models.Message{}
		err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.AuthorID,
			&msg.Content,
			&msg.IsDeleted,
			&msg.CreatedAt,
			&msg.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan latest message: %w", err)
		}
		latest[msg.ConversationID] = msg
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate latest messages: %w", err)
	}

	return latest, nil
}
