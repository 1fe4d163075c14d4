package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messaging-service/internal/models"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrNotSender       = errors.New("caller is not the sender")
	ErrMessageDeleted  = errors.New("message is deleted")
)

// MessageRepository defines interactions for conversation messages.
type MessageRepository interface {
	Send(ctx context.Context, conversationID int, senderID int, content string, replyToID *int) (models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	ListByConversation(ctx context.Context, conversationID int) ([]models.Message, error)
	Edit(ctx context.Context, messageID int, senderID int, content string) (models.Message, error)
	SoftDelete(ctx context.Context, messageID int, senderID int) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, conversation_id, sender_id, content, is_deleted, is_edited, reply_to_id, created_at`

// Send inserts the message, repoints the conversation's last message, and
// bumps every other member's unread counter, all in one transaction. The
// increment is relative so concurrent sends never clobber each other.
func (r *MessageRepo) Send(ctx context.Context, conversationID int, senderID int, content string, replyToID *int) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var msg models.Message
	err = tx.GetContext(ctx, &msg, `INSERT INTO messages (conversation_id, sender_id, content, reply_to_id)
        VALUES ($1, $2, $3, $4)
        RETURNING `+messageColumns, conversationID, senderID, content, replyToID)
	if err != nil {
		err = classifySendError(err)
		return models.Message{}, err
	}

	res, err := tx.ExecContext(ctx, `UPDATE conversations SET last_message_id=$2 WHERE id=$1`, conversationID, msg.ID)
	if err != nil {
		return models.Message{}, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return models.Message{}, err
	}
	if count == 0 {
		err = ErrConversationNotFound
		return models.Message{}, err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE conversation_members SET unread_count = unread_count + 1
        WHERE conversation_id=$1 AND user_id<>$2`, conversationID, senderID); err != nil {
		return models.Message{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListByConversation returns all messages in insertion order, soft-deleted
// rows included.
func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages
        WHERE conversation_id=$1 ORDER BY id ASC`, conversationID)
	return msgs, err
}

// Edit updates content and marks the message edited. The ownership and
// deleted-state checks ride on the update condition so the read and write
// cannot race apart.
func (r *MessageRepo) Edit(ctx context.Context, messageID int, senderID int, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `UPDATE messages SET content=$3, is_edited=TRUE
        WHERE id=$1 AND sender_id=$2 AND is_deleted=FALSE
        RETURNING `+messageColumns, messageID, senderID, content)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, r.classifyWriteMiss(ctx, messageID, senderID)
	}
	return msg, err
}

// SoftDelete blanks the content and flags the row deleted; the row itself
// is retained for ordering and reaction history.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageID int, senderID int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET is_deleted=TRUE, content=''
        WHERE id=$1 AND sender_id=$2`, messageID, senderID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return r.classifyWriteMiss(ctx, messageID, senderID)
	}
	return nil
}

// classifyWriteMiss tells apart the reasons a conditional update matched
// nothing: absent row, foreign sender, or already-deleted message.
func (r *MessageRepo) classifyWriteMiss(ctx context.Context, messageID int, senderID int) error {
	msg, err := r.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != senderID {
		return ErrNotSender
	}
	if msg.IsDeleted {
		return ErrMessageDeleted
	}
	return ErrConflict
}

// classifySendError surfaces an absent conversation from the insert itself:
// a foreign key violation on the conversation column means the row referenced
// a conversation that does not exist.
func classifySendError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23503" && pqErr.Constraint == "messages_conversation_id_fkey" {
		return ErrConversationNotFound
	}
	return err
}
