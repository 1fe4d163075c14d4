package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messaging-service/internal/models"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMembershipNotFound   = errors.New("membership not found")
	ErrNotGroup             = errors.New("conversation is not a group")
	ErrDuplicateGroupName   = errors.New("group name already exists")
	ErrConflict             = errors.New("concurrent write conflict")
)

// ConversationRepository abstracts conversation and membership persistence.
type ConversationRepository interface {
	GetOrCreateDirect(ctx context.Context, meID int, otherID int) (int, error)
	GetConversation(ctx context.Context, conversationID int) (models.Conversation, error)
	ListMemberships(ctx context.Context, userID int) ([]models.Membership, error)
	GetMembers(ctx context.Context, conversationID int) ([]models.Membership, error)
	GetMembership(ctx context.Context, conversationID int, userID int) (models.Membership, error)
	CreateGroup(ctx context.Context, creatorID int, name string, memberIDs []int) (int, error)
	DeleteGroup(ctx context.Context, conversationID int) error
	AddMembers(ctx context.Context, conversationID int, memberIDs []int) error
	MarkAsRead(ctx context.Context, conversationID int, userID int) error
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

const conversationColumns = `id, is_group, name, direct_key, last_message_id, created_at`

// directKey canonicalizes an unordered user pair so a unique constraint can
// serialize concurrent first-contact creation.
func directKey(a, b int) string {
	pair := []int{a, b}
	sort.Ints(pair)
	return fmt.Sprintf("%d:%d", pair[0], pair[1])
}

// GetOrCreateDirect returns the existing 1:1 conversation between the two
// users or creates it with both memberships. Concurrent calls for the same
// pair converge on one conversation id.
func (r *ConversationRepo) GetOrCreateDirect(ctx context.Context, meID int, otherID int) (int, error) {
	if meID == otherID {
		return 0, errors.New("cannot start a conversation with self")
	}

	// Membership intersection: the first shared non-group conversation wins.
	var existingID int
	err := r.db.GetContext(ctx, &existingID, `SELECT c.id FROM conversations c
        JOIN conversation_members m1 ON m1.conversation_id = c.id AND m1.user_id=$1
        JOIN conversation_members m2 ON m2.conversation_id = c.id AND m2.user_id=$2
        WHERE c.is_group = FALSE
        ORDER BY c.id
        LIMIT 1`, meID, otherID)
	if err == nil {
		return existingID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	key := directKey(meID, otherID)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var conversationID int
	err = tx.GetContext(ctx, &conversationID, `INSERT INTO conversations (is_group, direct_key)
        VALUES (FALSE, $1)
        ON CONFLICT (direct_key) DO NOTHING
        RETURNING id`, key)
	if errors.Is(err, sql.ErrNoRows) {
		// Lost the creation race; the winner's conversation serves.
		tx.Rollback()
		var winnerID int
		if err = r.db.GetContext(ctx, &winnerID, `SELECT id FROM conversations WHERE direct_key=$1`, key); err != nil {
			return 0, err
		}
		return winnerID, nil
	}
	if err != nil {
		return 0, err
	}

	for _, userID := range []int{meID, otherID} {
		if _, err = tx.ExecContext(ctx, `INSERT INTO conversation_members (conversation_id, user_id, unread_count)
            VALUES ($1, $2, 0)`, conversationID, userID); err != nil {
			return 0, err
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return conversationID, nil
}

// GetConversation fetches a conversation by id.
func (r *ConversationRepo) GetConversation(ctx context.Context, conversationID int) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv, `SELECT `+conversationColumns+` FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// ListMemberships returns every membership held by the user.
func (r *ConversationRepo) ListMemberships(ctx context.Context, userID int) ([]models.Membership, error) {
	var memberships []models.Membership
	err := r.db.SelectContext(ctx, &memberships, `SELECT conversation_id, user_id, unread_count
        FROM conversation_members WHERE user_id=$1`, userID)
	return memberships, err
}

// GetMembers returns every membership of the conversation.
func (r *ConversationRepo) GetMembers(ctx context.Context, conversationID int) ([]models.Membership, error) {
	var memberships []models.Membership
	err := r.db.SelectContext(ctx, &memberships, `SELECT conversation_id, user_id, unread_count
        FROM conversation_members WHERE conversation_id=$1`, conversationID)
	return memberships, err
}

// GetMembership fetches the single (conversation, user) membership.
func (r *ConversationRepo) GetMembership(ctx context.Context, conversationID int, userID int) (models.Membership, error) {
	var membership models.Membership
	err := r.db.GetContext(ctx, &membership, `SELECT conversation_id, user_id, unread_count
        FROM conversation_members WHERE conversation_id=$1 AND user_id=$2`, conversationID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Membership{}, ErrMembershipNotFound
	}
	return membership, err
}

// CreateGroup creates the group conversation and all memberships atomically.
// Name uniqueness is enforced by the store-level constraint rather than a
// pre-check, so concurrent creators of the same name cannot both win.
func (r *ConversationRepo) CreateGroup(ctx context.Context, creatorID int, name string, memberIDs []int) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var conversationID int
	err = tx.GetContext(ctx, &conversationID, `INSERT INTO conversations (is_group, name)
        VALUES (TRUE, $1) RETURNING id`, name)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateGroupName
		}
		return 0, err
	}

	members := append([]int{creatorID}, memberIDs...)
	for _, userID := range members {
		if _, err = tx.ExecContext(ctx, `INSERT INTO conversation_members (conversation_id, user_id, unread_count)
            VALUES ($1, $2, 0)`, conversationID, userID); err != nil {
			if isUniqueViolation(err) {
				err = ErrConflict
			}
			return 0, err
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return conversationID, nil
}

// DeleteGroup removes the conversation row; memberships, messages and
// reactions go with it through the schema's cascading foreign keys, all
// within the single statement's transaction.
func (r *ConversationRepo) DeleteGroup(ctx context.Context, conversationID int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id=$1 AND is_group=TRUE`, conversationID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// AddMembers inserts a membership per listed user, skipping ones that
// already exist. Idempotent per member.
func (r *ConversationRepo) AddMembers(ctx context.Context, conversationID int, memberIDs []int) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, userID := range memberIDs {
		if _, err = tx.ExecContext(ctx, `INSERT INTO conversation_members (conversation_id, user_id, unread_count)
            VALUES ($1, $2, 0)
            ON CONFLICT (conversation_id, user_id) DO NOTHING`, conversationID, userID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// MarkAsRead resets the caller's unread counter; a no-op when it is already
// zero or the membership does not exist.
func (r *ConversationRepo) MarkAsRead(ctx context.Context, conversationID int, userID int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversation_members SET unread_count=0
        WHERE conversation_id=$1 AND user_id=$2 AND unread_count > 0`, conversationID, userID)
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
