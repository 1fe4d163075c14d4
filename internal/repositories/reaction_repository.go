package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messaging-service/internal/models"
)

// ReactionRepository abstracts the (message, user, emoji) reaction ledger.
type ReactionRepository interface {
	Toggle(ctx context.Context, messageID int, userID int, emoji string) (added bool, err error)
	ListByMessage(ctx context.Context, messageID int) ([]models.Reaction, error)
	ListByMessages(ctx context.Context, messageIDs []int) (map[int][]models.Reaction, error)
}

// ReactionRepo is a sqlx implementation of ReactionRepository.
type ReactionRepo struct {
	db *sqlx.DB
}

// NewReactionRepo constructs a ReactionRepo.
func NewReactionRepo(db *sqlx.DB) *ReactionRepo {
	return &ReactionRepo{db: db}
}

// Toggle removes the tuple when present, inserts it otherwise. The delete
// and conditional insert share one transaction, and the primary key keeps
// concurrent toggles from ever leaving two rows.
func (r *ReactionRepo) Toggle(ctx context.Context, messageID int, userID int, emoji string) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM reactions WHERE message_id=$1 AND user_id=$2 AND emoji=$3`,
		messageID, userID, emoji)
	if err != nil {
		return false, err
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	added := false
	if deleted == 0 {
		if _, err = tx.ExecContext(ctx, `INSERT INTO reactions (message_id, user_id, emoji)
            VALUES ($1, $2, $3)
            ON CONFLICT (message_id, user_id, emoji) DO NOTHING`, messageID, userID, emoji); err != nil {
			return false, err
		}
		added = true
	}

	if err = tx.Commit(); err != nil {
		return false, err
	}
	return added, nil
}

// ListByMessage returns all reactions on one message.
func (r *ReactionRepo) ListByMessage(ctx context.Context, messageID int) ([]models.Reaction, error) {
	var reactions []models.Reaction
	err := r.db.SelectContext(ctx, &reactions, `SELECT message_id, user_id, emoji
        FROM reactions WHERE message_id=$1`, messageID)
	return reactions, err
}

// ListByMessages returns reactions grouped by message id in one round trip.
func (r *ReactionRepo) ListByMessages(ctx context.Context, messageIDs []int) (map[int][]models.Reaction, error) {
	grouped := make(map[int][]models.Reaction)
	if len(messageIDs) == 0 {
		return grouped, nil
	}

	var reactions []models.Reaction
	err := r.db.SelectContext(ctx, &reactions, `SELECT message_id, user_id, emoji
        FROM reactions WHERE message_id = ANY($1)`, pq.Array(messageIDs))
	if err != nil {
		return nil, err
	}

	for _, reaction := range reactions {
		grouped[reaction.MessageID] = append(grouped[reaction.MessageID], reaction)
	}
	return grouped, nil
}
