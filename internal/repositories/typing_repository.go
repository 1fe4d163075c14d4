package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"messaging-service/internal/models"
)

// TypingRepository tracks the ephemeral per-(conversation, user) typing
// state. Only the current indicator is kept; every status change supersedes
// the previous one.
type TypingRepository interface {
	SetTyping(ctx context.Context, conversationID int, userID int, isTyping bool, now time.Time) error
	ListIndicators(ctx context.Context, conversationID int) ([]models.TypingIndicator, error)
	ClearConversation(ctx context.Context, conversationID int) error
}

// TypingRepo stores indicators in a Redis hash per conversation. The key
// TTL is a sweep optimization only; staleness is decided by the read-time
// freshness filter.
type TypingRepo struct {
	cli *redis.Client
}

// NewTypingRepo constructs a TypingRepo.
func NewTypingRepo(cli *redis.Client) *TypingRepo {
	return &TypingRepo{cli: cli}
}

const typingKeyTTL = 30 * time.Second

type typingEntry struct {
	IsTyping  bool  `json:"is_typing"`
	UpdatedAt int64 `json:"updated_at_ms"`
}

func typingKey(conversationID int) string {
	return fmt.Sprintf("typing:%d", conversationID)
}

// SetTyping upserts the caller's indicator with the current timestamp.
func (r *TypingRepo) SetTyping(ctx context.Context, conversationID int, userID int, isTyping bool, now time.Time) error {
	payload, err := json.Marshal(typingEntry{IsTyping: isTyping, UpdatedAt: now.UnixMilli()})
	if err != nil {
		return err
	}

	key := typingKey(conversationID)
	pipe := r.cli.TxPipeline()
	pipe.HSet(ctx, key, strconv.Itoa(userID), payload)
	pipe.Expire(ctx, key, typingKeyTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// ListIndicators returns every stored indicator for the conversation,
// stale ones included. Freshness is the caller's read-time concern.
func (r *TypingRepo) ListIndicators(ctx context.Context, conversationID int) ([]models.TypingIndicator, error) {
	fields, err := r.cli.HGetAll(ctx, typingKey(conversationID)).Result()
	if err != nil {
		return nil, err
	}

	indicators := make([]models.TypingIndicator, 0, len(fields))
	for field, raw := range fields {
		userID, err := strconv.Atoi(field)
		if err != nil {
			continue
		}
		var entry typingEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		indicators = append(indicators, models.TypingIndicator{
			ConversationID: conversationID,
			UserID:         userID,
			IsTyping:       entry.IsTyping,
			UpdatedAt:      time.UnixMilli(entry.UpdatedAt),
		})
	}
	return indicators, nil
}

// ClearConversation drops all indicators for a conversation, used when a
// group is deleted.
func (r *TypingRepo) ClearConversation(ctx context.Context, conversationID int) error {
	return r.cli.Del(ctx, typingKey(conversationID)).Err()
}

// LiveTypists filters indicators down to users other than the caller that
// still count as typing at the given instant.
func LiveTypists(indicators []models.TypingIndicator, meID int, now time.Time) []int {
	var userIDs []int
	for _, ind := range indicators {
		if ind.UserID == meID {
			continue
		}
		if ind.Live(now) {
			userIDs = append(userIDs, ind.UserID)
		}
	}
	return userIDs
}
