// Package projection assembles the read-optimized views served to clients
// by joining the user, conversation, message and reaction stores.
package projection

import (
	"context"
	"errors"
	"sort"
	"time"

	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
)

// ConversationView is a conversation annotated for the caller: the other
// participant(s), the caller's unread counter and the last message.
type ConversationView struct {
	ID          int             `json:"id"`
	IsGroup     bool            `json:"is_group"`
	Name        string          `json:"name,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UnreadCount int             `json:"unread_count"`
	OtherUser   *models.User    `json:"other_user,omitempty"`
	OtherUsers  []models.User   `json:"other_users,omitempty"`
	LastMessage *models.Message `json:"last_message,omitempty"`
}

// MessageView is a message annotated with its sender and reactions.
type MessageView struct {
	models.Message
	ReplyToID       *int              `json:"reply_to_id,omitempty"`
	SenderName      string            `json:"sender_name,omitempty"`
	SenderAvatarURL string            `json:"sender_avatar_url,omitempty"`
	Reactions       []models.Reaction `json:"reactions"`
}

// Projector builds views from the underlying repositories.
type Projector struct {
	users         repositories.UserRepository
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	reactions     repositories.ReactionRepository
}

// NewProjector constructs a Projector.
func NewProjector(users repositories.UserRepository, conversations repositories.ConversationRepository, messages repositories.MessageRepository, reactions repositories.ReactionRepository) *Projector {
	return &Projector{
		users:         users,
		conversations: conversations,
		messages:      messages,
		reactions:     reactions,
	}
}

// ConversationList materializes the caller's conversation list, newest
// activity first. Memberships pointing at missing conversations are
// silently dropped.
func (p *Projector) ConversationList(ctx context.Context, me models.User) ([]ConversationView, error) {
	memberships, err := p.conversations.ListMemberships(ctx, me.ID)
	if err != nil {
		return nil, err
	}

	views := make([]ConversationView, 0, len(memberships))
	for _, membership := range memberships {
		conv, err := p.conversations.GetConversation(ctx, membership.ConversationID)
		if errors.Is(err, repositories.ErrConversationNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		view := ConversationView{
			ID:          conv.ID,
			IsGroup:     conv.IsGroup,
			Name:        conv.Name.String,
			CreatedAt:   conv.CreatedAt,
			UnreadCount: membership.UnreadCount,
		}

		if !conv.IsGroup {
			if other, err := p.otherMember(ctx, conv.ID, me.ID); err == nil {
				view.OtherUser = other
			} else if !errors.Is(err, repositories.ErrUserNotFound) {
				return nil, err
			}
		}

		if conv.LastMessageID.Valid {
			last, err := p.messages.GetMessage(ctx, int(conv.LastMessageID.Int64))
			if err == nil {
				view.LastMessage = &last
			} else if !errors.Is(err, repositories.ErrMessageNotFound) {
				return nil, err
			}
		}

		views = append(views, view)
	}

	sort.Slice(views, func(i, j int) bool {
		return activityTime(views[i]).After(activityTime(views[j]))
	})
	return views, nil
}

// ConversationByID materializes a single conversation for the caller:
// the sole other member for 1:1 conversations, the full member list for
// groups. Returns nil when the conversation is absent.
func (p *Projector) ConversationByID(ctx context.Context, me models.User, conversationID int) (*ConversationView, error) {
	conv, err := p.conversations.GetConversation(ctx, conversationID)
	if errors.Is(err, repositories.ErrConversationNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	view := ConversationView{
		ID:        conv.ID,
		IsGroup:   conv.IsGroup,
		Name:      conv.Name.String,
		CreatedAt: conv.CreatedAt,
	}

	if membership, err := p.conversations.GetMembership(ctx, conversationID, me.ID); err == nil {
		view.UnreadCount = membership.UnreadCount
	} else if !errors.Is(err, repositories.ErrMembershipNotFound) {
		return nil, err
	}

	if conv.IsGroup {
		members, err := p.conversations.GetMembers(ctx, conversationID)
		if err != nil {
			return nil, err
		}
		otherIDs := make([]int, 0, len(members))
		for _, member := range members {
			if member.UserID != me.ID {
				otherIDs = append(otherIDs, member.UserID)
			}
		}
		others, err := p.users.GetByIDs(ctx, otherIDs)
		if err != nil {
			return nil, err
		}
		view.OtherUsers = others
	} else {
		other, err := p.otherMember(ctx, conversationID, me.ID)
		if err != nil && !errors.Is(err, repositories.ErrUserNotFound) {
			return nil, err
		}
		view.OtherUser = other
	}

	return &view, nil
}

// MessageList materializes every message of the conversation in insertion
// order with sender attribution and reactions.
func (p *Projector) MessageList(ctx context.Context, conversationID int) ([]MessageView, error) {
	msgs, err := p.messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	messageIDs := make([]int, 0, len(msgs))
	senderIDs := make([]int, 0, len(msgs))
	seen := map[int]struct{}{}
	for _, m := range msgs {
		messageIDs = append(messageIDs, m.ID)
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
	}

	reactionsByMessage, err := p.reactions.ListByMessages(ctx, messageIDs)
	if err != nil {
		return nil, err
	}

	senders, err := p.users.GetByIDs(ctx, senderIDs)
	if err != nil {
		return nil, err
	}
	senderByID := make(map[int]models.User, len(senders))
	for _, u := range senders {
		senderByID[u.ID] = u
	}

	views := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		view := MessageView{Message: m}
		if m.ReplyToID.Valid {
			replyTo := int(m.ReplyToID.Int64)
			view.ReplyToID = &replyTo
		}
		if sender, ok := senderByID[m.SenderID]; ok {
			view.SenderName = sender.DisplayName
			view.SenderAvatarURL = sender.AvatarURL
		}
		reactions := reactionsByMessage[m.ID]
		if reactions == nil {
			reactions = []models.Reaction{}
		}
		view.Reactions = reactions
		views = append(views, view)
	}
	return views, nil
}

func (p *Projector) otherMember(ctx context.Context, conversationID int, meID int) (*models.User, error) {
	members, err := p.conversations.GetMembers(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	for _, member := range members {
		if member.UserID != meID {
			user, err := p.users.GetByID(ctx, member.UserID)
			if err != nil {
				return nil, err
			}
			return &user, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func activityTime(view ConversationView) time.Time {
	if view.LastMessage != nil {
		return view.LastMessage.CreatedAt
	}
	return view.CreatedAt
}
