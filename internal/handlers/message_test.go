package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/projection"
	"messaging-service/internal/repositories"
	"messaging-service/internal/ws"
)

func setupMessageRouter(handler *MessageHandler, ident *models.Identity) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if ident != nil {
			c.Set("identity", *ident)
		}
		c.Next()
	})
	r.GET("/conversations/:conversation_id/messages", handler.List)
	r.POST("/conversations/:conversation_id/messages", handler.Send)
	r.PATCH("/messages/:message_id", handler.Edit)
	r.DELETE("/messages/:message_id", handler.Delete)
	r.POST("/messages/:message_id/reactions", handler.ToggleReaction)
	return r
}

func TestListMessagesWithReactions(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	reactionRepo := new(mocks.ReactionRepositoryMock)
	projector := projection.NewProjector(userRepo, new(mocks.ConversationRepositoryMock), msgRepo, reactionRepo)
	handler := NewMessageHandler(msgRepo, reactionRepo, userRepo, projector, ws.NewHub(zap.NewNop()), nil)
	router := setupMessageRouter(handler, &models.Identity{Subject: "sub-1"})

	userRepo.On("GetBySubject", mock.Anything, "sub-1").Return(models.User{ID: 1}, nil).Once()
	msgRepo.On("ListByConversation", mock.Anything, 5).
		Return([]models.Message{{ID: 10, ConversationID: 5, SenderID: 2, Content: "hi"}}, nil).Once()
	reactionRepo.On("ListByMessages", mock.Anything, []int{10}).
		Return(map[int][]models.Reaction{10: {{MessageID: 10, UserID: 1, Emoji: "👍"}}}, nil).Once()
	userRepo.On("GetByIDs", mock.Anything, []int{2}).
		Return([]models.User{{ID: 2, DisplayName: "Bob"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/5/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []projection.MessageView `json:"messages"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "Bob", resp.Messages[0].SenderName)
	require.Len(t, resp.Messages[0].Reactions, 1)
	assert.Equal(t, "👍", resp.Messages[0].Reactions[0].Emoji)
	msgRepo.AssertExpectations(t)
	reactionRepo.AssertExpectations(t)
}

func TestListMessagesUnauthenticatedReturnsEmpty(t *testing.T) {
	handler := NewMessageHandler(new(mocks.MessageRepositoryMock), new(mocks.ReactionRepositoryMock), new(mocks.UserRepositoryMock), nil, ws.NewHub(zap.NewNop()), nil)
	router := setupMessageRouter(handler, nil)

	req := httptest.NewRequest(http.MethodGet, "/conversations/5/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"messages":[]}`, rec.Body.String())
}

func TestSendMessageSuccess(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(msgRepo, new(mocks.ReactionRepositoryMock), userRepo, nil, ws.NewHub(zap.NewNop()), nil)
	router := setupMessageRouter(handler, &models.Identity{Subject: "sub-1"})

	userRepo.On("GetBySubject", mock.Anything, "sub-1").Return(models.User{ID: 1}, nil).Once()
	msgRepo.On("Send", mock.Anything, 5, 1, "hello", (*int)(nil)).
		Return(models.Message{ID: 10, ConversationID: 5, SenderID: 1, Content: "hello"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/5/messages", bytes.NewBufferString(`{"content":"hello"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var msg models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))
	assert.Equal(t, 10, msg.ID)
	msgRepo.AssertExpectations(t)
}

func TestSendMessageConversationGone(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(msgRepo, new(mocks.ReactionRepositoryMock), userRepo, nil, ws.NewHub(zap.NewNop()), nil)
	router := setupMessageRouter(handler, &models.Identity{Subject: "sub-1"})

	userRepo.On("GetBySubject", mock.Anything, "sub-1").Return(models.User{ID: 1}, nil).Once()
	msgRepo.On("Send", mock.Anything, 99, 1, "hello", (*int)(nil)).
		Return(models.Message{}, repositories.ErrConversationNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/99/messages", bytes.NewBufferString(`{"content":"hello"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	msgRepo.AssertExpectations(t)
}

func TestSendMessageEmptyContent(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	handler := NewMessageHandler(new(mocks.MessageRepositoryMock), new(mocks.ReactionRepositoryMock), userRepo, nil, ws.NewHub(zap.NewNop()), nil)
	router := setupMessageRouter(handler, &models.Identity{Subject: "sub-1"})

	userRepo.On("GetBySubject", mock.Anything, "sub-1").Return(models.User{ID: 1}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/5/messages", bytes.NewBufferString(`{"content":""}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEditMessageSuccess(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(msgRepo, new(mocks.ReactionRepositoryMock), userRepo, nil, ws.NewHub(zap.NewNop()), nil)
	router := setupMessageRouter(handler, &models.Identity{Subject: "sub-1"})

	userRepo.On("GetBySubject", mock.Anything, "sub-1").Return(models.User{ID: 1}, nil).Once()
	msgRepo.On("Edit", mock.Anything, 10, 1, "fixed").
		Return(models.Message{ID: 10, ConversationID: 5, SenderID: 1, Content: "fixed", IsEdited: true}, nil).Once()

	req := httptest.NewRequest(http.MethodPatch, "/messages/10", bytes.NewBufferString(`{"content":"fixed"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var msg models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))
	assert.True(t, msg.IsEdited)
	msgRepo.AssertExpectations(t)
}

func TestEditForeignMessage(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(msgRepo, new(mocks.ReactionRepositoryMock), userRepo, nil, ws.NewHub(zap.NewNop()), nil)
	router := setupMessageRouter(handler, &models.Identity{Subject: "sub-1"})

	userRepo.On("GetBySubject", mock.Anything, "sub-1").Return(models.User{ID: 1}, nil).Once()
	msgRepo.On("Edit", mock.Anything, 10, 1, "fixed").
		Return(models.Message{}, repositories.ErrNotSender).Once()

	req := httptest.NewRequest(http.MethodPatch, "/messages/10", bytes.NewBufferString(`{"content":"fixed"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	msgRepo.AssertExpectations(t)
}

func TestEditDeletedMessage(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(msgRepo, new(mocks.ReactionRepositoryMock), userRepo, nil, ws.NewHub(zap.NewNop()), nil)
	router := setupMessageRouter(handler, &models.Identity{Subject: "sub-1"})

	userRepo.On("GetBySubject", mock.Anything, "sub-1").Return(models.User{ID: 1}, nil).Once()
	msgRepo.On("Edit", mock.Anything, 10, 1, "fixed").
		Return(models.Message{}, repositories.ErrMessageDeleted).Once()

	req := httptest.NewRequest(http.MethodPatch, "/messages/10", bytes.NewBufferString(`{"content":"fixed"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	msgRepo.AssertExpectations(t)
}

func TestDeleteMessageSuccess(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(msgRepo, new(mocks.ReactionRepositoryMock), userRepo, nil, ws.NewHub(zap.NewNop()), nil)
	router := setupMessageRouter(handler, &models.Identity{Subject: "sub-1"})

	userRepo.On("GetBySubject", mock.Anything, "sub-1").Return(models.User{ID: 1}, nil).Once()
	msgRepo.On("SoftDelete", mock.Anything, 10, 1).Return(nil).Once()
	msgRepo.On("GetMessage", mock.Anything, 10).
		Return(models.Message{ID: 10, ConversationID: 5, SenderID: 1, IsDeleted: true}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/messages/10", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	msgRepo.AssertExpectations(t)
}

func TestDeleteForeignMessage(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(msgRepo, new(mocks.ReactionRepositoryMock), userRepo, nil, ws.NewHub(zap.NewNop()), nil)
	router := setupMessageRouter(handler, &models.Identity{Subject: "sub-1"})

	userRepo.On("GetBySubject", mock.Anything, "sub-1").Return(models.User{ID: 1}, nil).Once()
	msgRepo.On("SoftDelete", mock.Anything, 10, 1).Return(repositories.ErrNotSender).Once()

	req := httptest.NewRequest(http.MethodDelete, "/messages/10", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	msgRepo.AssertExpectations(t)
}

func TestToggleReactionAdds(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	reactionRepo := new(mocks.ReactionRepositoryMock)
	handler := NewMessageHandler(msgRepo, reactionRepo, userRepo, nil, ws.NewHub(zap.NewNop()), nil)
	router := setupMessageRouter(handler, &models.Identity{Subject: "sub-1"})

	userRepo.On("GetBySubject", mock.Anything, "sub-1").Return(models.User{ID: 1}, nil).Once()
	msgRepo.On("GetMessage", mock.Anything, 10).
		Return(models.Message{ID: 10, ConversationID: 5, SenderID: 2}, nil).Once()
	reactionRepo.On("Toggle", mock.Anything, 10, 1, "❤️").Return(true, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages/10/reactions", bytes.NewBufferString(`{"emoji":"❤️"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"added":true}`, rec.Body.String())
	reactionRepo.AssertExpectations(t)
}

func TestToggleReactionRemoves(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	reactionRepo := new(mocks.ReactionRepositoryMock)
	handler := NewMessageHandler(msgRepo, reactionRepo, userRepo, nil, ws.NewHub(zap.NewNop()), nil)
	router := setupMessageRouter(handler, &models.Identity{Subject: "sub-1"})

	userRepo.On("GetBySubject", mock.Anything, "sub-1").Return(models.User{ID: 1}, nil).Once()
	msgRepo.On("GetMessage", mock.Anything, 10).
		Return(models.Message{ID: 10, ConversationID: 5, SenderID: 2}, nil).Once()
	reactionRepo.On("Toggle", mock.Anything, 10, 1, "❤️").Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages/10/reactions", bytes.NewBufferString(`{"emoji":"❤️"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"added":false}`, rec.Body.String())
	reactionRepo.AssertExpectations(t)
}

func TestToggleReactionUnauthenticatedNoOp(t *testing.T) {
	reactionRepo := new(mocks.ReactionRepositoryMock)
	handler := NewMessageHandler(new(mocks.MessageRepositoryMock), reactionRepo, new(mocks.UserRepositoryMock), nil, ws.NewHub(zap.NewNop()), nil)
	router := setupMessageRouter(handler, nil)

	req := httptest.NewRequest(http.MethodPost, "/messages/10/reactions", bytes.NewBufferString(`{"emoji":"❤️"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	reactionRepo.AssertNotCalled(t, "Toggle", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestToggleReactionUnknownMessage(t *testing.T) {
	userRepo := new(mocks.UserRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(msgRepo, new(mocks.ReactionRepositoryMock), userRepo, nil, ws.NewHub(zap.NewNop()), nil)
	router := setupMessageRouter(handler, &models.Identity{Subject: "sub-1"})

	userRepo.On("GetBySubject", mock.Anything, "sub-1").Return(models.User{ID: 1}, nil).Once()
	msgRepo.On("GetMessage", mock.Anything, 99).
		Return(models.Message{}, repositories.ErrMessageNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/messages/99/reactions", bytes.NewBufferString(`{"emoji":"❤️"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	msgRepo.AssertExpectations(t)
}
