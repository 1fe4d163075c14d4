package repositories

import (
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestClassifySendErrorAbsentConversation(t *testing.T) {
	err := classifySendError(&pq.Error{Code: "23503", Constraint: "messages_conversation_id_fkey"})
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestClassifySendErrorOtherConstraint(t *testing.T) {
	orig := &pq.Error{Code: "23503", Constraint: "messages_sender_id_fkey"}
	assert.Equal(t, error(orig), classifySendError(orig))
}

func TestClassifySendErrorPassesThrough(t *testing.T) {
	assert.ErrorIs(t, classifySendError(assert.AnError), assert.AnError)
}
