package repositories

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"messaging-service/internal/models"
)

func TestLiveTypistsFreshnessWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	indicators := []models.TypingIndicator{
		{UserID: 2, IsTyping: true, UpdatedAt: now.Add(-time.Second)},
		{UserID: 3, IsTyping: true, UpdatedAt: now.Add(-3500 * time.Millisecond)},
		{UserID: 4, IsTyping: false, UpdatedAt: now},
	}

	assert.Equal(t, []int{2}, LiveTypists(indicators, 1, now))
}

func TestLiveTypistsExcludesCaller(t *testing.T) {
	now := time.Now()
	indicators := []models.TypingIndicator{
		{UserID: 1, IsTyping: true, UpdatedAt: now},
		{UserID: 2, IsTyping: true, UpdatedAt: now},
	}

	assert.Equal(t, []int{2}, LiveTypists(indicators, 1, now))
}

func TestLiveTypistsEmptyInput(t *testing.T) {
	assert.Empty(t, LiveTypists(nil, 1, time.Now()))
}

func TestTypingIndicatorLiveBoundary(t *testing.T) {
	now := time.Now()

	fresh := models.TypingIndicator{IsTyping: true, UpdatedAt: now.Add(-2999 * time.Millisecond)}
	assert.True(t, fresh.Live(now))

	stale := models.TypingIndicator{IsTyping: true, UpdatedAt: now.Add(-models.TypingFreshness)}
	assert.False(t, stale.Live(now))

	stopped := models.TypingIndicator{IsTyping: false, UpdatedAt: now}
	assert.False(t, stopped.Live(now))
}
