package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pulsehr/module/chat/model"
)

func TestSortConversationsNewestFirst(t *testing.T) {
	base := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)
	cs := []*model.Conversation{
		{UserID: "2", LastAt: base.Add(-time.Hour)},
		{UserID: "3", LastAt: base},
		{UserID: "4", LastAt: base.Add(-2 * time.Hour)},
	}

	sortConversations(cs)

	got := []string{cs[0].UserID, cs[1].UserID, cs[2].UserID}
	assert.Equal(t, []string{"3", "2", "4"}, got)
}
