package typing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rentchat/domain"
)

func TestAggregator_OnEvent(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	t.Run("should add and remove peers per room", func(t *testing.T) {
		req := require.New(t)
		agg := NewAggregator("tenant-12")

		req.True(agg.OnEvent(domain.TypingEvent{Room: 7, UserID: "landlord-3", IsTyping: true}, now))
		req.Equal([]string{"landlord-3"}, agg.Active(7, now))

		req.True(agg.OnEvent(domain.TypingEvent{Room: 7, UserID: "landlord-3", IsTyping: false}, now))
		req.Empty(agg.Active(7, now))
	})

	t.Run("should ignore the current user", func(t *testing.T) {
		req := require.New(t)
		agg := NewAggregator("tenant-12")

		req.False(agg.OnEvent(domain.TypingEvent{Room: 7, UserID: "tenant-12", IsTyping: true}, now))
		req.Empty(agg.Active(7, now))
	})

	t.Run("should not report a change for a repeated start", func(t *testing.T) {
		req := require.New(t)
		agg := NewAggregator("tenant-12")

		req.True(agg.OnEvent(domain.TypingEvent{Room: 7, UserID: "landlord-3", IsTyping: true}, now))
		req.False(agg.OnEvent(domain.TypingEvent{Room: 7, UserID: "landlord-3", IsTyping: true}, now.Add(time.Second)))
	})

	t.Run("should not report a change for a stop without a start", func(t *testing.T) {
		req := require.New(t)
		agg := NewAggregator("tenant-12")

		req.False(agg.OnEvent(domain.TypingEvent{Room: 7, UserID: "landlord-3", IsTyping: false}, now))
	})

	t.Run("should expire a peer that never stopped", func(t *testing.T) {
		req := require.New(t)
		agg := NewAggregator("tenant-12")

		agg.OnEvent(domain.TypingEvent{Room: 7, UserID: "landlord-3", IsTyping: true}, now)
		req.Len(agg.Active(7, now.Add(9*time.Second)), 1)
		req.Empty(agg.Active(7, now.Add(11*time.Second)))
	})

	t.Run("should keep rooms independent", func(t *testing.T) {
		req := require.New(t)
		agg := NewAggregator("tenant-12")

		agg.OnEvent(domain.TypingEvent{Room: 7, UserID: "landlord-3", IsTyping: true}, now)
		agg.OnEvent(domain.TypingEvent{Room: 8, UserID: "agent-9", IsTyping: true}, now)

		req.Equal([]string{"landlord-3"}, agg.Active(7, now))
		req.Equal([]string{"agent-9"}, agg.Active(8, now))

		agg.ClearRoom(7)
		req.Empty(agg.Active(7, now))
		req.Equal([]string{"agent-9"}, agg.Active(8, now))
	})
}
