package projection

import (
	"strings"
	"time"

	"rentchat/domain"
)

const (
	// matchWindow is the widest sent-time distance at which an optimistic
	// message can still be matched to an authoritative copy.
	matchWindow = 5 * time.Second
	// instantMatchWindow accepts a match on timing alone: under 2s the
	// resolver matches even when content and type differ.
	instantMatchWindow = 2 * time.Second
)

// KeyResolver decides whether two message records represent the same logical
// message. It is only consulted for an optimistic existing entry against an
// authoritative candidate from the same sender in the same room.
type KeyResolver struct{}

// Matches reports whether candidate is the authoritative copy of existing.
func (KeyResolver) Matches(candidate, existing domain.Message) bool {
	if !existing.IsOptimistic() || candidate.IsOptimistic() {
		return false
	}
	if existing.SenderID != candidate.SenderID || existing.Room != candidate.Room {
		return false
	}

	timeDiff := existing.SentAt.Sub(candidate.SentAt)
	if timeDiff < 0 {
		timeDiff = -timeDiff
	}
	if timeDiff >= matchWindow {
		return false
	}

	contentSimilar := existing.Content == "" || candidate.Content == "" ||
		strings.TrimSpace(existing.Content) == strings.TrimSpace(candidate.Content) ||
		existing.Content == candidate.Content
	typeMatches := existing.Type == candidate.Type

	return (contentSimilar && typeMatches) || timeDiff < instantMatchWindow
}
