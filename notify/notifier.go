package notify

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"rentchat/domain"
)

const dismissAfter = 5 * time.Second

// Platform raises notifications on whatever the host exposes (browser
// notification API, desktop toast, terminal bell). Show returns a handle
// used to dismiss; the tag lets the platform collapse repeats per room.
type Platform interface {
	Show(tag, title, body string) (Handle, error)
}

type Handle interface {
	Close()
}

// Notifier applies the gate, fires at most one notification per message id
// and auto-dismisses after a fixed duration.
//
// Notifier is safe for concurrent use by multiple goroutines.
type Notifier struct {
	mu       sync.Mutex
	log      *slog.Logger
	gate     *Gate
	platform Platform
	fired    map[int64]struct{}
}

func NewNotifier(log *slog.Logger, gate *Gate, platform Platform) *Notifier {
	return &Notifier{
		log:      log,
		gate:     gate,
		platform: platform,
		fired:    make(map[int64]struct{}),
	}
}

// Offer runs one message through the gate and fires if allowed.
// It reports whether a notification was raised.
func (n *Notifier) Offer(msg domain.Message, ctx Context) bool {
	if !n.gate.ShouldNotify(msg, ctx) {
		return false
	}

	n.mu.Lock()
	if _, done := n.fired[msg.ID]; done {
		n.mu.Unlock()
		return false
	}
	n.fired[msg.ID] = struct{}{}
	n.mu.Unlock()

	tag := fmt.Sprintf("room-%d", msg.Room)
	handle, err := n.platform.Show(tag, msg.SenderID, preview(msg))
	if err != nil {
		n.log.Warn("Platform notification failed", "room", msg.Room, "error", err)
		return false
	}
	time.AfterFunc(dismissAfter, handle.Close)
	return true
}

func preview(msg domain.Message) string {
	switch msg.Type {
	case domain.ImageMessage:
		return "sent a photo"
	case domain.FileMessage:
		return "sent a file"
	default:
		return msg.Content
	}
}
