// Package notify decides whether an incoming message becomes a
// user-visible notification and suppresses repeats per message.
package notify

import (
	"rentchat/domain"
)

// Context is the visibility state the rendering surface reports.
type Context struct {
	ChatSurfaceOpen bool
	PageVisible     bool
	OpenRoom        domain.RoomID
	PermissionOK    bool
}

// Gate holds the suppression rule for one user session.
type Gate struct {
	userID string
}

func NewGate(userID string) *Gate {
	return &Gate{userID: userID}
}

// ShouldNotify suppresses iff the page is visible, the chat surface is open
// and the message's room is the one on screen. Otherwise it notifies for
// peer messages, provided the platform granted notification permission.
func (g *Gate) ShouldNotify(msg domain.Message, ctx Context) bool {
	if ctx.PageVisible && ctx.ChatSurfaceOpen && msg.Room == ctx.OpenRoom {
		return false
	}
	if msg.SenderID == g.userID {
		return false
	}
	return ctx.PermissionOK
}
