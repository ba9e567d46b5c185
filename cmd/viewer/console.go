package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gookit/color"

	"rentchat/domain"
	"rentchat/domain/event"
)

const snapshotTail = 20

// consoleSink renders engine events as terminal lines. The first timeline
// snapshot prints the tail of the conversation; afterwards only added
// messages are printed, so poll-driven re-merges stay silent.
type consoleSink struct {
	userID  string
	printed bool
}

func newConsoleSink(userID string) *consoleSink {
	return &consoleSink{userID: userID}
}

func (s *consoleSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.TimelineUpdated:
		s.renderTimeline(evt)
	case event.TypingChanged:
		s.renderTyping(evt)
	case event.TransportChanged:
		s.renderTransport(evt)
	case event.Notification:
		header := color.New(color.BgBlack, color.FgYellow).Render("● new message")
		fmt.Printf("%s in room %d\n", header, evt.Room)
	}
	return nil
}

func (s *consoleSink) renderTimeline(evt event.TimelineUpdated) {
	if !s.printed {
		s.printed = true
		tail := evt.Messages
		if len(tail) > snapshotTail {
			tail = tail[len(tail)-snapshotTail:]
		}
		for _, msg := range tail {
			s.renderMessage(msg)
		}
		return
	}

	added := make(map[int64]struct{}, len(evt.Change.Added))
	for _, id := range evt.Change.Added {
		added[id] = struct{}{}
	}
	for _, msg := range evt.Messages {
		if _, ok := added[msg.ID]; ok {
			s.renderMessage(msg)
		}
	}
}

func (s *consoleSink) renderMessage(msg domain.Message) {
	stamp := msg.SentAt.Local().Format("15:04:05")
	sender := color.New(color.FgCyan).Render(msg.SenderID)
	if msg.SenderID == s.userID {
		sender = color.New(color.FgGreen).Render("you")
	}
	if msg.IsOptimistic() {
		sender = color.New(color.FgGray).Render(msg.SenderID + " (sending)")
	}

	body := msg.Content
	switch msg.Type {
	case domain.ImageMessage:
		body = color.New(color.FgMagenta).Render("[image] " + msg.AttachmentRef)
	case domain.FileMessage:
		body = color.New(color.FgMagenta).Render("[file] " + msg.AttachmentRef)
	}
	if msg.IsDeleted {
		body = color.New(color.FgGray).Render("(deleted)")
	} else if msg.IsEdited {
		body += color.New(color.FgGray).Render(" (edited)")
	}

	fmt.Printf("%s %s: %s\n", stamp, sender, body)
}

func (s *consoleSink) renderTyping(evt event.TypingChanged) {
	if len(evt.Users) == 0 {
		return
	}
	line := fmt.Sprintf("%s typing...", strings.Join(evt.Users, ", "))
	fmt.Println(color.New(color.FgGray).Render(line))
}

func (s *consoleSink) renderTransport(evt event.TransportChanged) {
	var header string
	switch evt.Mode {
	case domain.Live:
		header = color.New(color.BgBlack, color.FgGreen).Render("LIVE")
	case domain.Degraded:
		header = color.New(color.BgBlack, color.FgYellow).Render("DEGRADED")
	default:
		header = color.New(color.BgBlack, color.FgRed).Render("DISCONNECTED")
	}
	fmt.Printf("%s %s\n", header, evt.At.Local().Format(time.RFC822))
}
