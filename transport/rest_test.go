package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rentchat/domain"
	apperrors "rentchat/errors"
)

func TestRESTClient_ListMessages(t *testing.T) {
	req := require.New(t)
	sentAt := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.Equal("/api/chat/rooms/7/messages", r.URL.Path)
		req.Equal("0", r.URL.Query().Get("page"))
		req.Equal("50", r.URL.Query().Get("size"))
		req.Equal("Bearer token-123", r.Header.Get("Authorization"))

		// Reverse-chronological, as the backend serves it.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []domain.Message{
				{ID: 2, Room: 7, SenderID: "landlord-3", Type: domain.TextMessage, Content: "hi", SentAt: sentAt.Add(time.Second)},
				{ID: 1, Room: 7, SenderID: "tenant-12", Type: domain.TextMessage, Content: "hello", SentAt: sentAt},
			},
		})
	}))
	defer server.Close()

	client := NewRESTClient(slog.Default(), server.URL, "token-123")
	msgs, err := client.ListMessages(context.Background(), 7, 0, 50)

	req.NoError(err)
	req.Len(msgs, 2)
	req.Equal(int64(2), msgs[0].ID)
}

func TestRESTClient_ListRooms(t *testing.T) {
	req := require.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.Equal("/api/chat/rooms", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []domain.RoomSummary{{ID: 7, Name: "12 Elm Street", UnreadCount: 3}},
		})
	}))
	defer server.Close()

	client := NewRESTClient(slog.Default(), server.URL, "token-123")
	rooms, err := client.ListRooms(context.Background(), 0, 20)

	req.NoError(err)
	req.Len(rooms, 1)
	req.Equal(3, rooms[0].UnreadCount)
}

func TestRESTClient_ErrorStatus(t *testing.T) {
	req := require.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewRESTClient(slog.Default(), server.URL, "")

	_, err := client.ListMessages(context.Background(), 7, 0, 50)
	req.ErrorIs(err, apperrors.ErrFetchFailed)

	err = client.PostMessage(context.Background(), domain.SendMessageCommand{
		Room: 7, SenderID: "tenant-12", Type: domain.TextMessage, Content: "hi",
	})
	req.ErrorIs(err, apperrors.ErrSendFailed)
}

func TestRESTClient_PostMessage(t *testing.T) {
	req := require.New(t)

	var got postMessageBody
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.Equal(http.MethodPost, r.Method)
		req.Equal("/api/chat/rooms/7/messages", r.URL.Path)
		req.NoError(json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewRESTClient(slog.Default(), server.URL, "token-123")
	err := client.PostMessage(context.Background(), domain.SendMessageCommand{
		Room: 7, SenderID: "tenant-12", Type: domain.TextMessage, Content: "is it still free?",
	})

	req.NoError(err)
	req.Equal("tenant-12", got.SenderID)
	req.Equal("is it still free?", got.Content)
}
