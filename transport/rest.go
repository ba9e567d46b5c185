// Package transport implements the backend collaborators the engine
// consumes: the REST API, the WebSocket push channel, and the file
// upload service.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"rentchat/domain"
	apperrors "rentchat/errors"
)

const defaultTimeout = 30 * time.Second

// RESTClient talks to the marketplace chat API. Paged responses arrive
// wrapped in a {content: [...]} envelope; message pages are
// reverse-chronological.
type RESTClient struct {
	baseURL string
	token   string
	http    *http.Client
	log     *slog.Logger
}

type RESTOption func(*RESTClient)

func WithHTTPClient(c *http.Client) RESTOption {
	return func(r *RESTClient) { r.http = c }
}

func NewRESTClient(log *slog.Logger, baseURL, token string, opts ...RESTOption) *RESTClient {
	client := &RESTClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
		log:     log,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type pagedRooms struct {
	Content []domain.RoomSummary `json:"content"`
}

type pagedMessages struct {
	Content []domain.Message `json:"content"`
}

func (r *RESTClient) ListRooms(ctx context.Context, page, size int) ([]domain.RoomSummary, error) {
	url := fmt.Sprintf("%s/api/chat/rooms?page=%d&size=%d", r.baseURL, page, size)
	var out pagedRooms
	if err := r.get(ctx, url, &out); err != nil {
		return nil, fmt.Errorf("%w: rooms: %v", apperrors.ErrFetchFailed, err)
	}
	return out.Content, nil
}

func (r *RESTClient) ListMessages(ctx context.Context, room domain.RoomID, page, size int) ([]domain.Message, error) {
	url := fmt.Sprintf("%s/api/chat/rooms/%d/messages?page=%d&size=%d", r.baseURL, room, page, size)
	var out pagedMessages
	if err := r.get(ctx, url, &out); err != nil {
		return nil, fmt.Errorf("%w: room %d: %v", apperrors.ErrFetchFailed, room, err)
	}
	return out.Content, nil
}

type postMessageBody struct {
	SenderID      string             `json:"senderId"`
	MessageType   domain.MessageType `json:"messageType"`
	Content       string             `json:"content"`
	AttachmentRef string             `json:"attachmentRef,omitempty"`
	ReplyTo       *int64             `json:"replyToMessageId,omitempty"`
}

func (r *RESTClient) PostMessage(ctx context.Context, cmd domain.SendMessageCommand) error {
	url := fmt.Sprintf("%s/api/chat/rooms/%d/messages", r.baseURL, cmd.Room)
	body := postMessageBody{
		SenderID:      cmd.SenderID,
		MessageType:   cmd.Type,
		Content:       cmd.Content,
		AttachmentRef: cmd.AttachmentRef,
		ReplyTo:       cmd.ReplyTo,
	}
	if err := r.post(ctx, url, body); err != nil {
		return fmt.Errorf("%w: room %d: %v", apperrors.ErrSendFailed, cmd.Room, err)
	}
	return nil
}

func (r *RESTClient) MarkRead(ctx context.Context, cmd domain.MarkReadCommand) error {
	url := fmt.Sprintf("%s/api/chat/messages/%d/read?roomId=%d", r.baseURL, cmd.MessageID, cmd.Room)
	if err := r.post(ctx, url, nil); err != nil {
		return fmt.Errorf("mark read %d: %w", cmd.MessageID, err)
	}
	return nil
}

func (r *RESTClient) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	return r.do(req, out)
}

func (r *RESTClient) post(ctx context.Context, url string, body any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return r.do(req, nil)
}

func (r *RESTClient) do(req *http.Request, out any) error {
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
