package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	apperrors "rentchat/errors"
)

// UploadClient stores attachments ahead of their message. A send carrying
// a file is blocked until the upload resolves; on failure the send is
// aborted and no optimistic entry exists.
type UploadClient struct {
	baseURL string
	token   string
	http    *http.Client
	log     *slog.Logger
}

func NewUploadClient(log *slog.Logger, baseURL, token string) *UploadClient {
	return &UploadClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 2 * time.Minute},
		log:     log,
	}
}

type uploadResponse struct {
	FileID string `json:"fileId"`
}

// Upload sniffs the real content type from the payload bytes, streams the
// file as multipart form data and returns the server-side file reference.
func (u *UploadClient) Upload(ctx context.Context, filename string, r io.Reader, module string) (string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", apperrors.ErrUploadFailed, filename, err)
	}
	detected := mimetype.Detect(raw)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrUploadFailed, err)
	}
	if _, err = part.Write(raw); err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrUploadFailed, err)
	}
	if err = writer.WriteField("module", module); err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrUploadFailed, err)
	}
	if err = writer.WriteField("contentType", detected.String()); err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrUploadFailed, err)
	}
	if err = writer.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrUploadFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+"/api/files", &body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrUploadFailed, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if u.token != "" {
		req.Header.Set("Authorization", "Bearer "+u.token)
	}

	resp, err := u.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrUploadFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d", apperrors.ErrUploadFailed, resp.StatusCode)
	}

	var out uploadResponse
	if err = json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode: %v", apperrors.ErrUploadFailed, err)
	}
	u.log.Debug("Attachment stored", "file", filename, "mime", detected.String(), "ref", out.FileID)
	return out.FileID, nil
}
