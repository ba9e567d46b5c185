package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "rentchat/errors"
)

func TestUploadClient_Upload(t *testing.T) {
	req := require.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.NoError(r.ParseMultipartForm(1 << 20))
		req.Equal("chat", r.FormValue("module"))
		// %PDF magic bytes must have been sniffed, not guessed from the name.
		req.Equal("application/pdf", r.FormValue("contentType"))

		file, header, err := r.FormFile("file")
		req.NoError(err)
		defer func() { _ = file.Close() }()
		req.Equal("lease.bin", header.Filename)

		_ = json.NewEncoder(w).Encode(map[string]string{"fileId": "f-001"})
	}))
	defer server.Close()

	client := NewUploadClient(slog.Default(), server.URL, "token-123")
	ref, err := client.Upload(context.Background(), "lease.bin", strings.NewReader("%PDF-1.7 fake lease"), "chat")

	req.NoError(err)
	req.Equal("f-001", ref)
}

func TestUploadClient_Failure(t *testing.T) {
	req := require.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInsufficientStorage)
	}))
	defer server.Close()

	client := NewUploadClient(slog.Default(), server.URL, "")
	_, err := client.Upload(context.Background(), "lease.pdf", strings.NewReader("%PDF-1.7"), "chat")

	req.ErrorIs(err, apperrors.ErrUploadFailed)
}
