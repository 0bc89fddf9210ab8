package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Transcribe uploads the audio file at handle and returns the raw transcript.
func (c *Client) Transcribe(ctx context.Context, handle string) (string, error) {
	const op = "transcribe"

	f, err := os.Open(handle)
	if err != nil {
		return "", fmt.Errorf("%s: open audio: %w", op, err)
	}
	defer f.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("audio", filepath.Base(handle))
	if err != nil {
		return "", fmt.Errorf("%s: create multipart file: %w", op, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("%s: copy audio data: %w", op, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("%s: close multipart writer: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe", body)
	if err != nil {
		return "", fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var resp struct {
		Transcription string `json:"transcription"`
	}
	if err := c.send(op, req, &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Transcription), nil
}

// Cleanup asks the remote to normalize a raw transcript.
func (c *Client) Cleanup(ctx context.Context, text string) (string, error) {
	var resp struct {
		CleanedText string `json:"cleanedText"`
	}
	req := map[string]string{"text": text}
	if err := c.doJSON(ctx, "cleanup text", http.MethodPost, "/cleanup", req, &resp); err != nil {
		return "", err
	}
	return resp.CleanedText, nil
}
