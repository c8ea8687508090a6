// Package whisper adapts the GPU transcription service.
package whisper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"PersonaPipeline/internal/infrastructure/httpjson"
	"PersonaPipeline/internal/ports"
)

// Client uploads audio files for transcription.
type Client struct {
	http *httpjson.Client
}

var _ ports.Transcriber = (*Client)(nil)

// NewClient creates a client for the service at endpoint. Transcription of
// long videos is slow, so timeout should be generous.
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{http: httpjson.NewClient(endpoint, "", timeout)}
}

// Transcribe returns the text spoken in the audio file. An empty string with
// a nil error means the service found nothing to transcribe.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (string, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer file.Close()

	body, writer := io.Pipe()
	defer body.Close()
	form := multipart.NewWriter(writer)
	go func() {
		part, err := form.CreateFormFile("file", filepath.Base(audioPath))
		if err == nil {
			_, err = io.Copy(part, file)
		}
		if err == nil {
			err = form.Close()
		}
		_ = writer.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.http.Endpoint()+"/transcribe", body)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.http.Do(req)
	if errors.Is(err, httpjson.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", filepath.Base(audioPath), err)
	}
	defer resp.Body.Close()

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode transcription: %w", err)
	}
	return strings.TrimSpace(out.Text), nil
}
