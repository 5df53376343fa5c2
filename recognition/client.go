package recognition

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
)

// DefaultConfidenceThreshold is the minimum confidence an item needs to be kept.
const DefaultConfidenceThreshold = 0.75

type doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Image is an uploaded picture.
type Image struct {
	Data        []byte
	Filename    string
	ContentType string
}

type Client struct {
	endpoint   string
	httpClient doer
	threshold  float64
}

func NewClient(baseEndpoint string, httpClient doer, threshold float64) *Client {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	return &Client{
		endpoint:   strings.TrimRight(baseEndpoint, "/") + "/recognize",
		httpClient: httpClient,
		threshold:  threshold,
	}
}

// Recognize posts the image as multipart field "image" and returns the items
// at or above the confidence threshold.
func (c *Client) Recognize(ctx context.Context, img Image) ([]Item, error) {
	if len(img.Data) == 0 {
		return nil, errors.New("empty image")
	}
	filename := img.Filename
	if filename == "" {
		filename = "image"
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recognition request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read recognition response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("recognition failed: %s", resp.Status)
	}

	items, err := ParsePayload(string(raw))
	if err != nil {
		return nil, err
	}
	kept := Filter(items, c.threshold)
	slog.Info("RECOGNITION: Image recognized", "items", len(items), "kept", len(kept), "threshold", c.threshold)
	return kept, nil
}
