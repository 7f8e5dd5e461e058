package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/scrybe-app/scrybe/pkg/models"
)

// Fetcher acquires a video's transcript and title from the caption
// service.
type Fetcher interface {
	Fetch(ctx context.Context, videoURL string) ([]models.Segment, string, error)
}

// APIClient fetches transcripts from the Supadata-compatible HTTP API.
type APIClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewAPIClient creates a transcript API client.
func NewAPIClient(baseURL, apiKey string) *APIClient {
	return &APIClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Fetch returns the raw (undecoded) caption segments and the video
// title. A missing transcript maps to ErrNotFound so callers can treat
// it as a terminal 404-equivalent rather than an internal failure.
func (c *APIClient) Fetch(ctx context.Context, videoURL string) ([]models.Segment, string, error) {
	var transcript struct {
		Content []models.Segment `json:"content"`
	}
	if err := c.get(ctx, "/youtube/transcript", videoURL, &transcript); err != nil {
		return nil, "", err
	}
	if len(transcript.Content) == 0 {
		return nil, "", ErrNotFound
	}

	// Title failures are not fatal; the summary prompt has a fallback.
	var meta struct {
		Title string `json:"title"`
	}
	if err := c.get(ctx, "/youtube/video", videoURL, &meta); err != nil {
		meta.Title = ""
	}

	return transcript.Content, meta.Title, nil
}

func (c *APIClient) get(ctx context.Context, path, videoURL string, out any) error {
	if c.apiKey == "" {
		return errors.New("TRANSCRIPT_API_KEY unset")
	}

	u := c.baseURL + path + "?url=" + url.QueryEscape(videoURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return errors.New("transcript service: " + resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
