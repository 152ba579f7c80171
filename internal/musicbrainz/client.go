// package musicbrainz resolves canonical recording IDs for track
// identities via the MusicBrainz recording search API.
package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hc-nolan/ratingrelay/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://musicbrainz.org/ws/2"
	userAgent      = "ratingrelay/1.1 (https://github.com/hc-nolan/ratingrelay)"
)

// ArtistCredit is one credited artist on a recording.
type ArtistCredit struct {
	Name string `json:"name"`
}

// Candidate is one recording returned by the search API. Any field except
// ID may be missing or empty in practice.
type Candidate struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	ArtistCredit []ArtistCredit `json:"artist-credit"`
}

type searchResponse struct {
	Recordings []Candidate `json:"recordings"`
}

// Client is a minimal MusicBrainz search client. All requests go through a
// 1 req/s limiter per the MusicBrainz API guidelines.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a Client. baseURL and httpClient default to the public
// API and a 15s-timeout client when empty/nil.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// SearchRecordings runs a raw Lucene query against the recording index.
func (c *Client) SearchRecordings(ctx context.Context, query string) ([]Candidate, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/recording?query=%s&fmt=json", c.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	// MusicBrainz requires a descriptive User-Agent
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: musicbrainz status %d", shared.ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: musicbrainz status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	return result.Recordings, nil
}

// Search queries the recording index by title and artist.
func (c *Client) Search(ctx context.Context, title, artist string) ([]Candidate, error) {
	query := fmt.Sprintf("recording:%q AND artist:%q", title, artist)
	return c.SearchRecordings(ctx, query)
}

// SearchByTrackID queries the recording index by the track-level
// MusicBrainz ID embedded in the media server's metadata.
func (c *Client) SearchByTrackID(ctx context.Context, trackID string) ([]Candidate, error) {
	return c.SearchRecordings(ctx, fmt.Sprintf("tid:%s", trackID))
}
