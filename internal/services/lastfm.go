// Last.fm implementation of [Adapter]
//
// API method signing per https://www.last.fm/api/mobileauth
package services

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hc-nolan/ratingrelay/internal/shared"
	"github.com/hc-nolan/ratingrelay/internal/track"
)

const (
	lastFMBaseURL = "https://ws.audioscrobbler.com/2.0/"

	// lovedTracksPageSize is the page size for loved-track enumeration.
	lovedTracksPageSize = 200

	// lfmMinDelay is the minimum delay between mutating Last.fm calls.
	lfmMinDelay = 250 * time.Millisecond

	// lfmErrRateLimit is Last.fm's error code for exceeded rate limits.
	lfmErrRateLimit = 29
)

type lfmError struct {
	Code    int    `json:"error"`
	Message string `json:"message"`
}

type lfmSessionResponse struct {
	Session struct {
		Key string `json:"key"`
	} `json:"session"`
}

type lfmArtist struct {
	Name string `json:"name"`
}

type lfmTrack struct {
	Name   string    `json:"name"`
	Artist lfmArtist `json:"artist"`
}

type lfmLovedTracksPage struct {
	LovedTracks struct {
		Track []lfmTrack `json:"track"`
		Attr  struct {
			Page       string `json:"page"`
			TotalPages string `json:"totalPages"`
		} `json:"@attr"`
	} `json:"lovedtracks"`
}

// LastFM implements [Adapter] for the Last.fm API. Feedback is keyed on
// title/artist; Last.fm has no canonical recording IDs and no negative
// feedback.
type LastFM struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	username   string
	sessionKey string
	httpClient *http.Client
	throttle   *throttle
	logger     *log.Logger
}

// NewLastFM creates the Last.fm adapter and opens a mobile session.
// Returns (nil, nil) when no credentials are configured at all; partial
// credentials are an error.
func NewLastFM(cfg shared.LastFMConfig, httpClient *http.Client, logger *log.Logger) (*LastFM, error) {
	if cfg.APIKey == "" && cfg.APISecret == "" && cfg.Username == "" && cfg.Password == "" {
		return nil, nil
	}
	if cfg.APIKey == "" || cfg.APISecret == "" || cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("%w: lastfm needs api_key, api_secret, username and password", shared.ErrMissingCredentials)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	lfm := &LastFM{
		baseURL:    lastFMBaseURL,
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		username:   cfg.Username,
		httpClient: httpClient,
		throttle:   newThrottle(lfmMinDelay, logger),
		logger:     logger,
	}

	if err := lfm.authenticate(context.Background(), cfg.Password); err != nil {
		return nil, err
	}

	logger.Info("connected to Last.fm", "user", cfg.Username)
	return lfm, nil
}

func (l *LastFM) Name() string { return "Last.fm" }

// SupportsHate reports false: Last.fm records loves only.
func (l *LastFM) SupportsHate() bool { return false }

// sign computes the api_sig for a request: parameters sorted by name,
// concatenated, with the shared secret appended, then md5-hexed.
func (l *LastFM) sign(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "format" || k == "callback" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString(params.Get(k))
	}
	sb.WriteString(l.apiSecret)

	return fmt.Sprintf("%x", md5.Sum([]byte(sb.String())))
}

// call performs one API request. Signed requests go out as POSTs with the
// api_sig parameter appended.
func (l *LastFM) call(ctx context.Context, method string, params url.Values, signed bool, result any) error {
	params.Set("method", method)
	params.Set("api_key", l.apiKey)
	if signed {
		params.Set("api_sig", l.sign(params))
	}
	params.Set("format", "json")

	var req *http.Request
	var err error
	if signed {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL, strings.NewReader(params.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"?"+params.Encode(), nil)
	}
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: lastfm status 429", shared.ErrRateLimited)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	var apiErr lfmError
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Code != 0 {
		if apiErr.Code == lfmErrRateLimit {
			return fmt.Errorf("%w: lastfm error %d: %s", shared.ErrRateLimited, apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("%w: lastfm error %d: %s", shared.ErrAPIRequest, apiErr.Code, apiErr.Message)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: lastfm status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.Unmarshal(raw, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// authenticate opens a mobile session and stores the session key used to
// sign feedback submissions.
func (l *LastFM) authenticate(ctx context.Context, password string) error {
	params := url.Values{}
	params.Set("username", l.username)
	params.Set("password", password)

	var session lfmSessionResponse
	if err := l.call(ctx, "auth.getMobileSession", params, true, &session); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	if session.Session.Key == "" {
		return fmt.Errorf("%w: lastfm returned no session key", shared.ErrAuthFailed)
	}

	l.sessionKey = session.Session.Key
	return nil
}

// mutateTrack submits one signed track.* call under the rate policy.
func (l *LastFM) mutateTrack(ctx context.Context, method string, t track.Track) error {
	return l.throttle.do(ctx, func() error {
		params := url.Values{}
		params.Set("track", t.Title)
		params.Set("artist", t.Artist)
		params.Set("sk", l.sessionKey)
		return l.call(ctx, method, params, true, nil)
	})
}

func (l *LastFM) Love(ctx context.Context, t track.Track) error {
	l.logger.Debug("loving on Last.fm", "track", t.String())
	return l.mutateTrack(ctx, "track.love", t)
}

// Hate is unsupported; callers are expected to consult SupportsHate.
func (l *LastFM) Hate(ctx context.Context, t track.Track) error {
	return fmt.Errorf("%w: lastfm", shared.ErrHateUnsupported)
}

func (l *LastFM) Reset(ctx context.Context, t track.Track) error {
	l.logger.Debug("unloving on Last.fm", "track", t.String())
	return l.mutateTrack(ctx, "track.unlove", t)
}

func (l *LastFM) AllLoved(ctx context.Context) ([]track.Track, error) {
	var tracks []track.Track

	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("user", l.username)
		params.Set("limit", strconv.Itoa(lovedTracksPageSize))
		params.Set("page", strconv.Itoa(page))

		var result lfmLovedTracksPage
		if err := l.call(ctx, "user.getlovedtracks", params, false, &result); err != nil {
			return nil, err
		}

		for _, t := range result.LovedTracks.Track {
			tracks = append(tracks, track.Track{Title: t.Name, Artist: t.Artist.Name})
		}

		totalPages, err := strconv.Atoi(result.LovedTracks.Attr.TotalPages)
		if err != nil || page >= totalPages {
			break
		}
	}

	return tracks, nil
}

// AllHated returns an empty set: Last.fm has no negative feedback.
func (l *LastFM) AllHated(ctx context.Context) ([]track.Track, error) {
	return nil, nil
}
