// ListenBrainz implementation of [Adapter]
//
// Feedback API types based on https://listenbrainz.readthedocs.io/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hc-nolan/ratingrelay/internal/shared"
	"github.com/hc-nolan/ratingrelay/internal/track"
)

const (
	listenBrainzBaseURL = "https://api.listenbrainz.org"

	// feedbackPageSize is the page size for feedback enumeration.
	feedbackPageSize = 100

	// lbzMinDelay is the minimum delay between mutating ListenBrainz calls.
	lbzMinDelay = 500 * time.Millisecond
)

// ListenBrainz feedback scores.
const (
	scoreLove = 1
	scoreHate = -1
	scoreNone = 0
)

type lbzTrackMetadata struct {
	TrackName  string `json:"track_name"`
	ArtistName string `json:"artist_name"`
}

type lbzFeedback struct {
	RecordingMBID string            `json:"recording_mbid"`
	Score         int               `json:"score"`
	TrackMetadata *lbzTrackMetadata `json:"track_metadata"`
}

type lbzFeedbackPage struct {
	Feedback []lbzFeedback `json:"feedback"`
}

type lbzTokenCheck struct {
	Valid    bool   `json:"valid"`
	UserName string `json:"user_name"`
}

// ListenBrainz implements [Adapter] for the ListenBrainz feedback API.
// Feedback is keyed on canonical recording MBIDs; tracks without one are
// resolved through the [RecordingResolver] before submission.
type ListenBrainz struct {
	baseURL    string
	token      string
	username   string
	resolver   RecordingResolver
	httpClient *http.Client
	throttle   *throttle
	logger     *log.Logger
}

// NewListenBrainz creates the ListenBrainz adapter and validates the API
// token. Returns (nil, nil) when no credentials are configured: the
// service is optional and the relay runs with a reduced adapter set.
func NewListenBrainz(cfg shared.ListenBrainzConfig, resolver RecordingResolver, httpClient *http.Client, logger *log.Logger) (*ListenBrainz, error) {
	if cfg.Token == "" && cfg.Username == "" {
		return nil, nil
	}
	if cfg.Token == "" || cfg.Username == "" {
		return nil, fmt.Errorf("%w: listenbrainz needs both token and username", shared.ErrMissingCredentials)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	lbz := &ListenBrainz{
		baseURL:    listenBrainzBaseURL,
		token:      cfg.Token,
		username:   cfg.Username,
		resolver:   resolver,
		httpClient: httpClient,
		throttle:   newThrottle(lbzMinDelay, logger),
		logger:     logger,
	}

	if err := lbz.validateToken(context.Background()); err != nil {
		return nil, err
	}

	logger.Info("connected to ListenBrainz", "user", cfg.Username)
	return lbz, nil
}

func (l *ListenBrainz) Name() string { return "ListenBrainz" }

func (l *ListenBrainz) SupportsHate() bool { return true }

func (l *ListenBrainz) validateToken(ctx context.Context) error {
	var check lbzTokenCheck
	if err := l.doRequest(ctx, http.MethodGet, "/1/validate-token", nil, &check); err != nil {
		return err
	}
	if !check.Valid {
		return fmt.Errorf("%w: listenbrainz token rejected", shared.ErrInvalidCredentials)
	}
	return nil
}

// doRequest performs an authenticated request against the ListenBrainz API.
func (l *ListenBrainz) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, l.baseURL+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Token "+l.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: listenbrainz status 429", shared.ErrRateLimited)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: listenbrainz rejected token", shared.ErrInvalidCredentials)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: listenbrainz status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// submitFeedback records the given score for a recording under the rate
// policy.
func (l *ListenBrainz) submitFeedback(ctx context.Context, score int, recordingID string) error {
	body := map[string]any{
		"recording_mbid": recordingID,
		"score":          score,
	}
	return l.throttle.do(ctx, func() error {
		return l.doRequest(ctx, http.MethodPost, "/1/feedback/recording-feedback", body, nil)
	})
}

// feedback resolves the track's recording ID if needed and submits the
// score. An unresolvable track is skipped with a warning, not an error:
// it stays in the source's current set and is retried next pass.
func (l *ListenBrainz) feedback(ctx context.Context, score int, t track.Track) error {
	recordingID := t.RecordingID
	if recordingID == "" {
		var err error
		recordingID, err = l.resolver.Resolve(ctx, t)
		if err != nil {
			return err
		}
	}

	if recordingID == "" {
		l.logger.Warn("no recording ID, skipping ListenBrainz submission", "track", t.String())
		return nil
	}

	return l.submitFeedback(ctx, score, recordingID)
}

func (l *ListenBrainz) Love(ctx context.Context, t track.Track) error {
	l.logger.Debug("loving on ListenBrainz", "track", t.String())
	return l.feedback(ctx, scoreLove, t)
}

func (l *ListenBrainz) Hate(ctx context.Context, t track.Track) error {
	l.logger.Debug("hating on ListenBrainz", "track", t.String())
	return l.feedback(ctx, scoreHate, t)
}

// Reset clears any feedback for the track. Requires a recording ID; the
// caller keeps unresolvable entries pending and retries them later.
func (l *ListenBrainz) Reset(ctx context.Context, t track.Track) error {
	if t.RecordingID == "" {
		return fmt.Errorf("%w: cannot reset %s on ListenBrainz", shared.ErrNoRecordingID, t.String())
	}
	l.logger.Debug("resetting on ListenBrainz", "track", t.String())
	return l.submitFeedback(ctx, scoreNone, t.RecordingID)
}

func (l *ListenBrainz) AllLoved(ctx context.Context) ([]track.Track, error) {
	return l.allFeedback(ctx, scoreLove)
}

func (l *ListenBrainz) AllHated(ctx context.Context) ([]track.Track, error) {
	return l.allFeedback(ctx, scoreHate)
}

// allFeedback pages through the user's feedback with the given score and
// materializes it into track identities. Entries without metadata are
// logged and skipped.
func (l *ListenBrainz) allFeedback(ctx context.Context, score int) ([]track.Track, error) {
	var tracks []track.Track
	offset := 0

	for {
		endpoint := fmt.Sprintf(
			"/1/feedback/user/%s/get-feedback?score=%d&count=%d&offset=%d&metadata=true",
			url.PathEscape(l.username), score, feedbackPageSize, offset,
		)

		var page lbzFeedbackPage
		if err := l.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}

		for _, fb := range page.Feedback {
			if fb.TrackMetadata == nil {
				l.logger.Warn("feedback entry missing metadata", "recording", fb.RecordingMBID)
				continue
			}
			tracks = append(tracks, track.Track{
				Title:       fb.TrackMetadata.TrackName,
				Artist:      fb.TrackMetadata.ArtistName,
				RecordingID: fb.RecordingMBID,
			})
		}

		if len(page.Feedback) < feedbackPageSize {
			break
		}
		offset += feedbackPageSize
	}

	return tracks, nil
}
