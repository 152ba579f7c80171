// package plex implements the authoritative-source client. Star ratings
// recorded on the Plex server are ground truth for every relay pass.
//
// Response types follow the JSON shape of the Plex media container API.
package plex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hc-nolan/ratingrelay/internal/shared"
	"github.com/hc-nolan/ratingrelay/internal/track"
)

// trackType is the Plex library item type for tracks.
const trackType = 10

// ratingOffset widens the threshold so the server's strict > / < filters
// behave as >= / <=.
const ratingOffset = 0.1

// RawTrack is a track as reported by the Plex server, before a canonical
// recording ID has been established.
type RawTrack struct {
	RatingKey string // Plex's own item key, used to submit ratings
	Title     string
	Artist    string
	TrackMBID string // track-level MusicBrainz ID hint from the mbid:// GUID, may be empty
}

// Identity converts the raw track into a track identity. The MBID hint
// becomes the local ID; the canonical recording ID stays unset until the
// resolver fills it in.
func (r RawTrack) Identity() track.Track {
	return track.Track{Title: r.Title, Artist: r.Artist, LocalID: r.TrackMBID}
}

// Source is the authoritative-source surface the relay engine consumes.
// *Server implements it; tests use a stub.
type Source interface {
	TracksAbove(ctx context.Context, threshold int) ([]RawTrack, error)
	TracksBelow(ctx context.Context, threshold int) ([]RawTrack, error)
	SearchTracks(ctx context.Context, title string) ([]RawTrack, error)
	Rate(ctx context.Context, ratingKey string, rating int) error
}

type plexGUID struct {
	ID string `json:"id"`
}

type plexMetadata struct {
	RatingKey        string     `json:"ratingKey"`
	Title            string     `json:"title"`
	GrandparentTitle string     `json:"grandparentTitle"` // artist for track items
	OriginalTitle    string     `json:"originalTitle"`    // set for per-track artist overrides
	UserRating       float64    `json:"userRating"`
	GUIDs            []plexGUID `json:"Guid"`
}

type plexDirectory struct {
	Key   string `json:"key"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

type plexContainer struct {
	MediaContainer struct {
		Metadata  []plexMetadata  `json:"Metadata"`
		Directory []plexDirectory `json:"Directory"`
	} `json:"MediaContainer"`
}

// Server is an authenticated client for one Plex server and one music
// library section.
type Server struct {
	baseURL    string
	token      string
	sectionKey string
	httpClient *http.Client
	logger     *log.Logger
}

// NewServer connects to the Plex server and locates the named music
// library. An unreachable server or missing library fails construction;
// a pass cannot run without its authoritative source.
func NewServer(ctx context.Context, cfg shared.PlexConfig, httpClient *http.Client, logger *log.Logger) (*Server, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: plex url", shared.ErrMissingConfig)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: plex token", shared.ErrMissingCredentials)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	s := &Server{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		token:      cfg.Token,
		httpClient: httpClient,
		logger:     logger,
	}

	library := cfg.Library
	if library == "" {
		library = "Music"
	}
	if err := s.findSection(ctx, library); err != nil {
		return nil, err
	}

	logger.Info("connected to Plex", "library", library)
	return s, nil
}

// findSection resolves the section key for the named music library. Doing
// this at construction doubles as the reachability and token check.
func (s *Server) findSection(ctx context.Context, library string) error {
	var container plexContainer
	if err := s.doRequest(ctx, http.MethodGet, "/library/sections", nil, &container); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrSourceUnavailable, err)
	}

	for _, dir := range container.MediaContainer.Directory {
		if dir.Type == "artist" && dir.Title == library {
			s.sectionKey = dir.Key
			return nil
		}
	}
	return fmt.Errorf("%w: %q", shared.ErrLibraryNotFound, library)
}

// doRequest performs an authenticated request against the Plex API.
func (s *Server) doRequest(ctx context.Context, method, endpoint string, query url.Values, result any) error {
	apiURL := s.baseURL + endpoint
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Plex-Token", s.token)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: plex rejected token", shared.ErrNotAuthenticated)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: plex status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// listTracks fetches tracks from the music section matching the given
// filter values.
func (s *Server) listTracks(ctx context.Context, filters url.Values) ([]RawTrack, error) {
	filters.Set("type", fmt.Sprintf("%d", trackType))

	var container plexContainer
	endpoint := fmt.Sprintf("/library/sections/%s/all", s.sectionKey)
	if err := s.doRequest(ctx, http.MethodGet, endpoint, filters, &container); err != nil {
		return nil, err
	}

	tracks := make([]RawTrack, 0, len(container.MediaContainer.Metadata))
	for _, md := range container.MediaContainer.Metadata {
		tracks = append(tracks, rawTrack(md))
	}
	return tracks, nil
}

// rawTrack maps a metadata item to a RawTrack, parsing the track MBID
// hint out of the mbid:// GUID when one is present.
func rawTrack(md plexMetadata) RawTrack {
	artist := md.GrandparentTitle
	if md.OriginalTitle != "" {
		artist = md.OriginalTitle
	}

	r := RawTrack{RatingKey: md.RatingKey, Title: md.Title, Artist: artist}
	for _, guid := range md.GUIDs {
		if id, ok := strings.CutPrefix(guid.ID, "mbid://"); ok {
			r.TrackMBID = id
			break
		}
	}
	return r
}

// TracksAbove returns all tracks rated at or above the given threshold.
func (s *Server) TracksAbove(ctx context.Context, threshold int) ([]RawTrack, error) {
	filters := url.Values{}
	// The >>= filter is strictly greater-than; subtract the offset to get >=.
	filters.Set("userRating>>", fmt.Sprintf("%g", float64(threshold)-ratingOffset))
	return s.listTracks(ctx, filters)
}

// TracksBelow returns all rated tracks at or below the given threshold.
func (s *Server) TracksBelow(ctx context.Context, threshold int) ([]RawTrack, error) {
	filters := url.Values{}
	// The <<= filter is strictly less-than; add the offset to get <=.
	filters.Set("userRating<<", fmt.Sprintf("%g", float64(threshold)+ratingOffset))
	// Unrated tracks report rating 0; exclude them.
	filters.Set("userRating>>", "0")
	return s.listTracks(ctx, filters)
}

// SearchTracks finds tracks in the music library by title.
func (s *Server) SearchTracks(ctx context.Context, title string) ([]RawTrack, error) {
	filters := url.Values{}
	filters.Set("title", title)
	return s.listTracks(ctx, filters)
}

// Rate submits a star rating for a track.
func (s *Server) Rate(ctx context.Context, ratingKey string, rating int) error {
	query := url.Values{}
	query.Set("key", ratingKey)
	query.Set("identifier", "com.plexapp.plugins.library")
	query.Set("rating", fmt.Sprintf("%d", rating))
	return s.doRequest(ctx, http.MethodPut, "/:/rate", query, nil)
}
