// package track defines the cross-service track identity value and the
// normalization rules used to compare titles and artists between services
// that format metadata differently.
package track

import "fmt"

// Track identifies a single recording across services.
//
// RecordingID is the canonical MusicBrainz recording identifier and is the
// join key whenever both sides have one. LocalID is the media server's own
// track identifier and never participates in cross-service equality.
type Track struct {
	Title       string
	Artist      string
	LocalID     string
	RecordingID string
}

// New returns a Track identified only by title and artist.
func New(title, artist string) Track {
	return Track{Title: title, Artist: artist}
}

// WithRecordingID returns a copy of the track carrying the given canonical
// recording identifier.
func (t Track) WithRecordingID(id string) Track {
	t.RecordingID = id
	return t
}

// Key returns the normalized title|artist comparison key for the track.
func (t Track) Key() string {
	return Normalize(t.Title) + "|" + Normalize(t.Artist)
}

func (t Track) String() string {
	return fmt.Sprintf("%s by %s", t.Title, t.Artist)
}

// Same reports whether two tracks identify the same recording.
//
// When both carry a RecordingID the IDs decide. Otherwise identity
// degrades to the normalized title/artist comparison in [SameTrack].
func (t Track) Same(other Track) bool {
	if t.RecordingID != "" && other.RecordingID != "" {
		return t.RecordingID == other.RecordingID
	}
	return SameTrack(t, other)
}
