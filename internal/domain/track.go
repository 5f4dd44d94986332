// Package domain contains entities without logic, just meta-data.
package domain

type TrackID string

// Track is one catalog entry. Immutable once fetched from a source.
type Track struct {
	ID         TrackID `json:"id"`
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	PreviewURL string  `json:"previewUrl,omitempty"`
}

// Label is the human-readable "Title - Artist" string used in
// track update events.
func (t Track) Label() string {
	if t.Artist == "" {
		return t.Title
	}
	return t.Title + " - " + t.Artist
}
