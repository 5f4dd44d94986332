// Package playlist provides a local-file PlaylistSource for offline
// development and tests: a JSON array of tracks stands in for a
// streaming catalog.
package playlist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"songbingo/internal/app"
	"songbingo/internal/domain"
)

type FileSource struct {
	// Path is used when the reference does not carry its own file path.
	Path string
}

// FetchTracks reads tracks from a "file:<path>" reference or, for any
// other reference, from the configured default path.
func (s *FileSource) FetchTracks(ctx context.Context, ref string) ([]domain.Track, error) {
	path := s.Path
	if p, ok := strings.CutPrefix(ref, "file:"); ok && p != "" {
		path = p
	}
	if path == "" {
		return nil, fmt.Errorf("%w: no playlist file configured", app.ErrInvalidReference)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", app.ErrSourceUnavailable, err)
	}
	var tracks []domain.Track
	if err := json.Unmarshal(data, &tracks); err != nil {
		return nil, fmt.Errorf("%w: %v", app.ErrSourceUnavailable, err)
	}
	return tracks, nil
}
