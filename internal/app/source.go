package app

import (
	"context"
	"errors"

	"songbingo/internal/domain"
)

var (
	// ErrInvalidReference means the playlist reference cannot be parsed
	// into something a source understands.
	ErrInvalidReference = errors.New("invalid playlist reference")
	// ErrSourceUnavailable means the source was reachable in principle
	// but failed to deliver tracks. Surfaced to the session creator,
	// never papered over with placeholder tracks.
	ErrSourceUnavailable = errors.New("playlist source unavailable")
)

// PlaylistSource fetches the immutable track catalog a session is
// created from. Implementations live under internal/adapters.
type PlaylistSource interface {
	FetchTracks(ctx context.Context, ref string) ([]domain.Track, error)
}
