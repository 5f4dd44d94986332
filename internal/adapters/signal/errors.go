package signal

import (
	"errors"

	"songbingo/internal/app"
	"songbingo/internal/game"
)

// userMessage maps registry and game errors to the message shown to
// the offending connection. Everything else gets a generic line so
// internals never leak onto the wire.
func userMessage(err error) string {
	switch {
	case errors.Is(err, app.ErrInvalidCatalog):
		return "the playlist does not have enough tracks for a card"
	case errors.Is(err, app.ErrSessionNotFound):
		return "session not found"
	case errors.Is(err, app.ErrAdminRequired):
		return "only the session admin can do that"
	case errors.Is(err, app.ErrPlayerRequired):
		return "join the session as a player first"
	case errors.Is(err, app.ErrInvalidPlayerID):
		return "invalid player id"
	case errors.Is(err, app.ErrInvalidReference):
		return "that does not look like a playlist link"
	case errors.Is(err, app.ErrSourceUnavailable):
		return "could not fetch the playlist, try again later"
	case errors.Is(err, game.ErrWrongTrack):
		return "that track is not the one playing"
	case errors.Is(err, game.ErrNotOnCard):
		return "that track is not on your card"
	case errors.Is(err, game.ErrAlreadyMarked):
		return "track already marked"
	default:
		return "something went wrong"
	}
}
