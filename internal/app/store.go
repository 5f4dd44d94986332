package app

import (
	"context"
	"errors"

	"songbingo/internal/domain"
)

// ErrNotFound indicates a requested session record is missing.
var ErrNotFound = errors.New("session record not found")

// PlayerSnapshot is the persisted view of one player.
type PlayerSnapshot struct {
	ID             domain.PlayerID  `json:"id"`
	Card           []domain.Track   `json:"card"`
	MarkedIDs      []domain.TrackID `json:"markedIds"`
	LinesCompleted int              `json:"linesCompleted"`
	IsBingo        bool             `json:"isBingo"`
}

// SessionSnapshot is the persisted view of one session. Connection
// bindings and timers are runtime-only and deliberately absent.
type SessionSnapshot struct {
	ID           domain.SessionID `json:"id"`
	Catalog      []domain.Track   `json:"catalog"`
	CurrentIndex int              `json:"currentIndex"`
	IsPlaying    bool             `json:"isPlaying"`
	Ended        bool             `json:"ended"`
	Players      []PlayerSnapshot `json:"players"`
}

// SessionStore mirrors session state for durability. Best effort: the
// registry is fully correct with a nil store, and persistence errors
// are logged, never propagated into game flow.
type SessionStore interface {
	Persist(ctx context.Context, snap SessionSnapshot) error
	Load(ctx context.Context, id domain.SessionID) (SessionSnapshot, error)
	Close() error
}
