package signal

import (
	"songbingo/internal/app"
	"songbingo/internal/domain"
	"songbingo/internal/game"
)

// Inbound payloads. Every message carries a "type" discriminator; ids
// inside payloads are unauthenticated hints, authorization is derived
// from server-held connection bindings in the registry.

type createPayload struct {
	Type        string `json:"type"`
	PlaylistURL string `json:"playlistUrl"`
}

type claimPayload struct {
	Type      string           `json:"type"`
	SessionID domain.SessionID `json:"sessionId"`
}

type joinPayload struct {
	Type      string           `json:"type"`
	SessionID domain.SessionID `json:"sessionId"`
	PlayerID  domain.PlayerID  `json:"playerId"`
}

type playbackPayload struct {
	Type      string           `json:"type"`
	SessionID domain.SessionID `json:"sessionId"`
}

type markPayload struct {
	Type      string           `json:"type"`
	SessionID domain.SessionID `json:"sessionId"`
	PlayerID  domain.PlayerID  `json:"playerId"`
	TrackID   domain.TrackID   `json:"trackId"`
}

type statePayload struct {
	Type      string           `json:"type"`
	SessionID domain.SessionID `json:"sessionId"`
	PlayerID  domain.PlayerID  `json:"playerId,omitempty"`
}

// Outbound events.

type sessionCreatedEvent struct {
	Type      string           `json:"type"`
	SessionID domain.SessionID `json:"sessionId"`
	JoinURL   string           `json:"joinUrl"`
}

type sessionJoinedEvent struct {
	Type      string           `json:"type"`
	SessionID domain.SessionID `json:"sessionId"`
	Card      []domain.Track   `json:"card"`
	IsNew     bool             `json:"isNew"`
}

type trackUpdateEvent struct {
	Type string `json:"type"`
	game.TrackUpdate
}

type cardUpdateEvent struct {
	Type string `json:"type"`
	app.CardState
}

type winnersFoundEvent struct {
	Type    string            `json:"type"`
	Winners []domain.PlayerID `json:"winners"`
}

type stateSnapshotEvent struct {
	Type string `json:"type"`
	app.StateSnapshot
}

type sessionEndedEvent struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type sessionErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
