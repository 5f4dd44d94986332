// Package app wires the game rules to sessions: the registry owns all
// live sessions, mediates access, and enforces who may act as admin or
// player. External collaborators (playlist source, session store,
// outbound notifier) are injected, never ambient.
package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"songbingo/internal/domain"
	"songbingo/internal/game"
)

var (
	ErrInvalidCatalog  = errors.New("playlist has too few tracks")
	ErrSessionNotFound = errors.New("session not found")
	ErrAdminRequired   = errors.New("admin connection required")
	ErrPlayerRequired  = errors.New("player connection required")
	ErrInvalidPlayerID = errors.New("invalid player id")
)

// Notifier receives state changes that originate inside the registry
// rather than from an inbound command: auto-pause expiry and session
// teardown. The websocket controller implements it.
type Notifier interface {
	TrackUpdate(id domain.SessionID, upd game.TrackUpdate)
	SessionEnded(id domain.SessionID, reason string, conns []domain.ConnectionID)
}

// CardState is the per-player result of a mark or state request.
type CardState struct {
	MarkedIDs      []domain.TrackID `json:"markedIds"`
	LinesCompleted int              `json:"linesCompleted"`
	IsBingo        bool             `json:"isBingo"`
}

// StateSnapshot is the read-only answer to a requestState command.
type StateSnapshot struct {
	SessionID   domain.SessionID `json:"sessionId"`
	Track       game.TrackUpdate `json:"track"`
	PlayerCount int              `json:"playerCount"`
	Player      *CardState       `json:"player,omitempty"`
}

// Options configures a registry. Source is required; Store and
// NewTimer may be nil (memory-only mirror, real timers).
type Options struct {
	CardSize       int
	BingoThreshold int
	Preview        time.Duration
	Source         PlaylistSource
	Store          SessionStore
	NewTimer       game.TimerFactory
}

// session pairs the domain meta with its runtime state. All fields
// behind mu, so operations on different sessions proceed independently
// while operations on the same session are serialized.
type session struct {
	mu           sync.Mutex
	meta         *domain.Session
	players      map[domain.PlayerID]*domain.Player
	fingerprints map[string]struct{}
	playback     *game.Playback
	ended        bool
}

type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*session
	byConn   map[domain.ConnectionID]domain.SessionID

	opts     Options
	notifier Notifier
	newID    func() (domain.SessionID, error)
}

func NewRegistry(opts Options) *Registry {
	if opts.CardSize <= 0 {
		opts.CardSize = 25
	}
	if opts.BingoThreshold <= 0 {
		opts.BingoThreshold = opts.CardSize
	}
	if opts.Preview <= 0 {
		opts.Preview = 30 * time.Second
	}
	return &Registry{
		sessions: make(map[domain.SessionID]*session),
		byConn:   make(map[domain.ConnectionID]domain.SessionID),
		opts:     opts,
		newID:    newSessionID,
	}
}

// SetNotifier must be called once during wiring, before any traffic.
func (r *Registry) SetNotifier(n Notifier) { r.notifier = n }

// newSessionID returns a short random token; the registry's collision
// check keeps it unique among live sessions.
func newSessionID() (domain.SessionID, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return domain.SessionID(hex.EncodeToString(b[:])), nil
}

// CreateSession fetches the catalog and registers a new session with
// conn bound as its admin. The fetch happens before anything is
// registered, so a failing source never leaves a half-built session.
func (r *Registry) CreateSession(ctx context.Context, conn domain.ConnectionID, ref string) (domain.SessionID, error) {
	return r.create(ctx, conn, "", ref)
}

// CreatePending registers a session without an admin connection. The
// holder of claimToken claims admin rights over its websocket later.
func (r *Registry) CreatePending(ctx context.Context, claimToken, ref string) (domain.SessionID, error) {
	return r.create(ctx, "", claimToken, ref)
}

func (r *Registry) create(ctx context.Context, conn domain.ConnectionID, claimToken, ref string) (domain.SessionID, error) {
	tracks, err := r.opts.Source.FetchTracks(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("fetch catalog: %w", err)
	}
	if len(tracks) < r.opts.CardSize {
		return "", fmt.Errorf("%w: got %d, need %d", ErrInvalidCatalog, len(tracks), r.opts.CardSize)
	}

	s := &session{
		meta: &domain.Session{
			Catalog:    tracks,
			Admin:      conn,
			ClaimToken: claimToken,
		},
		players:      make(map[domain.PlayerID]*domain.Player),
		fingerprints: make(map[string]struct{}),
		playback:     game.NewPlayback(tracks, r.opts.Preview, r.opts.NewTimer),
	}

	r.mu.Lock()
	var id domain.SessionID
	for {
		id, err = r.newID()
		if err != nil {
			r.mu.Unlock()
			return "", err
		}
		if _, taken := r.sessions[id]; !taken {
			break
		}
	}
	s.meta.ID = id
	r.sessions[id] = s
	if conn != "" {
		r.byConn[conn] = id
	}
	r.mu.Unlock()

	log.Info().Str("module", "app.registry").Str("session", string(id)).
		Int("tracks", len(tracks)).Msg("session created")
	r.persist(s.snapshot())
	return id, nil
}

// ClaimSession binds conn as the admin of an HTTP-created session,
// provided the caller presents the creator's client token.
func (r *Registry) ClaimSession(id domain.SessionID, claimToken string, conn domain.ConnectionID) error {
	s, err := r.lookup(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	if s.meta.ClaimToken == "" || s.meta.ClaimToken != claimToken {
		s.mu.Unlock()
		return ErrAdminRequired
	}
	prev := s.meta.Admin
	s.meta.Admin = conn
	s.mu.Unlock()

	r.mu.Lock()
	if prev != "" {
		delete(r.byConn, prev)
	}
	r.byConn[conn] = id
	r.mu.Unlock()

	log.Info().Str("module", "app.registry").Str("session", string(id)).Msg("admin claimed")
	return nil
}

// JoinSession deals a card for a new player or rebinds the connection
// of a returning one. Idempotent under repeated reconnects: the same
// playerID always gets back the originally dealt card. Last bind wins.
func (r *Registry) JoinSession(id domain.SessionID, playerID domain.PlayerID, conn domain.ConnectionID) ([]domain.Track, bool, error) {
	if playerID == "" || len(playerID) > domain.MaxPlayerIDLen {
		return nil, false, ErrInvalidPlayerID
	}
	s, err := r.lookup(id)
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	// A lookup can win the race with admin teardown; a dead session must
	// not accept new bindings.
	if s.ended {
		s.mu.Unlock()
		return nil, false, ErrSessionNotFound
	}
	if p, ok := s.players[playerID]; ok {
		p.Connection = conn
		card := p.Card
		s.mu.Unlock()

		r.bind(conn, id)
		log.Info().Str("module", "app.registry").Str("session", string(id)).
			Str("player", string(playerID)).Msg("player reconnected")
		return card, false, nil
	}

	card, fp := game.Deal(s.meta.Catalog, r.opts.CardSize, s.fingerprints)
	s.fingerprints[fp] = struct{}{}
	s.players[playerID] = domain.NewPlayer(playerID, conn, card)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	r.bind(conn, id)
	log.Info().Str("module", "app.registry").Str("session", string(id)).
		Str("player", string(playerID)).Msg("player joined")
	r.persist(snap)
	return card, true, nil
}

// Play starts or resumes playback. Admin only.
func (r *Registry) Play(id domain.SessionID, conn domain.ConnectionID) (game.TrackUpdate, error) {
	return r.playbackOp(id, conn, func(s *session) game.TrackUpdate {
		return s.playback.Play(r.expireHook(id, s))
	})
}

// Pause halts playback at the current index. Admin only.
func (r *Registry) Pause(id domain.SessionID, conn domain.ConnectionID) (game.TrackUpdate, error) {
	return r.playbackOp(id, conn, func(s *session) game.TrackUpdate {
		return s.playback.Pause()
	})
}

// Next advances to the following track, wrapping at the end. Admin only.
func (r *Registry) Next(id domain.SessionID, conn domain.ConnectionID) (game.TrackUpdate, error) {
	return r.playbackOp(id, conn, func(s *session) game.TrackUpdate {
		return s.playback.Next(r.expireHook(id, s))
	})
}

func (r *Registry) playbackOp(id domain.SessionID, conn domain.ConnectionID, op func(*session) game.TrackUpdate) (game.TrackUpdate, error) {
	s, err := r.lookup(id)
	if err != nil {
		return game.TrackUpdate{}, err
	}
	s.mu.Lock()
	if s.meta.Admin == "" || s.meta.Admin != conn {
		s.mu.Unlock()
		return game.TrackUpdate{}, ErrAdminRequired
	}
	upd := op(s)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	r.persist(snap)
	return upd, nil
}

// expireHook delivers an auto-pause from the timer goroutine: it takes
// the session lock, applies the expiry (a no-op if a newer command
// superseded the timer), and forwards the update to the room.
func (r *Registry) expireHook(id domain.SessionID, s *session) func(game.ExpireFunc) {
	return func(expire game.ExpireFunc) {
		s.mu.Lock()
		upd, ok := expire()
		var snap SessionSnapshot
		if ok {
			snap = s.snapshotLocked()
		}
		s.mu.Unlock()
		if !ok {
			return
		}
		log.Debug().Str("module", "app.registry").Str("session", string(id)).Msg("auto-pause")
		if r.notifier != nil {
			r.notifier.TrackUpdate(id, upd)
		}
		r.persist(snap)
	}
}

// Mark validates a player's claim that trackID just played and, on
// success, returns the recomputed card state. Requires the stored
// player binding to match conn, so one connection cannot act as
// another player.
func (r *Registry) Mark(id domain.SessionID, playerID domain.PlayerID, conn domain.ConnectionID, trackID domain.TrackID) (CardState, error) {
	s, err := r.lookup(id)
	if err != nil {
		return CardState{}, err
	}
	s.mu.Lock()
	p, ok := s.players[playerID]
	if !ok || p.Connection == "" || p.Connection != conn {
		s.mu.Unlock()
		return CardState{}, ErrPlayerRequired
	}
	active, _ := s.playback.ActiveTrack()
	if err := game.MarkTrack(p, active.ID, trackID, r.opts.BingoThreshold); err != nil {
		s.mu.Unlock()
		return CardState{}, err
	}
	state := cardState(p)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	r.persist(snap)
	return state, nil
}

// CheckWinners re-scans every player and returns those at bingo.
// Admin only.
func (r *Registry) CheckWinners(id domain.SessionID, conn domain.ConnectionID) ([]domain.PlayerID, error) {
	s, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.meta.Admin == "" || s.meta.Admin != conn {
		return nil, ErrAdminRequired
	}
	winners := []domain.PlayerID{}
	for _, p := range s.players {
		if _, bingo := game.Evaluate(p.Card, p.Marked, r.opts.BingoThreshold); bingo {
			winners = append(winners, p.ID)
		}
	}
	return winners, nil
}

// Snapshot answers a read-only state request from either role. When
// playerID names a player bound to conn, their card state rides along.
func (r *Registry) Snapshot(id domain.SessionID, playerID domain.PlayerID, conn domain.ConnectionID) (StateSnapshot, error) {
	s, err := r.lookup(id)
	if err != nil {
		return StateSnapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := StateSnapshot{
		SessionID:   id,
		Track:       s.playback.Update(),
		PlayerCount: len(s.players),
	}
	if p, ok := s.players[playerID]; ok && p.Connection == conn {
		state := cardState(p)
		snap.Player = &state
	}
	return snap, nil
}

// Connections lists every connection currently bound to the session:
// the admin plus all online players. Fanout targets for the notifier.
func (r *Registry) Connections(id domain.SessionID) []domain.ConnectionID {
	s, err := r.lookup(id)
	if err != nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectionsLocked()
}

func (s *session) connectionsLocked() []domain.ConnectionID {
	out := make([]domain.ConnectionID, 0, len(s.players)+1)
	if s.meta.Admin != "" {
		out = append(out, s.meta.Admin)
	}
	for _, p := range s.players {
		if p.Connection != "" && p.Connection != s.meta.Admin {
			out = append(out, p.Connection)
		}
	}
	return out
}

// OnDisconnect unbinds a connection. An admin disconnect tears the
// whole session down: timer released, players notified, session
// removed. A player disconnect only clears the binding; the player's
// card and marks wait for a rejoin. Idempotent.
func (r *Registry) OnDisconnect(conn domain.ConnectionID) {
	r.mu.Lock()
	id, ok := r.byConn[conn]
	if ok {
		delete(r.byConn, conn)
	}
	s, live := r.sessions[id]
	r.mu.Unlock()
	if !ok || !live {
		return
	}

	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	if s.meta.Admin == conn {
		s.ended = true
		s.playback.Stop()
		conns := s.connectionsLocked()
		snap := s.snapshotLocked()
		s.mu.Unlock()

		r.mu.Lock()
		delete(r.sessions, id)
		for c, sid := range r.byConn {
			if sid == id {
				delete(r.byConn, c)
			}
		}
		r.mu.Unlock()

		log.Info().Str("module", "app.registry").Str("session", string(id)).Msg("admin left, session ended")
		if r.notifier != nil {
			r.notifier.SessionEnded(id, "admin disconnected", conns)
		}
		r.persist(snap)
		return
	}

	for _, p := range s.players {
		if p.Connection == conn {
			p.Connection = ""
			log.Info().Str("module", "app.registry").Str("session", string(id)).
				Str("player", string(p.ID)).Msg("player went offline")
			break
		}
	}
	s.mu.Unlock()
}

func (r *Registry) lookup(id domain.SessionID) (*session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (r *Registry) bind(conn domain.ConnectionID, id domain.SessionID) {
	if conn == "" {
		return
	}
	r.mu.Lock()
	r.byConn[conn] = id
	r.mu.Unlock()
}

func cardState(p *domain.Player) CardState {
	return CardState{
		MarkedIDs:      p.MarkedIDs(),
		LinesCompleted: p.LinesCompleted,
		IsBingo:        p.IsBingo,
	}
}

func (s *session) snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *session) snapshotLocked() SessionSnapshot {
	snap := SessionSnapshot{
		ID:           s.meta.ID,
		Catalog:      s.meta.Catalog,
		CurrentIndex: s.playback.CurrentIndex,
		IsPlaying:    s.playback.IsPlaying,
		Ended:        s.ended,
	}
	for _, p := range s.players {
		snap.Players = append(snap.Players, PlayerSnapshot{
			ID:             p.ID,
			Card:           p.Card,
			MarkedIDs:      p.MarkedIDs(),
			LinesCompleted: p.LinesCompleted,
			IsBingo:        p.IsBingo,
		})
	}
	return snap
}

// persist mirrors a snapshot into the store, if one is configured.
// Runs outside session locks; failures are logged and swallowed so
// durability problems never break a running game.
func (r *Registry) persist(snap SessionSnapshot) {
	if r.opts.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.opts.Store.Persist(ctx, snap); err != nil {
		log.Error().Err(err).Str("module", "app.registry").
			Str("session", string(snap.ID)).Msg("persist session")
	}
}
