package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"songbingo/internal/domain"
	"songbingo/internal/game"
)

func makeTracks(n int, withPreview bool) []domain.Track {
	out := make([]domain.Track, n)
	for i := range out {
		out[i] = domain.Track{
			ID:     domain.TrackID(fmt.Sprintf("t%02d", i)),
			Title:  fmt.Sprintf("Track %d", i),
			Artist: "Artist",
		}
		if withPreview {
			out[i].PreviewURL = "https://cdn.example/preview.mp3"
		}
	}
	return out
}

type fakeSource struct {
	tracks []domain.Track
	err    error
}

func (f *fakeSource) FetchTracks(ctx context.Context, ref string) ([]domain.Track, error) {
	return f.tracks, f.err
}

type fakeStore struct {
	mu    sync.Mutex
	snaps []SessionSnapshot
	err   error
}

func (f *fakeStore) Persist(ctx context.Context, snap SessionSnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.snaps = append(f.snaps, snap)
	return nil
}

func (f *fakeStore) Load(ctx context.Context, id domain.SessionID) (SessionSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.snaps) - 1; i >= 0; i-- {
		if f.snaps[i].ID == id {
			return f.snaps[i], nil
		}
	}
	return SessionSnapshot{}, ErrNotFound
}

func (f *fakeStore) Close() error { return nil }

type fakeNotifier struct {
	mu      sync.Mutex
	updates []game.TrackUpdate
	ended   []domain.SessionID
}

func (f *fakeNotifier) TrackUpdate(id domain.SessionID, upd game.TrackUpdate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, upd)
}

func (f *fakeNotifier) SessionEnded(id domain.SessionID, reason string, conns []domain.ConnectionID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, id)
}

type manualTimers struct {
	fns []func()
}

func (m *manualTimers) factory(d time.Duration, fn func()) game.CancelTimer {
	m.fns = append(m.fns, fn)
	return noopTimer{}
}

type noopTimer struct{}

func (noopTimer) Stop() bool { return true }

func newTestRegistry(t *testing.T, tracks []domain.Track, timers *manualTimers) (*Registry, *fakeNotifier) {
	t.Helper()
	opts := Options{
		CardSize:       25,
		BingoThreshold: 20,
		Preview:        30 * time.Second,
		Source:         &fakeSource{tracks: tracks},
	}
	if timers != nil {
		opts.NewTimer = timers.factory
	}
	r := NewRegistry(opts)
	n := &fakeNotifier{}
	r.SetNotifier(n)
	return r, n
}

func TestCreateSessionRejectsSmallCatalog(t *testing.T) {
	r, _ := newTestRegistry(t, makeTracks(10, false), nil)

	_, err := r.CreateSession(context.Background(), "admin", "ref")
	if !errors.Is(err, ErrInvalidCatalog) {
		t.Fatalf("expected ErrInvalidCatalog, got %v", err)
	}
	if len(r.sessions) != 0 {
		t.Fatalf("failed create must not register a session, found %d", len(r.sessions))
	}
}

func TestCreateSessionSurfacesSourceFailure(t *testing.T) {
	r := NewRegistry(Options{
		CardSize: 25,
		Source:   &fakeSource{err: ErrSourceUnavailable},
	})

	_, err := r.CreateSession(context.Background(), "admin", "ref")
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
	if len(r.sessions) != 0 {
		t.Fatal("failed fetch must not register a session")
	}
}

func TestJoinDealsThenRebindsIdentically(t *testing.T) {
	r, _ := newTestRegistry(t, makeTracks(50, false), nil)
	id, err := r.CreateSession(context.Background(), "admin", "ref")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	card, isNew, err := r.JoinSession(id, "alice", "conn-1")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if !isNew {
		t.Fatal("first join must deal a new card")
	}
	if len(card) != 25 {
		t.Fatalf("expected 25-track card, got %d", len(card))
	}

	again, isNew, err := r.JoinSession(id, "alice", "conn-2")
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if isNew {
		t.Fatal("rejoin must not deal a new card")
	}
	for i := range card {
		if card[i].ID != again[i].ID {
			t.Fatalf("rejoin card differs at index %d: %s vs %s", i, card[i].ID, again[i].ID)
		}
	}
}

func TestJoinUnknownSession(t *testing.T) {
	r, _ := newTestRegistry(t, makeTracks(50, false), nil)
	_, _, err := r.JoinSession("nope", "alice", "conn-1")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestTwoPlayersGetDistinctCards(t *testing.T) {
	r, _ := newTestRegistry(t, makeTracks(50, false), nil)
	id, _ := r.CreateSession(context.Background(), "admin", "ref")

	cardA, _, _ := r.JoinSession(id, "alice", "conn-1")
	cardB, _, _ := r.JoinSession(id, "bob", "conn-2")

	if game.Fingerprint(cardA) == game.Fingerprint(cardB) {
		t.Fatal("expected distinct card fingerprints for two players")
	}
}

func TestPlaybackRequiresAdminConnection(t *testing.T) {
	r, _ := newTestRegistry(t, makeTracks(25, false), nil)
	id, _ := r.CreateSession(context.Background(), "admin", "ref")
	r.JoinSession(id, "alice", "conn-1")

	if _, err := r.Play(id, "conn-1"); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected ErrAdminRequired for player connection, got %v", err)
	}
	if _, err := r.Play(id, "admin"); err != nil {
		t.Fatalf("admin play: %v", err)
	}
}

func TestNextWrapsAroundCatalog(t *testing.T) {
	r, _ := newTestRegistry(t, makeTracks(25, false), nil)
	id, _ := r.CreateSession(context.Background(), "admin", "ref")

	if _, err := r.Play(id, "admin"); err != nil {
		t.Fatalf("play: %v", err)
	}
	var last game.TrackUpdate
	for i := 0; i < 25; i++ {
		upd, err := r.Next(id, "admin")
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		last = upd
	}
	// 25 nexts from index 0 land back on index 0.
	if want := "Track 0 - Artist"; last.Label != want {
		t.Fatalf("expected wrap to %q, got %q", want, last.Label)
	}
}

func TestMarkValidatesActiveTrackAndConnection(t *testing.T) {
	r, _ := newTestRegistry(t, makeTracks(25, false), nil)
	id, _ := r.CreateSession(context.Background(), "admin", "ref")
	card, _, _ := r.JoinSession(id, "alice", "conn-1")

	// Nothing playing yet: every mark is wrong.
	if _, err := r.Mark(id, "alice", "conn-1", card[0].ID); !errors.Is(err, game.ErrWrongTrack) {
		t.Fatalf("expected ErrWrongTrack before playback, got %v", err)
	}

	r.Play(id, "admin")
	active := domain.TrackID("t00")

	// Wrong connection for the player.
	if _, err := r.Mark(id, "alice", "conn-other", active); !errors.Is(err, ErrPlayerRequired) {
		t.Fatalf("expected ErrPlayerRequired, got %v", err)
	}

	state, err := r.Mark(id, "alice", "conn-1", active)
	if err != nil {
		t.Fatalf("mark active track: %v", err)
	}
	if len(state.MarkedIDs) != 1 || state.MarkedIDs[0] != active {
		t.Fatalf("unexpected marked ids %v", state.MarkedIDs)
	}

	if _, err := r.Mark(id, "alice", "conn-1", active); !errors.Is(err, game.ErrAlreadyMarked) {
		t.Fatalf("expected ErrAlreadyMarked, got %v", err)
	}
}

func TestMarkRejectsActiveTrackOffCard(t *testing.T) {
	// With a catalog twice the card size, some active tracks are not on
	// a given player's card. They must not be markable and must not
	// push the player toward bingo.
	r, _ := newTestRegistry(t, makeTracks(50, false), nil)
	r.opts.BingoThreshold = 1
	id, _ := r.CreateSession(context.Background(), "admin", "ref")
	card, _, _ := r.JoinSession(id, "alice", "conn-1")

	onCard := make(map[domain.TrackID]struct{}, len(card))
	for _, tr := range card {
		onCard[tr.ID] = struct{}{}
	}

	r.Play(id, "admin")
	active := domain.TrackID("t00")
	for i := 1; i < 50; i++ {
		if _, ok := onCard[active]; !ok {
			break
		}
		if _, err := r.Next(id, "admin"); err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		active = domain.TrackID(fmt.Sprintf("t%02d", i))
	}
	if _, ok := onCard[active]; ok {
		t.Fatal("catalog of 50 must contain a track off a 25-track card")
	}

	if _, err := r.Mark(id, "alice", "conn-1", active); !errors.Is(err, game.ErrNotOnCard) {
		t.Fatalf("expected ErrNotOnCard for off-card active track, got %v", err)
	}

	winners, err := r.CheckWinners(id, "admin")
	if err != nil {
		t.Fatalf("check winners: %v", err)
	}
	if len(winners) != 0 {
		t.Fatalf("off-card mark produced winners %v", winners)
	}
	snap, err := r.Snapshot(id, "alice", "conn-1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Player.MarkedIDs) != 0 {
		t.Fatalf("off-card mark persisted, got %v", snap.Player.MarkedIDs)
	}
}

func TestCheckWinnersScansPlayers(t *testing.T) {
	r, _ := newTestRegistry(t, makeTracks(25, false), nil)
	r.opts.BingoThreshold = 1
	id, _ := r.CreateSession(context.Background(), "admin", "ref")
	r.JoinSession(id, "alice", "conn-1")
	r.JoinSession(id, "bob", "conn-2")

	winners, err := r.CheckWinners(id, "admin")
	if err != nil {
		t.Fatalf("check winners: %v", err)
	}
	if len(winners) != 0 {
		t.Fatalf("expected no winners yet, got %v", winners)
	}

	r.Play(id, "admin")
	if _, err := r.Mark(id, "alice", "conn-1", "t00"); err != nil {
		t.Fatalf("mark: %v", err)
	}

	winners, err = r.CheckWinners(id, "admin")
	if err != nil {
		t.Fatalf("check winners: %v", err)
	}
	if len(winners) != 1 || winners[0] != "alice" {
		t.Fatalf("expected alice as sole winner, got %v", winners)
	}

	if _, err := r.CheckWinners(id, "conn-1"); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected ErrAdminRequired, got %v", err)
	}
}

func TestAutoPauseNotifiesExactlyOnce(t *testing.T) {
	timers := &manualTimers{}
	r, n := newTestRegistry(t, makeTracks(25, true), timers)
	id, _ := r.CreateSession(context.Background(), "admin", "ref")

	upd, err := r.Play(id, "admin")
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if !upd.IsPlaying {
		t.Fatal("expected playing after play")
	}
	if len(timers.fns) != 1 {
		t.Fatalf("expected one armed timer, got %d", len(timers.fns))
	}

	timers.fns[0]()
	timers.fns[0]() // stale duplicate

	if len(n.updates) != 1 {
		t.Fatalf("expected exactly one auto-pause notification, got %d", len(n.updates))
	}
	if n.updates[0].IsPlaying {
		t.Fatal("auto-pause must report not playing")
	}

	snap, err := r.Snapshot(id, "", "admin")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Track.IsPlaying {
		t.Fatal("expected session paused after auto-pause")
	}
}

func TestPauseCancelsPendingAutoPause(t *testing.T) {
	timers := &manualTimers{}
	r, n := newTestRegistry(t, makeTracks(25, true), timers)
	id, _ := r.CreateSession(context.Background(), "admin", "ref")

	r.Play(id, "admin")
	r.Pause(id, "admin")
	timers.fns[0]() // fires after the pause superseded it

	if len(n.updates) != 0 {
		t.Fatalf("superseded timer must not notify, got %d updates", len(n.updates))
	}
}

func TestAdminDisconnectTearsDownOnce(t *testing.T) {
	timers := &manualTimers{}
	r, n := newTestRegistry(t, makeTracks(25, true), timers)
	id, _ := r.CreateSession(context.Background(), "admin", "ref")
	r.JoinSession(id, "alice", "conn-1")
	r.Play(id, "admin")

	r.OnDisconnect("admin")
	r.OnDisconnect("admin") // idempotent

	if len(n.ended) != 1 {
		t.Fatalf("expected one sessionEnded notification, got %d", len(n.ended))
	}
	if _, _, err := r.JoinSession(id, "bob", "conn-2"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session gone after admin left, got %v", err)
	}

	// A timer surviving teardown must not resurrect state.
	timers.fns[0]()
	if len(n.updates) != 0 {
		t.Fatal("timer fired after teardown")
	}
}

func TestPlayerDisconnectKeepsProgress(t *testing.T) {
	r, _ := newTestRegistry(t, makeTracks(25, false), nil)
	id, _ := r.CreateSession(context.Background(), "admin", "ref")
	card, _, _ := r.JoinSession(id, "alice", "conn-1")

	r.Play(id, "admin")
	if _, err := r.Mark(id, "alice", "conn-1", "t00"); err != nil {
		t.Fatalf("mark: %v", err)
	}

	r.OnDisconnect("conn-1")

	// Offline players cannot act.
	if _, err := r.Mark(id, "alice", "conn-1", "t01"); !errors.Is(err, ErrPlayerRequired) {
		t.Fatalf("expected ErrPlayerRequired while offline, got %v", err)
	}

	again, isNew, err := r.JoinSession(id, "alice", "conn-9")
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if isNew {
		t.Fatal("rejoin after disconnect must keep the original card")
	}
	if game.Fingerprint(card) != game.Fingerprint(again) {
		t.Fatal("card changed across reconnect")
	}

	snap, err := r.Snapshot(id, "alice", "conn-9")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Player == nil || len(snap.Player.MarkedIDs) != 1 {
		t.Fatalf("expected one surviving mark, got %+v", snap.Player)
	}
}

func TestEndedSessionRejectsJoinAndClaim(t *testing.T) {
	// A caller can look a session up just before admin teardown marks it
	// ended; the dead session must not accept new bindings.
	r, _ := newTestRegistry(t, makeTracks(25, false), nil)
	id, err := r.CreatePending(context.Background(), "token-1", "ref")
	if err != nil {
		t.Fatalf("create pending: %v", err)
	}
	r.sessions[id].ended = true

	if _, _, err := r.JoinSession(id, "alice", "conn-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound joining ended session, got %v", err)
	}
	if err := r.ClaimSession(id, "token-1", "ws-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound claiming ended session, got %v", err)
	}
}

func TestClaimSessionBindsAdmin(t *testing.T) {
	r, _ := newTestRegistry(t, makeTracks(25, false), nil)
	id, err := r.CreatePending(context.Background(), "token-1", "ref")
	if err != nil {
		t.Fatalf("create pending: %v", err)
	}

	if _, err := r.Play(id, "ws-1"); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected ErrAdminRequired before claim, got %v", err)
	}
	if err := r.ClaimSession(id, "wrong-token", "ws-1"); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected claim with wrong token to fail, got %v", err)
	}
	if err := r.ClaimSession(id, "token-1", "ws-1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := r.Play(id, "ws-1"); err != nil {
		t.Fatalf("play after claim: %v", err)
	}

	// Reconnect: the token holder claims again, latest bind wins.
	if err := r.ClaimSession(id, "token-1", "ws-2"); err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if _, err := r.Play(id, "ws-1"); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected stale admin connection rejected, got %v", err)
	}
}

func TestPersistMirrorsState(t *testing.T) {
	store := &fakeStore{}
	r := NewRegistry(Options{
		CardSize: 25,
		Source:   &fakeSource{tracks: makeTracks(25, false)},
		Store:    store,
	})
	r.SetNotifier(&fakeNotifier{})

	id, _ := r.CreateSession(context.Background(), "admin", "ref")
	r.JoinSession(id, "alice", "conn-1")

	snap, err := store.Load(context.Background(), id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(snap.Players) != 1 || snap.Players[0].ID != "alice" {
		t.Fatalf("unexpected persisted players %+v", snap.Players)
	}

	// A failing store never breaks game flow.
	store.err = errors.New("disk full")
	if _, _, err := r.JoinSession(id, "bob", "conn-2"); err != nil {
		t.Fatalf("join with failing store: %v", err)
	}
}
