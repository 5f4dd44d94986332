package domain

type PlayerID string

// Player is one participant's per-session state. The card is dealt
// once on first join and never reshuffled; marks, lines and bingo
// survive disconnects because the player entry is kept while the
// session lives.
type Player struct {
	ID             PlayerID
	Connection     ConnectionID // empty while offline
	Card           []Track
	Marked         map[TrackID]struct{}
	LinesCompleted int
	IsBingo        bool
}

// NewPlayer avoids raw literals in adapters and keeps construction obvious.
func NewPlayer(id PlayerID, conn ConnectionID, card []Track) *Player {
	return &Player{
		ID:         id,
		Connection: conn,
		Card:       card,
		Marked:     make(map[TrackID]struct{}),
	}
}

// OnCard reports whether the track is one of the player's card cells.
func (p *Player) OnCard(id TrackID) bool {
	for _, t := range p.Card {
		if t.ID == id {
			return true
		}
	}
	return false
}

// HasMarked reports whether the track is already marked.
func (p *Player) HasMarked(id TrackID) bool {
	_, ok := p.Marked[id]
	return ok
}

// MarkedIDs returns the marked track ids in card order.
func (p *Player) MarkedIDs() []TrackID {
	out := make([]TrackID, 0, len(p.Marked))
	for _, t := range p.Card {
		if p.HasMarked(t.ID) {
			out = append(out, t.ID)
		}
	}
	return out
}
