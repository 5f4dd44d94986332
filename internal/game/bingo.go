package game

import (
	"errors"

	"songbingo/internal/domain"
)

// GridWidth is the card column count. Cards of 20 tracks form four
// full rows; cards of 25 a full square with diagonals.
const GridWidth = 5

var (
	ErrWrongTrack    = errors.New("track is not the one currently playing")
	ErrNotOnCard     = errors.New("track is not on the card")
	ErrAlreadyMarked = errors.New("track already marked")
)

// MarkTrack validates and applies one mark for a player: the track must
// be the currently active one, present on the player's card, and not
// yet marked. Cards are a subset of the catalog, so the active track is
// regularly absent from a given card; such marks are rejected before
// anything mutates, keeping the mark set a subset of the card. On
// success the player's lines and bingo status are recomputed from
// scratch.
func MarkTrack(p *domain.Player, active, id domain.TrackID, threshold int) error {
	if id != active {
		return ErrWrongTrack
	}
	if !p.OnCard(id) {
		return ErrNotOnCard
	}
	if p.HasMarked(id) {
		return ErrAlreadyMarked
	}
	p.Marked[id] = struct{}{}
	p.LinesCompleted, p.IsBingo = Evaluate(p.Card, p.Marked, threshold)
	return nil
}

// Evaluate recomputes completed lines and bingo status from the card
// and mark set alone. It is deterministic and idempotent; callers never
// cache its result independently of the inputs.
func Evaluate(card []domain.Track, marked map[domain.TrackID]struct{}, threshold int) (lines int, bingo bool) {
	return Lines(card, marked), len(marked) >= threshold
}

// Lines counts completed rows, columns and (on a full square)
// diagonals of the card laid out row-major with GridWidth columns.
// Rows and columns only span cells that exist, so the short last row of
// a 20-track card still yields five countable columns of four.
func Lines(card []domain.Track, marked map[domain.TrackID]struct{}) int {
	size := len(card)
	if size == 0 {
		return 0
	}
	has := func(i int) bool {
		_, ok := marked[card[i].ID]
		return ok
	}

	rows := (size + GridWidth - 1) / GridWidth
	lines := 0

	for r := 0; r < rows; r++ {
		complete := true
		for c := 0; c < GridWidth && r*GridWidth+c < size; c++ {
			if !has(r*GridWidth + c) {
				complete = false
				break
			}
		}
		if complete {
			lines++
		}
	}

	for c := 0; c < GridWidth; c++ {
		complete := false
		for i := c; i < size; i += GridWidth {
			if !has(i) {
				complete = false
				break
			}
			complete = true
		}
		if complete {
			lines++
		}
	}

	// Diagonals only make sense on a full square card.
	if size == GridWidth*GridWidth {
		main, anti := true, true
		for i := 0; i < GridWidth; i++ {
			if !has(i*GridWidth + i) {
				main = false
			}
			if !has(i*GridWidth + (GridWidth - 1 - i)) {
				anti = false
			}
		}
		if main {
			lines++
		}
		if anti {
			lines++
		}
	}

	return lines
}
