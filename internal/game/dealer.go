// Package game holds the core rules: card dealing, mark and win
// evaluation, and the playback state machine. Nothing here touches
// transport or storage; callers serialize access per session.
package game

import (
	"math/rand/v2"
	"strings"

	"songbingo/internal/domain"
)

// dealRetries bounds how often the dealer reshuffles to dodge a
// fingerprint collision before accepting a duplicate card.
const dealRetries = 10

// Fingerprint identifies a card by the ordered concatenation of its
// track ids. Cheap duplicate detection within one session, nothing more.
func Fingerprint(card []domain.Track) string {
	ids := make([]string, len(card))
	for i, t := range card {
		ids[i] = string(t.ID)
	}
	return strings.Join(ids, "|")
}

// Deal produces a fresh card of size tracks drawn from the catalog.
// If the shuffled card's fingerprint collides with one already taken in
// the session, the shuffle is retried a bounded number of times; after
// that the duplicate is accepted rather than blocking the join.
// The caller guarantees len(catalog) >= size.
func Deal(catalog []domain.Track, size int, taken map[string]struct{}) ([]domain.Track, string) {
	var card []domain.Track
	var fp string
	for attempt := 0; attempt < dealRetries; attempt++ {
		card = shuffled(catalog)[:size]
		fp = Fingerprint(card)
		if _, dup := taken[fp]; !dup {
			break
		}
	}
	return card, fp
}

func shuffled(catalog []domain.Track) []domain.Track {
	out := make([]domain.Track, len(catalog))
	copy(out, catalog)
	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
