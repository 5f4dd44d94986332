package domain

type (
	SessionID    string
	ConnectionID string
)

const MaxPlayerIDLen = 64

// Session is the meta-data of one running game: who administers it and
// which tracks back it. Playback state and player bookkeeping live in
// the registry, which serializes access.
type Session struct {
	ID      SessionID
	Catalog []Track
	// Admin is the connection currently holding admin rights; exactly
	// one per session, latest bind wins.
	Admin ConnectionID
	// ClaimToken allows the holder of a client token to claim the admin
	// connection for sessions created over plain HTTP.
	ClaimToken string
}
