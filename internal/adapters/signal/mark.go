package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

func (ctl *Controller) handleMark(c *wsConn, data []byte) {
	if !ctl.limiter.Allow(c.id) {
		log.Warn().Str("module", "signal").Str("conn", string(c.id)).Msg("mark rate limited")
		ctl.sendError(c, "slow down")
		return
	}

	var p markPayload
	if err := json.Unmarshal(data, &p); err != nil || p.SessionID == "" || p.TrackID == "" {
		ctl.sendError(c, "bad payload")
		return
	}
	state, err := ctl.reg.Mark(p.SessionID, p.PlayerID, c.id, p.TrackID)
	if err != nil {
		ctl.sendError(c, userMessage(err))
		return
	}
	ctl.sendJSON(c, cardUpdateEvent{Type: "cardUpdate", CardState: state})
}
