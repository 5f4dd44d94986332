package signal

import (
	"encoding/json"

	"songbingo/internal/domain"
	"songbingo/internal/game"
)

func (ctl *Controller) handlePlay(c *wsConn, data []byte) {
	ctl.playbackCommand(c, data, ctl.reg.Play)
}

func (ctl *Controller) handlePause(c *wsConn, data []byte) {
	ctl.playbackCommand(c, data, ctl.reg.Pause)
}

func (ctl *Controller) handleNext(c *wsConn, data []byte) {
	ctl.playbackCommand(c, data, ctl.reg.Next)
}

// playbackCommand runs one admin playback transition and broadcasts
// the resulting track update to the whole room. Authorization failures
// go to the offending connection only.
func (ctl *Controller) playbackCommand(c *wsConn, data []byte, op func(domain.SessionID, domain.ConnectionID) (game.TrackUpdate, error)) {
	var p playbackPayload
	if err := json.Unmarshal(data, &p); err != nil || p.SessionID == "" {
		ctl.sendError(c, "bad payload")
		return
	}
	upd, err := op(p.SessionID, c.id)
	if err != nil {
		ctl.sendError(c, userMessage(err))
		return
	}
	ctl.broadcast(p.SessionID, trackUpdateEvent{Type: "trackUpdate", TrackUpdate: upd})
}

func (ctl *Controller) handleCheckWinners(c *wsConn, data []byte) {
	var p playbackPayload
	if err := json.Unmarshal(data, &p); err != nil || p.SessionID == "" {
		ctl.sendError(c, "bad payload")
		return
	}
	winners, err := ctl.reg.CheckWinners(p.SessionID, c.id)
	if err != nil {
		ctl.sendError(c, userMessage(err))
		return
	}
	ctl.broadcast(p.SessionID, winnersFoundEvent{Type: "winnersFound", Winners: winners})
}
