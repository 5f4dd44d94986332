package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
)

func (ctl *Controller) handleCreate(ctx context.Context, c *wsConn, data []byte) {
	var p createPayload
	if err := json.Unmarshal(data, &p); err != nil || p.PlaylistURL == "" {
		ctl.sendError(c, "bad payload")
		return
	}

	id, err := ctl.reg.CreateSession(ctx, c.id, p.PlaylistURL)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("create session")
		ctl.sendError(c, userMessage(err))
		return
	}
	ctl.sendJSON(c, sessionCreatedEvent{
		Type:      "sessionCreated",
		SessionID: id,
		JoinURL:   ctl.cfg.JoinURL(string(id)),
	})
}

func (ctl *Controller) handleClaim(c *wsConn, data []byte) {
	var p claimPayload
	if err := json.Unmarshal(data, &p); err != nil || p.SessionID == "" {
		ctl.sendError(c, "bad payload")
		return
	}
	if err := ctl.reg.ClaimSession(p.SessionID, c.token, c.id); err != nil {
		ctl.sendError(c, userMessage(err))
		return
	}
	ctl.sendJSON(c, sessionCreatedEvent{
		Type:      "sessionCreated",
		SessionID: p.SessionID,
		JoinURL:   ctl.cfg.JoinURL(string(p.SessionID)),
	})
}

func (ctl *Controller) handleJoin(c *wsConn, data []byte) {
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil || p.SessionID == "" {
		ctl.sendError(c, "bad payload")
		return
	}

	card, isNew, err := ctl.reg.JoinSession(p.SessionID, p.PlayerID, c.id)
	if err != nil {
		ctl.sendError(c, userMessage(err))
		return
	}
	ctl.sendJSON(c, sessionJoinedEvent{
		Type:      "sessionJoined",
		SessionID: p.SessionID,
		Card:      card,
		IsNew:     isNew,
	})
}

func (ctl *Controller) handleRequestState(c *wsConn, data []byte) {
	var p statePayload
	if err := json.Unmarshal(data, &p); err != nil || p.SessionID == "" {
		ctl.sendError(c, "bad payload")
		return
	}
	snap, err := ctl.reg.Snapshot(p.SessionID, p.PlayerID, c.id)
	if err != nil {
		ctl.sendError(c, userMessage(err))
		return
	}
	ctl.sendJSON(c, stateSnapshotEvent{Type: "stateSnapshot", StateSnapshot: snap})
}
