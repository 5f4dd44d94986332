package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, c *wsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(c.id)).Msg("readPump closing")
		ctl.drop(c)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				return
			}
			ctl.handleEvent(ctx, c, data)
		}
	}
}

func (ctl *Controller) handleEvent(ctx context.Context, c *wsConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(c, "bad payload")
		return
	}

	switch env.Type {
	case "createSession":
		ctl.handleCreate(ctx, c, data)
	case "claimSession":
		ctl.handleClaim(c, data)
	case "joinSession":
		ctl.handleJoin(c, data)
	case "play":
		ctl.handlePlay(c, data)
	case "pause":
		ctl.handlePause(c, data)
	case "next":
		ctl.handleNext(c, data)
	case "mark":
		ctl.handleMark(c, data)
	case "checkWinners":
		ctl.handleCheckWinners(c, data)
	case "requestState":
		ctl.handleRequestState(c, data)
	case "ping":
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown event")
	}
}

func (ctl *Controller) handlePing(c *wsConn) {
	ctl.sendJSON(c, struct {
		Type string `json:"type"`
	}{Type: "pong"})
}

func marshalEvent(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("marshal event")
	}
	return data, err
}

func (ctl *Controller) sendJSON(c *wsConn, v any) {
	data, err := marshalEvent(v)
	if err != nil {
		return
	}
	if err := c.TrySend(data); err != nil {
		log.Warn().Str("module", "signal").Str("conn", string(c.id)).Err(err).Msg("send failed")
	}
}

func (ctl *Controller) sendError(c *wsConn, msg string) {
	ctl.sendJSON(c, sessionErrorEvent{Type: "sessionError", Message: msg})
}
