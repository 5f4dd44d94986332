package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"songbingo/internal/app"
	"songbingo/internal/config"
)

type createSessionRequest struct {
	PlaylistURL string `json:"playlistUrl" binding:"required,url"`
}

type createSessionResponse struct {
	SessionID string `json:"sessionId"`
	JoinURL   string `json:"joinUrl"`
}

// createSessionHandler is the plain-HTTP way to start a game. The
// session is registered without an admin connection; the creator's
// websocket claims it with the same client token.
func createSessionHandler(cfg *config.Config, reg *app.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "playlistUrl is required"})
			return
		}

		token := c.GetString("client_token")
		id, err := reg.CreatePending(c.Request.Context(), token, req.PlaylistURL)
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("create session")
			status := http.StatusBadGateway
			if errors.Is(err, app.ErrInvalidCatalog) || errors.Is(err, app.ErrInvalidReference) {
				status = http.StatusBadRequest
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, createSessionResponse{
			SessionID: string(id),
			JoinURL:   cfg.JoinURL(string(id)),
		})
	}
}
