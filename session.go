package main

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"wordloop/internal/ws"
)

// wsHandler upgrades the request and keeps the client registered until the
// connection closes.
func (app *App) wsHandler(c *gin.Context) {
	conn, err := app.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already written the error response.
		logWarn("WebSocket upgrade failed: %v", err)
		return
	}

	ctx := c.Request.Context()
	client := ws.NewClient(conn, app.Clock)
	if err := app.Broadcaster.Admit(ctx, client, app.catchUp); err != nil {
		slog.WarnContext(ctx, "Client dropped before first message", "client_id", client.ID(), "error", err)
		return
	}

	cause := client.Run(app.connCtx)
	app.Registry.Unregister(client)
	slog.DebugContext(ctx, "WebSocket session ended", "client_id", client.ID(), "reason", cause)
}
