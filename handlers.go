package main

import (
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"wordloop/internal/loop"
	"wordloop/internal/types"
)

// homeHandler serves the browser client, or upgrades the request when the
// client opened its WebSocket on the root path.
func (app *App) homeHandler(c *gin.Context) {
	if websocket.IsWebSocketUpgrade(c.Request) {
		app.wsHandler(c)
		return
	}
	c.File(filepath.Join(app.AssetDir, "index.html"))
}

// startLoopHandler starts the word loop. The initial word reaches connected
// clients through the loop's first tick.
func (app *App) startLoopHandler(c *gin.Context) {
	word, err := app.startLoop()
	if err != nil {
		app.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, types.ControlResponse{
		Success:     true,
		Message:     MessageLoopStarted,
		InitialWord: word,
	})
}

// stopLoopHandler stops the word loop and tells every client.
func (app *App) stopLoopHandler(c *gin.Context) {
	if err := app.stopLoop(c.Request.Context()); err != nil {
		app.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, types.ControlResponse{
		Success: true,
		Message: MessageLoopStopped,
	})
}

func (app *App) currentWordHandler(c *gin.Context) {
	state := app.Loop.State()
	c.JSON(http.StatusOK, types.CurrentWordResponse{
		CurrentWord:   state.Word(),
		IsLoopRunning: state.Running,
	})
}

func (app *App) statusHandler(c *gin.Context) {
	state := app.Loop.State()
	c.JSON(http.StatusOK, types.StatusResponse{
		WordLoop: types.WordLoopStatus{
			IsRunning:   state.Running,
			CurrentWord: state.Word(),
		},
		WebSocket: types.WebSocketStatus{
			ConnectedClients: app.Registry.Count(),
		},
		Server: types.ServerStatus{
			Uptime:    app.uptime().Seconds(),
			Timestamp: app.timestamp(),
		},
	})
}

func (app *App) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, types.HealthResponse{
		Status:    "OK",
		Timestamp: app.timestamp(),
		Uptime:    app.uptime().Seconds(),
	})
}

// healthzHandler returns a JSON health check with server stats.
func (app *App) healthzHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"env":               map[bool]string{true: "production", false: "development"}[app.Config.IsProduction()],
		"words_loaded":      app.Words.Len(),
		"loop_running":      app.Loop.IsRunning(),
		"connected_clients": app.Registry.Count(),
		"uptime":            formatUptime(app.uptime()),
		"timestamp":         app.timestamp(),
	})
}

func (app *App) notFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, types.ControlResponse{
		Success: false,
		Message: MessageRouteNotFound,
	})
}

func (app *App) recoveryHandler(c *gin.Context, recovered any) {
	slog.ErrorContext(c.Request.Context(), "Handler panicked", "panic", recovered, "path", c.Request.URL.Path)
	resp := types.ControlResponse{Success: false, Message: MessageInternalError}
	if !app.Config.IsProduction() {
		if err, ok := recovered.(error); ok {
			resp.Error = err.Error()
		}
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, resp)
}

// respondError reports rejected loop operations as unsuccessful results and
// anything else as an internal error.
func (app *App) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, loop.ErrAlreadyRunning):
		c.JSON(http.StatusOK, types.ControlResponse{Success: false, Message: MessageLoopAlreadyRunning})
	case errors.Is(err, loop.ErrNotRunning):
		c.JSON(http.StatusOK, types.ControlResponse{Success: false, Message: MessageLoopNotRunning})
	default:
		slog.ErrorContext(c.Request.Context(), "Request failed", "path", c.Request.URL.Path, "error", err)
		resp := types.ControlResponse{Success: false, Message: MessageInternalError}
		if !app.Config.IsProduction() {
			resp.Error = err.Error()
		}
		c.JSON(http.StatusInternalServerError, resp)
	}
}

func (app *App) uptime() time.Duration {
	return app.Clock.Since(app.StartTime)
}

func (app *App) timestamp() string {
	return app.Clock.Now().UTC().Format(time.RFC3339)
}
