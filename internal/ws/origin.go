package ws

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

// NewUpgrader returns an upgrader that enforces NewCheckOrigin.
func NewUpgrader(allowedOrigins []string, isDevelopment bool) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     NewCheckOrigin(allowedOrigins, isDevelopment),
	}
}

// NewCheckOrigin allows empty origins (non-browser clients), same-origin
// requests and the listed origins. When isDevelopment is true, localhost
// origins are additionally allowed.
func NewCheckOrigin(allowedOrigins []string, isDevelopment bool) func(r *http.Request) bool {
	allowed := lo.FilterMap(allowedOrigins, func(o string, _ int) (string, bool) {
		origin := extractOrigin(o)
		return origin, origin != ""
	})

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}

		u, err := url.Parse(origin)
		if err == nil && u.Host == r.Host {
			return true
		}

		if lo.Contains(allowed, origin) {
			return true
		}

		if isDevelopment && isLocalhostOrigin(origin) {
			return true
		}

		slog.Warn("WebSocket origin rejected", "origin", origin, "remote_addr", r.RemoteAddr)
		return false
	}
}

func extractOrigin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func isLocalhostOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1"
}
