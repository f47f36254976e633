package main

// Route constants
const (
	RouteHome        = "/"
	RouteWebSocket   = "/ws"
	RouteAPI         = "/api"
	RouteStartLoop   = "/start-loop"
	RouteStopLoop    = "/stop-loop"
	RouteCurrentWord = "/current-word"
	RouteStatus      = "/status"
	RouteHealth      = "/health"
	RouteHealthz     = "/healthz"
	RouteMetrics     = "/metrics"
	RouteStatic      = "/static"
)

// Control response messages
const (
	MessageLoopStarted        = "Word loop started"
	MessageLoopAlreadyRunning = "Loop is already running"
	MessageLoopStopped        = "Word loop stopped"
	MessageLoopNotRunning     = "Loop is not running"
	MessageRouteNotFound      = "Route not found"
	MessageInternalError      = "Internal server error"
	MessageTooManyRequests    = "Too many requests. Please slow down."
)

// WebSocket close handshake used on shutdown
const (
	CloseReasonShutdown = "Server shutting down"
)

// Context key constants
const (
	requestIDKey contextKey = "request_id"
)
