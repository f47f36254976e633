package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	cachecontrol "go.eigsys.de/gin-cachecontrol/v2"
	"golang.org/x/time/rate"

	"wordloop/internal/types"
)

// limiterTTL is how long an idle client's limiter is kept.
const limiterTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// getLimiter returns a rate limiter for the given key (usually client IP).
// Limiters idle for longer than limiterTTL are swept at most once per TTL.
func (app *App) getLimiter(key string) *rate.Limiter {
	app.LimiterMutex.Lock()
	defer app.LimiterMutex.Unlock()

	now := app.Clock.Now()
	if now.Sub(app.lastSweep) >= limiterTTL {
		app.sweepLimiters(now)
	}

	if cl, ok := app.LimiterMap[key]; ok {
		cl.lastSeen = now
		return cl.limiter
	}

	if key == "" || key == "::1" {
		logWarn("Rate limiter key is empty or loopback: %q", key)
	}
	lim := rate.NewLimiter(rate.Limit(app.Config.RateLimitRPS), app.Config.RateLimitBurst)
	app.LimiterMap[key] = &clientLimiter{limiter: lim, lastSeen: now}
	return lim
}

// sweepLimiters drops idle limiters. Callers hold LimiterMutex.
func (app *App) sweepLimiters(now time.Time) {
	for key, cl := range app.LimiterMap {
		if now.Sub(cl.lastSeen) >= limiterTTL {
			delete(app.LimiterMap, key)
		}
	}
	app.lastSweep = now
}

// rateLimitMiddleware enforces per-client rate limiting on loop control requests.
func (app *App) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if !app.getLimiter(key).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, types.ControlResponse{
				Success: false,
				Message: MessageTooManyRequests,
			})
			return
		}
		c.Next()
	}
}

// requestIDMiddleware injects a request ID into the context for each request.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.Request.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(c.Request.Context(), requestIDKey, reqID)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-Id", reqID)
		c.Next()
	}
}

// cacheHeadersMiddleware lets production clients cache static assets and
// marks everything else as uncacheable.
func (app *App) cacheHeadersMiddleware() gin.HandlerFunc {
	production := app.Config.IsProduction()
	return func(c *gin.Context) {
		applyCacheHeaders(c, production, app.Config.StaticCacheAge)
		c.Next()
	}
}

func applyCacheHeaders(c *gin.Context, production bool, staticAge time.Duration) {
	if production && strings.HasPrefix(c.Request.URL.Path, RouteStatic+"/") {
		cachecontrol.New(cachecontrol.Config{
			Public: true,
			MaxAge: cachecontrol.Duration(staticAge),
		})(c)
		c.Header("Vary", "Accept-Encoding")
		return
	}
	cachecontrol.New(cachecontrol.Config{
		NoStore:        true,
		NoCache:        true,
		MustRevalidate: true,
	})(c)
}
