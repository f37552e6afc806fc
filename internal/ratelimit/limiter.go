// Package ratelimit implements rate limiting using Redis or local memory,
// keyed by client IP for connection attempts and by session id for
// in-room traffic.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ridgelinegames/corehost/internal/config"
	"github.com/ridgelinegames/corehost/internal/logging"
	"github.com/ridgelinegames/corehost/internal/metrics"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

// RateLimiter holds the configured limiter instances for every bounded
// surface of the server: public HTTP API, room actions, and the
// WebSocket connect/message paths.
type RateLimiter struct {
	apiGlobal   *limiter.Limiter
	apiRooms    *limiter.Limiter
	apiMessages *limiter.Limiter
	wsConnectIP *limiter.Limiter
	wsMessages  *limiter.Limiter
	store       limiter.Store
	redisClient *redis.Client
}

// NewRateLimiter builds a RateLimiter from configured rate strings,
// preferring a Redis-backed distributed store and falling back to an
// in-process store when Redis is unavailable.
func NewRateLimiter(cfg *config.Config, redisClient *redis.Client) (*RateLimiter, error) {
	apiGlobalRate, err := limiter.NewRateFromFormatted(cfg.RateLimitAPIGlobal)
	if err != nil {
		return nil, fmt.Errorf("invalid API global rate: %w", err)
	}
	apiRoomsRate, err := limiter.NewRateFromFormatted(cfg.RateLimitAPIRooms)
	if err != nil {
		return nil, fmt.Errorf("invalid API rooms rate: %w", err)
	}
	apiMessagesRate, err := limiter.NewRateFromFormatted(cfg.RateLimitAPIMessages)
	if err != nil {
		return nil, fmt.Errorf("invalid API messages rate: %w", err)
	}
	wsConnectIPRate, err := limiter.NewRateFromFormatted(cfg.RateLimitWSConnectIP)
	if err != nil {
		return nil, fmt.Errorf("invalid WS connect IP rate: %w", err)
	}
	wsMessagesRate, err := limiter.NewRateFromFormatted(cfg.RateLimitWSMessages)
	if err != nil {
		return nil, fmt.Errorf("invalid WS messages rate: %w", err)
	}

	var store limiter.Store
	if redisClient != nil {
		s, err := sredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{
			Prefix: "limiter:corehost:",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis store: %w", err)
		}
		store = s
		logging.Info(context.Background(), "rate limiter using Redis store")
	} else {
		store = memory.NewStore()
		logging.Warn(context.Background(), "rate limiter using in-memory store (Redis disabled)")
	}

	return &RateLimiter{
		apiGlobal:   limiter.New(store, apiGlobalRate),
		apiRooms:    limiter.New(store, apiRoomsRate),
		apiMessages: limiter.New(store, apiMessagesRate),
		wsConnectIP: limiter.New(store, wsConnectIPRate),
		wsMessages:  limiter.New(store, wsMessagesRate),
		store:       store,
		redisClient: redisClient,
	}, nil
}

// GlobalMiddleware enforces the global per-IP HTTP request budget.
func (rl *RateLimiter) GlobalMiddleware() gin.HandlerFunc {
	return rl.middlewareFor(rl.apiGlobal, "global", func(c *gin.Context) string {
		return c.ClientIP()
	})
}

// MiddlewareForEndpoint enforces a tighter per-IP budget for a named
// endpoint class ("rooms" for create/join calls, "messages" for chat
// or relay-style POSTs).
func (rl *RateLimiter) MiddlewareForEndpoint(endpointType string) gin.HandlerFunc {
	var limiterInstance *limiter.Limiter
	switch endpointType {
	case "rooms":
		limiterInstance = rl.apiRooms
	case "messages":
		limiterInstance = rl.apiMessages
	default:
		limiterInstance = rl.apiGlobal
	}
	return rl.middlewareFor(limiterInstance, endpointType, func(c *gin.Context) string {
		return c.ClientIP()
	})
}

func (rl *RateLimiter) middlewareFor(limiterInstance *limiter.Limiter, limitType string, keyFn func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := keyFn(c)

		lctx, err := limiterInstance.Get(ctx, key)
		if err != nil {
			logging.Error(ctx, "rate limiter store failed", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			metrics.RateLimitExceeded.WithLabelValues(c.FullPath(), limitType).Inc()
			c.Header("Retry-After", strconv.FormatInt(lctx.Reset-time.Now().Unix(), 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "too many requests",
				"retryAfter": lctx.Reset,
			})
			return
		}

		metrics.RateLimitRequests.WithLabelValues(c.FullPath()).Inc()
		c.Next()
	}
}

// CheckWebSocketConnect enforces the per-IP WebSocket connect-attempt
// budget before the HTTP connection is upgraded. Returns true if the
// connection may proceed; on rejection it writes the error response
// itself since the caller never reaches the upgrade step.
func (rl *RateLimiter) CheckWebSocketConnect(c *gin.Context) bool {
	ctx := c.Request.Context()
	ip := c.ClientIP()

	lctx, err := rl.wsConnectIP.Get(ctx, ip)
	if err != nil {
		logging.Error(ctx, "WS connect rate limiter store failed", zap.Error(err))
		return true
	}

	if lctx.Reached {
		metrics.RateLimitExceeded.WithLabelValues("websocket_connect", "ip").Inc()
		c.Header("Retry-After", strconv.FormatInt(lctx.Reset, 10))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many connection attempts from this address"})
		return false
	}

	metrics.RateLimitRequests.WithLabelValues("websocket_connect").Inc()
	return true
}

// CheckWebSocketMessage enforces the per-session inbound message
// budget: a client flooding its own connection gets its frame dropped,
// not the whole connection torn down.
func (rl *RateLimiter) CheckWebSocketMessage(ctx context.Context, sessionID string) error {
	lctx, err := rl.wsMessages.Get(ctx, sessionID)
	if err != nil {
		logging.Error(ctx, "WS message rate limiter store failed", zap.Error(err))
		return nil
	}

	if lctx.Reached {
		metrics.RateLimitExceeded.WithLabelValues("websocket_message", "session").Inc()
		return fmt.Errorf("rate limit exceeded for session %s", sessionID)
	}

	metrics.RateLimitRequests.WithLabelValues("websocket_message").Inc()
	return nil
}
