// Copyright (C) 2026 rosroyros
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides gin middleware for tier resolution and
// request rate limiting.
package middleware

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/rosroyros/citations-sub002/services/validator/jobs"
	"github.com/rosroyros/citations-sub002/services/validator/quota"
)

// Header names for tier resolution.
const (
	HeaderUserToken  = "X-User-Token"
	HeaderFreeUsed   = "X-Free-Used"
	HeaderFreeUserID = "X-Free-User-ID"
)

// tierContextKey is the gin context key holding the resolved TierContext.
const tierContextKey = "tier_context"

// ResolveTier determines the caller's tier from request headers.
//
// A present X-User-Token marks the caller as paid. Otherwise the caller
// is free tier: X-Free-Used carries the base64-encoded count of free
// validations already consumed, and X-Free-User-ID a base64-encoded
// anonymous identifier. An X-Free-Used value that does not decode to an
// integer aborts the request with 400.
func ResolveTier() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(HeaderUserToken))
		if token != "" {
			c.Set(tierContextKey, jobs.TierContext{
				Tier:      quota.TierPaid,
				UserToken: token,
			})
			c.Next()
			return
		}

		tc := jobs.TierContext{Tier: quota.TierFree}

		if raw := c.GetHeader(HeaderFreeUsed); raw != "" {
			used, err := decodeBase64Int(raw)
			if err != nil {
				slog.Warn("middleware: invalid free-used header", "error", err)
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "invalid X-Free-Used header",
				})
				c.Abort()
				return
			}
			tc.PriorUsed = used
		}

		if raw := c.GetHeader(HeaderFreeUserID); raw != "" {
			if id, err := base64.StdEncoding.DecodeString(raw); err == nil {
				tc.UserToken = string(id)
			}
		}

		c.Set(tierContextKey, tc)
		c.Next()
	}
}

// GetTierContext retrieves the TierContext set by ResolveTier. The ok
// result is false when the middleware did not run.
func GetTierContext(c *gin.Context) (jobs.TierContext, bool) {
	v, exists := c.Get(tierContextKey)
	if !exists {
		return jobs.TierContext{}, false
	}
	tc, ok := v.(jobs.TierContext)
	return tc, ok
}

func decodeBase64Int(raw string) (int, error) {
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(decoded)))
	if err != nil {
		return 0, err
	}
	if n < 0 {
		n = 0
	}
	return n, nil
}

// =============================================================================
// Rate Limiting
// =============================================================================

// RateLimiter holds per-client token buckets keyed by client IP.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*rate.Limiter
	rps     rate.Limit
	burst   int
}

// NewRateLimiter creates a limiter allowing rps requests per second
// with the given burst per client IP.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*rate.Limiter),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	lim, ok := rl.clients[key]
	if !ok {
		lim = rate.NewLimiter(rl.rps, rl.burst)
		rl.clients[key] = lim
	}
	return lim
}

// Middleware rejects requests exceeding the per-client rate with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.limiterFor(c.ClientIP()).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
