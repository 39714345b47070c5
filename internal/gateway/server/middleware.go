package server

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ipa-leadgate/internal/common/errors"
	httpclient "ipa-leadgate/internal/common/http"
	"ipa-leadgate/internal/common/logger"
	"ipa-leadgate/internal/common/metrics"
)

const HeaderRequestID = "X-Request-ID"

// RequestID reuses a well-formed incoming X-Request-ID or generates one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(httpclient.KeyRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

// ClientIP stores the visitor address under httpclient.KeyClientIP.
//
// With trustedProxies == 0 the first X-Forwarded-For entry is used. Otherwise
// the entry our own proxies appended is read from the right, so a client
// cannot choose its key by sending a forged header.
func ClientIP(trustedProxies int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(httpclient.KeyClientIP, resolveClientIP(c.Request, trustedProxies))
		c.Next()
	}
}

func resolveClientIP(r *http.Request, trustedProxies int) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		idx := 0
		if trustedProxies > 0 {
			idx = len(parts) - trustedProxies
		}
		if idx >= 0 && idx < len(parts) {
			if ip := strings.TrimSpace(parts[idx]); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if r.RemoteAddr != "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			return r.RemoteAddr
		}
		return host
	}
	return "unknown"
}

// AccessLog writes one line per request once the handler chain is done.
func AccessLog(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := map[string]interface{}{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"latencyMs": time.Since(start).Milliseconds(),
			"requestId": c.GetString(httpclient.KeyRequestID),
			"clientIp":  c.GetString(httpclient.KeyClientIP),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Warn("Request handled", fields)
			return
		}
		log.Info("Request handled", fields)
	}
}

// CORS allows the configured site origins to post forms from the browser.
// An entry of "*" allows any origin. Preflight requests end here.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.TrimRight(o, "/")] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowAll || allowed[origin]) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, "+HeaderRequestID)
			c.Header("Access-Control-Max-Age", "600")
			c.Header("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// SecurityHeaders sets response headers for a JSON-only API.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		c.Next()
	}
}

// Metrics records request counts and latency per route.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		metrics.RequestsInFlight.WithLabelValues(endpoint).Inc()
		start := time.Now()
		c.Next()
		metrics.RequestsInFlight.WithLabelValues(endpoint).Dec()

		metrics.RequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		metrics.RequestsTotal.WithLabelValues(endpoint, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// Recovery turns a panic into the generic 500 body.
func Recovery(h *errors.ErrorHandler) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		h.Respond(c, errors.NewInternalError(fmt.Errorf("panic: %v", recovered)))
	})
}
