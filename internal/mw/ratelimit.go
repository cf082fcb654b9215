package mw

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// IPRateLimiter stores a rate limiter for each client IP address.
type IPRateLimiter struct {
	ips map[string]*rate.Limiter
	mu  sync.RWMutex
	r   rate.Limit
	b   int
}

// NewIPRateLimiter creates a new IPRateLimiter.
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		ips: make(map[string]*rate.Limiter),
		r:   r,
		b:   b,
	}
}

func (i *IPRateLimiter) limiter(ip string) *rate.Limiter {
	i.mu.RLock()
	l, exists := i.ips[ip]
	i.mu.RUnlock()
	if exists {
		return l
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if l, exists := i.ips[ip]; exists {
		return l
	}
	l = rate.NewLimiter(i.r, i.b)
	i.ips[ip] = l
	return l
}

// RateLimiter is a middleware for per-IP rate limiting.
func RateLimiter(r rate.Limit, b int) gin.HandlerFunc {
	limiter := NewIPRateLimiter(r, b)
	return func(c *gin.Context) {
		if !limiter.limiter(c.ClientIP()).Allow() {
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.Next()
	}
}
