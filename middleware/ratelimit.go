package middleware

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimit enforces a fixed-window limit per caller per route, counted in
// Redis so every instance shares the same window. Fails open when Redis is
// unreachable; throttling is protection, not a correctness requirement.
func RateLimit(rdb *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil {
			c.Next()
			return
		}

		caller := c.ClientIP()
		if userID, exists := c.Get("userID"); exists {
			caller = fmt.Sprintf("u%v", userID)
		}
		key := fmt.Sprintf("ratelimit:%s:%s", c.FullPath(), caller)

		ctx := c.Request.Context()
		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			log.Printf("ratelimit: redis incr failed: %v", err)
			c.Next()
			return
		}
		if count == 1 {
			if err := rdb.Expire(ctx, key, window).Err(); err != nil {
				log.Printf("ratelimit: redis expire failed: %v", err)
			}
		}

		if count > int64(limit) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, slow down"})
			c.Abort()
			return
		}

		c.Next()
	}
}
