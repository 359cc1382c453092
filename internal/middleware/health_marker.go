package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Redis keys for request stats. Exported for the health handlers (reset, collect).
const (
	KeyReqTotal  = "health:easyflip:req_total"
	KeyReqErrors = "health:easyflip:req_errors"
	KeyResTime   = "health:easyflip:res_time_total"
	KeyResCount  = "health:easyflip:res_count"
	KeyStartTime = "health:easyflip:start_time"
	KeyLastReq   = "health:easyflip:last_request"
	KeyErrorLog  = "health:easyflip:error_log"
)

const errorLogSize = 50

// HealthMarker records request stats in Redis (skip /health*, /metrics, favicon).
// 5xx responses are also pushed onto the capped error log.
func HealthMarker(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		if rdb == nil || strings.HasPrefix(path, "/health") || strings.HasPrefix(path, "/metrics") || strings.HasPrefix(path, "/favicon") {
			return c.Next()
		}

		start := time.Now()
		lastReq := map[string]interface{}{
			"time":   start,
			"ip":     c.IP(),
			"path":   path,
			"method": c.Method(),
		}
		b, _ := json.Marshal(lastReq)
		ctx := context.Background()
		_ = rdb.Set(ctx, KeyLastReq, b, 0).Err()
		_ = rdb.Incr(ctx, KeyReqTotal).Err()

		err := c.Next()

		ms := time.Since(start).Milliseconds()
		_ = rdb.Incr(ctx, KeyResCount).Err()
		_ = rdb.IncrByFloat(ctx, KeyResTime, float64(ms)).Err()
		status := c.Response().StatusCode()
		if err != nil {
			// Handler errors have not been rendered yet; count them as failures.
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}
		if status >= fiber.StatusInternalServerError {
			_ = rdb.Incr(ctx, KeyReqErrors).Err()
			entry := map[string]interface{}{
				"time":     time.Now(),
				"method":   c.Method(),
				"path":     path,
				"status":   status,
				"trace_id": GetTraceID(c),
			}
			if err != nil {
				entry["error"] = err.Error()
			}
			eb, _ := json.Marshal(entry)
			_ = rdb.LPush(ctx, KeyErrorLog, eb).Err()
			_ = rdb.LTrim(ctx, KeyErrorLog, 0, errorLogSize-1).Err()
		}
		return err
	}
}
