package handler

import (
	"context"
	"net/http"
	"time"

	"moneycase/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Health checks DB and (when configured) Redis connectivity and reports the
// Z-report dead letter queue depth. Never exposes credentials or internals.
func Health(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "connected"
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			dbStatus = "error"
		}

		body := gin.H{"db": dbStatus}
		healthy := dbStatus == "connected"

		if rdb == nil {
			body["redis"] = "disabled"
		} else if rdb.Ping(ctx).Err() != nil {
			body["redis"] = "error"
			healthy = false
		} else {
			body["redis"] = "connected"
			if n, err := worker.DLQLength(ctx, rdb, worker.QueueZReport); err == nil {
				body["zreport_dlq"] = n
			}
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		body["ok"] = healthy
		c.JSON(status, body)
	}
}
