package disbursement

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"go-payroll/internal/middleware"
)

func RegisterRoutes(r *gin.RouterGroup, handler *Handler, rdb *redis.Client) {
	batches := r.Group("/batches")
	{
		batches.POST("/:id/disburse", middleware.Idempotency(rdb), handler.Disburse)
		batches.POST("/:id/retry-failed", handler.RetryFailed)
		batches.GET("/:id/required-funds", handler.RequiredFunds)
	}
}
