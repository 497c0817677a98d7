package payrollbatch

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.RouterGroup, handler *Handler) {
	batches := r.Group("/batches")
	{
		batches.POST("", handler.Create)
		batches.GET("/:id", handler.GetById)
		batches.POST("/:id/items", handler.AddItem)
		batches.POST("/:id/recompute", handler.Recompute)
		batches.POST("/:id/finalize", handler.Finalize)
	}
}
