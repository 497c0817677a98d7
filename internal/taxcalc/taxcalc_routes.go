package taxcalc

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.RouterGroup, handler *Handler) {
	tax := r.Group("/tax")
	{
		tax.POST("/calculate", handler.Calculate)
	}
}
