package taxrule

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.RouterGroup, handler *Handler) {
	rules := r.Group("/tax/rules")
	{
		rules.GET("", handler.GetAll)
		rules.POST("", handler.Create)
		rules.DELETE("/:id", handler.Deactivate)
	}
}
