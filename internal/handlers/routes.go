package handlers

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the import and order endpoints on an /api/v1 group
func RegisterRoutes(v1 gin.IRouter, imports *ImportHandler, orders *OrderHandler) {
	importRoutes := v1.Group("/imports")
	{
		importRoutes.GET("", imports.ListRuns)
		importRoutes.GET("/:id", imports.GetRun)
		importRoutes.POST("/orders", imports.ImportOrders)
		importRoutes.POST("/shipping", imports.ImportShipping)
		importRoutes.POST("/remote", imports.FetchRemote)
	}

	orderRoutes := v1.Group("/orders")
	{
		orderRoutes.GET("", orders.List)
		orderRoutes.GET("/:itemId", orders.Get)
		orderRoutes.PATCH("/:itemId/shipping", orders.UpdateShipping)
	}
}
