package mnemod

import (
	"github.com/gin-gonic/gin"

	v1 "github.com/mnemora/mnemora/internal/mnemod/handler/v1"
	"github.com/mnemora/mnemora/internal/mnemod/service/runtime"
)

func initRouter(g *gin.Engine, rt *runtime.Runtime) {
	dispatchHandler := v1.NewDispatchHandler(rt)
	toolsHandler := v1.NewToolsHandler(rt)
	pluginsHandler := v1.NewPluginsHandler(rt)
	eventsHandler := v1.NewEventsHandler(rt)

	apiV1 := g.Group("/v1")
	{
		apiV1.POST("/dispatch", dispatchHandler.Handle)
		apiV1.GET("/tools", toolsHandler.List)

		apiV1.GET("/plugins", pluginsHandler.List)
		apiV1.POST("/plugins/:name/reload", pluginsHandler.Reload)

		apiV1.GET("/events", eventsHandler.History)
	}
}
