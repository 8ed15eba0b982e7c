package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"reporting-scheduler/pkg/config"
	"reporting-scheduler/pkg/health"
	"reporting-scheduler/pkg/middleware"
)

// Module builds the gin engine and mounts every route.
var Module = fx.Module("httpapi",
	fx.Provide(
		NewDefinitionHandler,
		NewInstanceHandler,
		NewEngine,
	),
)

type EngineParams struct {
	fx.In
	Config      *config.Config
	Health      health.HealthService
	Definitions *DefinitionHandler
	Instances   *InstanceHandler
}

func NewEngine(p EngineParams) *gin.Engine {
	if p.Config.Server.Mode != "" {
		gin.SetMode(p.Config.Server.Mode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.Auth(), middleware.Error())

	engine.GET("/healthz", p.Health.Liveness)
	engine.GET("/readyz", p.Health.Readiness)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api/reports")
	{
		api.POST("/definition", p.Definitions.Create)
		api.GET("/definition/:id", p.Definitions.Get)
		api.PUT("/definition/:id", p.Definitions.Update)
		api.DELETE("/definition/:id", p.Definitions.Delete)
		api.GET("/definitions", p.Definitions.List)

		api.POST("/on_demand/:id", p.Instances.CreateOnDemand)
		api.PUT("/on_demand", p.Instances.CreateInContext)
		api.GET("/instance/:id", p.Instances.Get)
		api.POST("/instance/:id", p.Instances.UpdateStatus)
		api.GET("/instances", p.Instances.List)
		api.GET("/poll_instance", p.Instances.Poll)
	}

	return engine
}
