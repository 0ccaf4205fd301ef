// Copyright (c) 2025 Rehearsly Labs
//
// Licensed under the MIT License. See LICENSE.md for details.
package session_routers

import (
	"net/http"

	session_api "github.com/rehearslyai/api/session-api/api/session"
	"github.com/rehearslyai/config"
	"github.com/rehearslyai/pkg/commons"

	"github.com/gin-gonic/gin"
)

// SessionApiRoute registers the session orchestrator surface: user-action
// events in, read-only projection out.
func SessionApiRoute(cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger, api *session_api.SessionApi) {
	apiv1 := engine.Group("v1/session")
	{
		apiv1.POST("/open", api.Open)
		apiv1.POST("/record/start", api.StartRecording)
		apiv1.POST("/record/stop", api.StopRecording)
		apiv1.POST("/rerecord", api.ReRecord)
		apiv1.POST("/submit", api.Submit)
		apiv1.POST("/back", api.Back)

		apiv1.GET("/state", api.State)
		apiv1.GET("/state/stream", api.StateStream)
		apiv1.GET("/artifact", api.Artifact)

		apiv1.DELETE("", api.Teardown)
	}
}

// HealthCheckRoutes wires the liveness probes.
func HealthCheckRoutes(cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger) {
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": cfg.Name, "version": cfg.Version})
	})
}
