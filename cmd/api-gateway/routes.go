package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/smallgroups-admin-api/internal/handler"
	"github.com/noah-isme/smallgroups-admin-api/internal/middleware"
	"github.com/noah-isme/smallgroups-admin-api/internal/models"
	"github.com/noah-isme/smallgroups-admin-api/internal/repository"
	"github.com/noah-isme/smallgroups-admin-api/internal/service"
	"github.com/noah-isme/smallgroups-admin-api/pkg/config"
)

type routeDeps struct {
	auth   *service.AuthService
	audits *repository.UserRepository
	logger *zap.Logger

	authH      *handler.AuthHandler
	accountH   *handler.AccountHandler
	territoryH *handler.TerritoryHandler
	groupH     *handler.GroupHandler
	leaderH    *handler.LeaderHandler
	bethelH    *handler.BethelHandler
	analyticsH *handler.AnalyticsHandler
	dashboardH *handler.DashboardHandler
	exportH    *handler.ExportHandler
	metricsH   *handler.MetricsHandler
}

func registerRoutes(r *gin.Engine, cfg *config.Config, d routeDeps) {
	r.GET("/health", d.metricsH.Health)
	r.GET("/ready", d.metricsH.Ready)
	r.GET("/metrics", d.metricsH.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	authGroup := api.Group("/auth")
	authGroup.POST("/login", d.authH.Login)
	authGroup.POST("/refresh", d.authH.Refresh)

	// signed links are fetched without a session
	api.GET("/exports/download/:token", d.exportH.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(d.auth))
	secured.POST("/auth/logout", d.authH.Logout)
	secured.GET("/auth/me", d.authH.Me)

	admin := middleware.RequireRoles(models.RoleAdmin)
	adminOrPastor := middleware.RequireRoles(models.RoleAdmin, models.RolePastor)

	accounts := secured.Group("/accounts", admin)
	accounts.GET("", d.accountH.List)
	accounts.POST("", d.accountH.Create)
	accounts.PUT("/:id", d.accountH.Update)
	accounts.PATCH("/:id/active", d.accountH.ToggleActive)

	territories := secured.Group("/territories")
	territories.GET("", adminOrPastor, d.territoryH.List)
	territories.GET("/distribution", admin, d.territoryH.Distribution)
	territories.POST("", admin, d.territoryH.Create)
	territories.PUT("/:id", admin, d.territoryH.Update)
	territories.PATCH("/:id/active", admin, d.territoryH.ToggleActive)
	territories.DELETE("/:id", admin, d.territoryH.Delete)

	groups := secured.Group("/groups")
	groups.GET("", adminOrPastor, d.groupH.List)
	groups.POST("", admin, d.groupH.Create)
	groups.PUT("/:id/leader", admin, middleware.Audit(d.audits, d.logger, models.AuditActionGroupLeader, "groups"), d.groupH.AssignLeader)

	leader := secured.Group("/leader", middleware.RequireRoles(models.RoleLeader))
	leader.GET("/group", d.leaderH.Group)
	leader.GET("/members", d.leaderH.Members)
	leader.GET("/meetings", d.leaderH.Meeting)
	leader.PUT("/meetings/:id", d.leaderH.UpdateMeeting)
	leader.GET("/meetings/:id/attendance", d.leaderH.Attendance)
	leader.POST("/meetings/:id/attendance", d.leaderH.MarkPresent)
	leader.POST("/meetings/:id/visitors", d.leaderH.AddVisitor)
	leader.PATCH("/attendance/:id/new", d.leaderH.ToggleNew)
	leader.DELETE("/attendance/:id", d.leaderH.DeleteMark)

	bethels := secured.Group("/bethels")
	bethels.GET("", admin, d.bethelH.List)
	bethels.POST("", admin, d.bethelH.Create)
	bethels.PUT("/:id", admin, d.bethelH.Update)
	bethels.PATCH("/:id/active", admin, d.bethelH.ToggleActive)
	bethels.DELETE("/:id", admin, d.bethelH.Delete)
	bethels.GET("/:id/staff", admin, d.bethelH.Staff)
	bethels.POST("/:id/staff", admin, d.bethelH.AssignRole)
	bethels.POST("/:id/guides", admin, d.bethelH.AddGuide)
	bethels.POST("/:id/attendance", middleware.RequireRoles(models.RoleAdmin, models.RoleLeader), d.bethelH.RecordAttendance)
	bethels.PATCH("/staff/:staffId/active", admin, d.bethelH.ToggleStaffActive)
	bethels.PATCH("/staff/:staffId/excuse", admin, d.bethelH.UpdateExcuse)
	bethels.DELETE("/staff/:staffId", admin, d.bethelH.RemoveStaff)

	analytics := secured.Group("/analytics")
	analytics.GET("/attendance", middleware.RequireRoles(models.RoleAdmin, models.RolePastor, models.RoleLeader), d.analyticsH.Attendance)
	analytics.GET("/bethel", middleware.RequireRoles(models.RoleAdmin, models.RolePastor, models.RoleLeader), d.analyticsH.Bethel)
	analytics.GET("/system", admin, d.analyticsH.System)

	secured.GET("/dashboard", admin, d.dashboardH.Admin)

	exports := secured.Group("/exports", adminOrPastor)
	exports.POST("", middleware.Audit(d.audits, d.logger, models.AuditActionExportCreate, "exports"), d.exportH.Create)
	exports.GET("/:id", d.exportH.Status)
}
