package router

import (
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"

	"github.com/ignatzorin/gigmarket-backend/internal/config"
	"github.com/ignatzorin/gigmarket-backend/internal/http/handlers"
	"github.com/ignatzorin/gigmarket-backend/internal/http/middleware"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/service"
)

// Handlers - набор хэндлеров, которые подключает роутер.
type Handlers struct {
	Auth          *handlers.AuthHandler
	Orders        *handlers.OrderHandler
	Applications  *handlers.ApplicationHandler
	Gigs          *handlers.GigHandler
	Posts         *handlers.PostHandler
	Admin         *handlers.AdminHandler
	Notifications *handlers.NotificationHandler
	WS            *handlers.WSHandler
	Health        *handlers.HealthHandler
}

// SetupRouter собирает gin.Engine со всеми маршрутами API.
func SetupRouter(cfg *config.Config, h Handlers, tokenManager *service.TokenManager, limitStore limiter.Store) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", h.Health.Health)

	api := r.Group("/api")
	api.GET("/ws", h.WS.Handle)

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(limitStore, cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
	}

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(tokenManager))

	protected.POST("/auth/logout", h.Auth.Logout)
	protected.GET("/auth/me", h.Auth.Me)

	id := middleware.UUIDValidator("id")
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	orders := protected.Group("/orders")
	{
		orders.POST("/stripe", h.Orders.Checkout)
		orders.POST("/verify", h.Orders.Verify)
		orders.GET("/all", h.Orders.ListOrders)
		orders.GET("/:id", id, h.Orders.GetOrder)
		orders.PATCH("/:id/status", id, h.Orders.UpdateStatus)
		orders.PATCH("/:id/client-status", id, h.Orders.UpdateClientStatus)
		orders.PATCH("/:id/freelancer-status", id, h.Orders.UpdateFreelancerStatus)
		orders.PUT("/:id/send-money-to-freelancer", id, adminOnly, h.Orders.SendMoneyToFreelancer)
	}

	applications := protected.Group("/job-applications")
	{
		applications.POST("", h.Applications.Submit)
		applications.GET("/my", h.Applications.ListMine)
		applications.GET("/:id", id, h.Applications.Get)
		applications.DELETE("/:id", id, h.Applications.Withdraw)
		applications.PATCH("/:id/status", id, h.Applications.ChangeStatus)
		applications.GET("/:id/actions", id, h.Applications.QuickActions)
		applications.GET("/:id/history", id, h.Applications.History)
		applications.GET("/:id/attachments/:index", id, h.Applications.DownloadAttachment)
	}

	gigs := protected.Group("/gigs")
	{
		gigs.POST("", h.Gigs.Create)
		gigs.GET("", h.Gigs.List)
		gigs.GET("/:id", id, h.Gigs.Get)
		gigs.PUT("/:id/packages", id, h.Gigs.UpdatePackages)

		gigAdmin := gigs.Group("/admin", adminOnly)
		gigAdmin.PUT("/:id/approve", id, h.Admin.ApproveGig)
		gigAdmin.PUT("/:id/reject", id, h.Admin.RejectGig)
		gigAdmin.DELETE("/:id", id, h.Admin.DeleteGig)
	}

	posts := protected.Group("/posts")
	{
		posts.POST("", h.Posts.Create)
		posts.GET("", h.Posts.List)
		posts.GET("/my", h.Posts.ListMine)
		posts.GET("/:id", id, h.Posts.Get)
		posts.GET("/:id/applications", id, h.Applications.ListForPost)

		postAdmin := posts.Group("/admin", adminOnly)
		postAdmin.PUT("/:id/approve", id, h.Admin.ApprovePost)
		postAdmin.PUT("/:id/reject", id, h.Admin.RejectPost)
		postAdmin.DELETE("/:id", id, h.Admin.DeletePost)
	}

	admin := protected.Group("/admin", adminOnly)
	{
		admin.GET("/orders", h.Orders.AdminOrders)
		admin.GET("/users", h.Admin.ListUsers)
		admin.PUT("/users/:id/block", id, h.Admin.BlockUser)
		admin.PUT("/users/:id/unblock", id, h.Admin.UnblockUser)
		admin.DELETE("/users/:id", id, h.Admin.DeleteUser)
		admin.GET("/analytics", h.Admin.Analytics)
	}

	notifications := protected.Group("/notifications")
	{
		notifications.GET("", h.Notifications.ListNotifications)
		notifications.GET("/unread-count", h.Notifications.CountUnread)
		notifications.PUT("/read-all", h.Notifications.MarkAllAsRead)
		notifications.PUT("/:id/read", id, h.Notifications.MarkAsRead)
	}

	return r
}
