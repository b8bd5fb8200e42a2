// File: /routes/routes.go
package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messenger-api/config"
	"messenger-api/controllers"
	"messenger-api/metrics"
	"messenger-api/middleware"
	"messenger-api/repositories"
	"messenger-api/services"
	"messenger-api/storage"
	"messenger-api/utils"
)

// Deps are the process wide collaborators the HTTP layer needs.
type Deps struct {
	Config   *config.Config
	Store    repositories.Store
	Registry *services.SessionRegistry
	Tokens   *services.TokenService
	Presence *services.PresenceService
	Log      *zap.Logger
	// Media serves attachments from /media when uploads are kept in
	// process. Nil when an object store serves them.
	Media *storage.MemoryStore
}

func SetupRoutes(r *gin.Engine, d Deps) {
	// Controllers
	authController := controllers.NewAuthController(d.Registry, d.Tokens, d.Log)
	sessionController := controllers.NewSessionController(d.Registry)
	userController := controllers.NewUserController()
	friendController := controllers.NewFriendController()
	chatController := controllers.NewChatController()
	adminController := controllers.NewAdminController()

	r.GET("/ping", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		store := "ok"
		status := http.StatusOK
		if err := d.Store.Ping(ctx); err != nil {
			store = "unavailable"
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"message":  "pong",
			"store":    store,
			"sessions": d.Registry.Len(),
		})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	if d.Media != nil {
		r.GET("/media/*key", serveMedia(d.Media))
	}

	// API version 1
	v1 := r.Group("/api/v1")
	v1.Use(middleware.ValidateJSON())

	// Auth routes (public)
	auth := v1.Group("/auth")
	{
		auth.POST("/login", authController.Login)
		auth.POST("/register", authController.Register)
	}

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware(d.Tokens, d.Registry, d.Presence, d.Log))
	{
		protected.POST("/auth/logout", authController.Logout)
		protected.GET("/auth/me", authController.Me)
		protected.GET("/session", sessionController.State)

		users := protected.Group("/users")
		{
			users.PUT("/profile", userController.UpdateProfile)
			users.PUT("/privacy", userController.UpdatePrivacy)
			users.PUT("/presence", userController.UpdatePresence)
			users.GET("/search", userController.Search)
		}

		friends := protected.Group("/friends")
		{
			friends.GET("", friendController.GetFriends)
			friends.DELETE("/:id", friendController.RemoveFriend)
			friends.GET("/requests", friendController.GetFriendRequests)
			friends.POST("/requests/:id", friendController.SendFriendRequest)
			friends.POST("/requests/:id/accept", friendController.AcceptFriendRequest)
			friends.POST("/requests/:id/decline", friendController.DeclineFriendRequest)
		}

		chats := protected.Group("/chats")
		{
			chats.GET("", chatController.GetChats)
			chats.POST("", chatController.CreateChat)
			chats.PUT("/selected", chatController.SelectChat)
			chats.DELETE("/selected", chatController.ClearSelection)
			chats.POST("/selected/messages", chatController.SendMessage)
			chats.POST("/selected/media", chatController.AttachMedia)
			chats.GET("/:id", chatController.GetChat)
		}

		protected.POST("/messages/:id/flag", chatController.FlagMessage)

		admin := protected.Group("/admin")
		admin.Use(middleware.RequireAdmin())
		{
			admin.GET("/features", adminController.GetFeatures)
			admin.PUT("/features/:id", adminController.ToggleFeature)
			admin.GET("/conversations", adminController.GetConversations)
			admin.GET("/flagged", adminController.GetFlaggedContent)
			admin.PUT("/flagged/:id", adminController.ReviewFlaggedMessage)
			admin.GET("/metrics", adminController.GetUsageMetrics)
		}
	}

	if d.Config != nil && d.Config.DevRoutes {
		debug := v1.Group("/debug")
		{
			debug.GET("/sessions", sessionController.Sessions)
		}
	}
}

// serveMedia answers the URLs handed out by an in-process blob store. Object
// keys start with "media/", which is also the route prefix.
func serveMedia(media *storage.MemoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		obj, ok := media.Get("media" + c.Param("key"))
		if !ok {
			utils.SendError(c, http.StatusNotFound, "Attachment not found")
			return
		}
		c.Header("Cache-Control", "private, max-age=3600")
		c.Data(http.StatusOK, obj.ContentType, obj.Data)
	}
}

// SetupCORS allows the given origins, or any origin when none are
// configured, to call the API with bearer tokens.
func SetupCORS(origins ...string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept", "Accept-Encoding", "Authorization", "Cache-Control", "X-Requested-With"},
		ExposeHeaders:    []string{"X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowOriginFunc = func(string) bool { return true }
	}
	return cors.New(cfg)
}
