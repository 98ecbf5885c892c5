package main

import (
	"context"
	"time"

	"github.com/gigconnect/gigconnect-api/config"
	"github.com/gigconnect/gigconnect-api/controllers"
	"github.com/gigconnect/gigconnect-api/middleware"
	"github.com/gigconnect/gigconnect-api/models"
	"github.com/gigconnect/gigconnect-api/realtime"
	"github.com/gigconnect/gigconnect-api/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// setupRouter builds the API router. Services must be initialized first.
func setupRouter(cfg *config.Config, log *logrus.Logger, hub *realtime.Hub) (*gin.Engine, error) {
	auth, err := middleware.EnsureValidToken(cfg, log)
	if err != nil {
		return nil, err
	}
	wsAuth, err := middleware.EnsureValidWebSocketToken(cfg, log)
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(log), cors.New(corsConfig(cfg.CORSAllowedOrigins)))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", controllers.HealthCheck)
		v1.GET("/database/status", controllers.DatabaseStatus)
		v1.GET("/uploads/:filename", controllers.GetUploadedImage)

		v1.GET("/ws", wsAuth, realtime.Handler(hub, currentUser, resolveUser, cfg.CORSAllowedOrigins, log))

		api := v1.Group("", auth)
		if cfg.RequiredScope != "" {
			api.Use(middleware.RequireScope(cfg.RequiredScope))
		}

		api.POST("/users", controllers.CreateUser)
		api.GET("/users/me", controllers.GetMyProfile)
		api.PUT("/users/me", controllers.UpdateMyProfile)

		api.POST("/jobs", controllers.CreateJob)
		api.GET("/jobs", controllers.ListJobs)
		api.GET("/jobs/mine", controllers.ListMyJobs)
		api.GET("/jobs/:id", controllers.GetJob)
		api.POST("/jobs/:id/accept", controllers.AcceptJob)
		api.POST("/jobs/:id/submit-proof", controllers.SubmitProof)
		api.POST("/jobs/:id/approve", controllers.ApproveJob)
		api.POST("/jobs/:id/ratings", controllers.RateJob)
		api.GET("/jobs/:id/rating", controllers.GetJobRating)

		api.POST("/uploads/proof-images", controllers.UploadProofImage)

		api.GET("/wallet", controllers.GetWallet)
		api.GET("/leaderboard", controllers.GetLeaderboard)
		api.GET("/workers", controllers.SearchWorkers)
		api.GET("/workers/:id/ratings", controllers.GetWorkerRatings)
	}

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader, "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}

func currentUser(c *gin.Context) (string, bool) {
	auth0ID, err := middleware.GetUserID(c)
	return auth0ID, err == nil
}

func resolveUser(ctx context.Context, auth0ID string) (*models.User, error) {
	return services.GetUserService().Profile(ctx, auth0ID)
}
