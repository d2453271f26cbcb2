package main

import (
	"time"

	"session-relay-backend/internal/broadcast"
	"session-relay-backend/internal/config"
	"session-relay-backend/internal/database"
	"session-relay-backend/internal/dispatch"
	"session-relay-backend/internal/handlers"
	"session-relay-backend/internal/middleware"
	"session-relay-backend/internal/retention"
	"session-relay-backend/internal/services"
	"session-relay-backend/internal/store"
	"session-relay-backend/internal/ws"

	_ "session-relay-backend/docs"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Session Relay API
// @version         1.0
// @description     API for live facilitated group sessions with anonymous response relay
// @host            localhost:8080
// @BasePath        /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Enter "Bearer {token}"

func main() {
	cfg := config.Load()

	db := database.Connect(cfg)
	database.AutoMigrate(db)

	sessionStore := store.NewGorm(db)
	hub := ws.NewHub()

	router := broadcast.NewRouter(sessionStore, hub)
	router.SetCountInterval(time.Duration(cfg.CountBroadcastSeconds) * time.Second)

	dispatcher := dispatch.New(sessionStore, hub, router, dispatch.Options{
		SpotlightMax:     cfg.SpotlightMax,
		SessionRetention: time.Duration(cfg.SessionRetentionHours) * time.Hour,
		SummaryRetention: time.Duration(cfg.SummaryRetentionHours) * time.Hour,
	})

	authService := services.NewAuthService(db, cfg.JWTSecret)
	packService := services.NewPromptPackService(db)
	mediaService := services.NewMediaService(db)
	sessionQuery := services.NewSessionQueryService(db)

	authHandler := handlers.NewAuthHandler(authService)
	sessionHandler := handlers.NewSessionHandler(sessionQuery)
	packHandler := handlers.NewPromptPackHandler(packService)
	mediaHandler := handlers.NewMediaHandler(mediaService)
	wsHandler := handlers.NewWSHandler(dispatcher, authService)

	sweeper := retention.NewSweeper(sessionStore, time.Duration(cfg.PurgeIntervalMinutes)*time.Minute)
	sweeper.Start()
	defer sweeper.Stop()

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/ws", wsHandler.HandleWebSocket)

	api := r.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		sessions := api.Group("/sessions")
		sessions.Use(middleware.JWTAuth(authService))
		{
			sessions.GET("", sessionHandler.ListSessions)
			sessions.GET("/:id", sessionHandler.GetSession)
			sessions.GET("/:id/summary", sessionHandler.GetSummary)
		}

		packs := api.Group("/prompt-packs")
		packs.Use(middleware.JWTAuth(authService))
		{
			packs.POST("", packHandler.CreatePack)
			packs.GET("", packHandler.ListPacks)
			packs.GET("/:id", packHandler.GetPack)
			packs.DELETE("/:id", packHandler.DeletePack)
		}

		api.GET("/modules", middleware.JWTAuth(authService), packHandler.ListModules)

		media := api.Group("/media")
		media.Use(middleware.JWTAuth(authService))
		{
			media.POST("", mediaHandler.CreateMedia)
			media.GET("", mediaHandler.ListMedia)
			media.GET("/:id", mediaHandler.GetMedia)
		}
	}

	logrus.Infof("server starting on :%s", cfg.ServerPort)
	if err := r.Run(":" + cfg.ServerPort); err != nil {
		logrus.Fatalf("failed to start server: %v", err)
	}
}
