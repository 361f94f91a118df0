package http

import (
	"time"

	"github.com/gin-gonic/gin"

	appsvc "docindex/internal/app"
	"docindex/internal/bootstrap"
	"docindex/internal/cache"
	"docindex/internal/platform/rabbitmq"
	"docindex/internal/repository"
	"docindex/internal/transport/http/handler"
	"docindex/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	userRepo := repository.NewUserRepository(app.MySQL)
	fragmentRepo := repository.NewFragmentRepository(app.Qdrant)
	events := rabbitmq.NewEventPublisher(app.MQConn, app.Config.RabbitMQ.DocumentEventQueue)
	locks := cache.NewIngestLock(app.Redis, time.Duration(app.Config.Ingest.LockTTLSeconds)*time.Second)

	authService := appsvc.NewAuthService(
		userRepo,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)
	ingestService := appsvc.NewIngestService(
		fragmentRepo,
		app.Embedder,
		app.ObjectStore,
		locks,
		events,
		appsvc.IngestOptions{
			ChunkSize:      app.Config.Ingest.ChunkSize,
			MinContent:     app.Config.Ingest.MinContent,
			BatchSize:      app.Config.Ingest.BatchSize,
			FanOut:         app.Config.Ingest.FanOut,
			StoreOriginals: app.Config.Ingest.StoreOriginals,
		},
	)
	queryService := appsvc.NewQueryService(fragmentRepo, app.Embedder)
	auditRepo := repository.NewDocumentAuditRepository(app.MySQL)
	documentService := appsvc.NewDocumentService(fragmentRepo, app.ObjectStore, events, auditRepo)
	tokenService := appsvc.NewTokenService(app.ObjectStore, appsvc.TokenOptions{
		LocalHosts:        app.Config.ObjectStore.LocalHosts,
		FederatedTokenURL: app.Config.ObjectStore.FederatedTokenURL,
		MinTTL:            time.Duration(app.Config.Token.MinTTLSeconds) * time.Second,
		MaxTTL:            time.Duration(app.Config.Token.MaxTTLSeconds) * time.Second,
	})

	authHandler := handler.NewAuthHandler(authService)
	documentHandler := handler.NewDocumentHandler(ingestService, documentService)
	queryHandler := handler.NewQueryHandler(queryService)
	tokenHandler := handler.NewTokenHandler(tokenService)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", middleware.AuthJWT(app.Config.Auth.JWTSecret), authHandler.Me)

	protected := v1.Group("")
	protected.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	protected.POST("/documents", documentHandler.Upload)
	protected.GET("/documents", documentHandler.List)
	protected.GET("/documents/audit", documentHandler.Audit)
	protected.DELETE("/documents/:id", documentHandler.Delete)
	protected.POST("/query", queryHandler.Query)
	protected.POST("/tokens", tokenHandler.Issue)

	return router
}
