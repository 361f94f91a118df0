package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"docindex/internal/ai"
	"docindex/internal/config"
	"docindex/internal/model"
	minioClient "docindex/internal/platform/minio"
	mysqlClient "docindex/internal/platform/mysql"
	"docindex/internal/platform/qdrant"
	rabbitmqClient "docindex/internal/platform/rabbitmq"
	redisClient "docindex/internal/platform/redis"
	"docindex/internal/repository"
	"docindex/internal/worker"
)

type App struct {
	Config      *config.Config
	MySQL       *gorm.DB
	Redis       *redis.Client
	MQConn      *amqp.Connection
	Qdrant      *qdrant.Client
	ObjectStore *minioClient.Store
	Embedder    *ai.EmbeddingClient
	AuditWorker *worker.DocumentAuditWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(&model.User{}, &model.DocumentAudit{}); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	qdrantCli := qdrant.New(qdrant.Config{
		URL:        cfg.Qdrant.URL,
		APIKey:     cfg.Qdrant.APIKey,
		Collection: cfg.Qdrant.Collection,
		Timeout:    time.Duration(cfg.Qdrant.TimeoutSeconds) * time.Second,
	})
	// A dimension mismatch between the embedding model and the index
	// must fail here, not degrade silently at query time.
	if err := qdrantCli.EnsureCollection(ctx, cfg.Embedding.Dimension); err != nil {
		return nil, fmt.Errorf("ensure vector collection failed: %w", err)
	}

	objectStore, err := minioClient.New(ctx, minioClient.Config{
		Endpoint:  cfg.ObjectStore.Endpoint,
		AccessKey: cfg.ObjectStore.AccessKey,
		SecretKey: cfg.ObjectStore.SecretKey,
		UseSSL:    cfg.ObjectStore.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	embedder := ai.NewEmbeddingClient(ai.EmbeddingOptions{
		BaseURL:   cfg.Embedding.BaseURL,
		APIKey:    cfg.Embedding.APIKey,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
		Timeout:   time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
	})

	auditRepo := repository.NewDocumentAuditRepository(mysqlDB)
	auditWorker := worker.NewDocumentAuditWorker(mqConn, auditRepo, cfg.RabbitMQ.DocumentEventQueue)
	if err := auditWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start audit worker failed: %w", err)
	}

	return &App{
		Config:      cfg,
		MySQL:       mysqlDB,
		Redis:       redisCli,
		MQConn:      mqConn,
		Qdrant:      qdrantCli,
		ObjectStore: objectStore,
		Embedder:    embedder,
		AuditWorker: auditWorker,
		StartedAt:   time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.AuditWorker != nil {
		a.AuditWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
