package main

import (
	"context"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"sealdesk/signing-portal/signing-portal-backend/internal/config"
	"sealdesk/signing-portal/signing-portal-backend/internal/documents"
	"sealdesk/signing-portal/signing-portal-backend/internal/integrity"
	"sealdesk/signing-portal/signing-portal-backend/internal/notifications"
	"sealdesk/signing-portal/signing-portal-backend/internal/notifications/websocket"
	"sealdesk/signing-portal/signing-portal-backend/pkg/logger"
	"sealdesk/signing-portal/signing-portal-backend/pkg/metrics"
	"sealdesk/signing-portal/signing-portal-backend/pkg/pdf"
	"sealdesk/signing-portal/signing-portal-backend/pkg/storage"
)

func main() {
	godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		stdlog.Fatalf("load config: %v", err)
	}

	log, err := logger.New(cfg.Logging.Environment, cfg.Logging.Level)
	if err != nil {
		stdlog.Fatalf("init logger: %v", err)
	}
	defer log.Sync()

	metrics.Init()

	ctx := context.Background()

	// Audit record store
	var (
		auditRepo    documents.AuditRepository
		findingsRepo integrity.FindingRepository
	)
	switch cfg.Audit.Backend {
	case "postgres":
		db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{
			TranslateError: true,
			Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			log.Fatal("Failed to connect to database", zap.Error(err))
		}
		sqlDB, err := db.DB()
		if err != nil {
			log.Fatal("Failed to access connection pool", zap.Error(err))
		}
		sqlDB.SetMaxOpenConns(cfg.Database.MaxConnections)
		sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.Database.MaxLifetime)

		if err := db.AutoMigrate(&documents.AuditRecord{}, &integrity.Finding{}); err != nil {
			log.Fatal("Failed to run migrations", zap.Error(err))
		}

		auditRepo = documents.NewRepository(db)
		findingsRepo = integrity.NewRepository(db)

	case "dynamodb":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Audit.DynamoRegion))
		if err != nil {
			log.Fatal("Failed to load AWS config", zap.Error(err))
		}
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.Audit.DynamoEndpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Audit.DynamoEndpoint)
			}
		})
		auditRepo = documents.NewDynamoRepository(client, cfg.Audit.DynamoTable)
		// Findings stay in memory here; the sweep re-detects divergences
		// on every run.
		findingsRepo = integrity.NewMemoryRepository()

	default:
		auditRepo = documents.NewMemoryRepository()
		findingsRepo = integrity.NewMemoryRepository()
	}

	// Document blob store
	var blobs storage.BlobStore
	switch cfg.Storage.Backend {
	case "s3":
		s3Store, err := storage.NewS3Store(ctx, storage.S3Options{
			Region:          cfg.Storage.S3Region,
			Bucket:          cfg.Storage.S3Bucket,
			Endpoint:        cfg.Storage.S3Endpoint,
			AccessKeyID:     cfg.Storage.AccessKeyID,
			SecretAccessKey: cfg.Storage.SecretAccessKey,
		})
		if err != nil {
			log.Fatal("Failed to initialise S3 storage", zap.Error(err))
		}
		blobs = s3Store
	default:
		localStore, err := storage.NewLocalStore(cfg.Storage.LocalRoot)
		if err != nil {
			log.Fatal("Failed to initialise local storage", zap.Error(err))
		}
		blobs = localStore
	}

	// Notifications
	wsManager := websocket.NewManager(log)
	notify := notifications.NewService(wsManager, log)

	// Signing pipeline
	docStorage := documents.NewStorageProvider(blobs)
	stamps := documents.NewStampService(pdf.NewStamper())
	docService := documents.NewService(auditRepo, docStorage, stamps, notify, log, cfg.Signing.MaxUploadBytes)
	docHandler := documents.NewHandler(docService, log)

	// Integrity sweep
	sweeper := integrity.NewSweeper(auditRepo, blobs, findingsRepo, notify, log)
	integrityHandler := integrity.NewHandler(sweeper, findingsRepo, log)
	if cfg.Sweep.Enabled {
		if err := sweeper.Start(cfg.Sweep.Schedule); err != nil {
			log.Fatal("Failed to start integrity sweep", zap.Error(err))
		}
	}

	// Router
	if cfg.Logging.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log))
	router.Use(metrics.Middleware())
	router.Use(corsMiddleware())

	api := router.Group("/api/v1")
	{
		docHandler.RegisterRoutes(api)
		integrityHandler.RegisterRoutes(api)
	}

	router.GET("/ws", func(c *gin.Context) {
		if err := wsManager.Serve(c.Writer, c.Request); err != nil {
			log.Warn("Websocket upgrade failed", zap.Error(err))
		}
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "healthy",
			"timestamp":   time.Now(),
			"subscribers": wsManager.ClientCount(),
		})
	})

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	log.Info("Signing portal API started",
		zap.String("addr", srv.Addr),
		zap.String("audit_backend", cfg.Audit.Backend),
		zap.String("storage_backend", cfg.Storage.Backend))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	if cfg.Sweep.Enabled {
		sweeper.Stop()
	}
	wsManager.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exiting")
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("Request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)))
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
