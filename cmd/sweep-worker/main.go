package main

import (
	"context"
	"errors"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"sealdesk/signing-portal/signing-portal-backend/internal/config"
	"sealdesk/signing-portal/signing-portal-backend/internal/documents"
	"sealdesk/signing-portal/signing-portal-backend/internal/integrity"
	"sealdesk/signing-portal/signing-portal-backend/pkg/logger"
	"sealdesk/signing-portal/signing-portal-backend/pkg/metrics"
	"sealdesk/signing-portal/signing-portal-backend/pkg/storage"
)

// SweepWorker runs integrity sweeps on a fixed interval. It exists for
// deployments that keep the sweep out of the API process.
type SweepWorker struct {
	sweeper  *integrity.Sweeper
	logger   *zap.Logger
	interval time.Duration
	done     chan struct{}
}

// NewSweepWorker creates a new sweep worker
func NewSweepWorker(sweeper *integrity.Sweeper, logger *zap.Logger, interval time.Duration) *SweepWorker {
	return &SweepWorker{
		sweeper:  sweeper,
		logger:   logger,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start runs sweeps until the context is cancelled or Stop is called.
// The first sweep runs immediately.
func (w *SweepWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting sweep worker", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runSweep(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Sweep worker shutting down")
			return nil
		case <-w.done:
			w.logger.Info("Sweep worker stopped")
			return nil
		case <-ticker.C:
			w.runSweep(ctx)
		}
	}
}

// Stop stops the sweep worker
func (w *SweepWorker) Stop() {
	close(w.done)
}

func (w *SweepWorker) runSweep(ctx context.Context) {
	summary, err := w.sweeper.RunOnce(ctx)
	if err != nil {
		if errors.Is(err, integrity.ErrSweepInProgress) {
			w.logger.Warn("Previous sweep still running, skipping")
			return
		}
		w.logger.Error("Sweep failed", zap.Error(err))
		return
	}

	w.logger.Info("Sweep finished",
		zap.Int("records", summary.RecordsChecked),
		zap.Int("variants", summary.VariantsChecked),
		zap.Int("findings", summary.Findings))
}

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
		findingsRepo = integrity.NewMemoryRepository()

	default:
		// The worker verifies records written by the API process, so it
		// needs a store both can reach.
		log.Fatal("Sweep worker requires a shared audit backend",
			zap.String("backend", cfg.Audit.Backend))
	}

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

	sweeper := integrity.NewSweeper(auditRepo, blobs, findingsRepo, nil, log)
	worker := NewSweepWorker(sweeper, log, cfg.Sweep.Interval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("Shutdown signal received")
		cancel()
	}()

	if err := worker.Start(ctx); err != nil {
		log.Error("Worker error", zap.Error(err))
	}

	log.Info("Sweep worker stopped")
}
