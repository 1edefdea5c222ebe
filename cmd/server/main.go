package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/robfig/cron/v3"

	"github.com/jharjadi/docingest/internal/config"
	"github.com/jharjadi/docingest/internal/db"
	"github.com/jharjadi/docingest/internal/gxclient"
	"github.com/jharjadi/docingest/internal/handler"
	"github.com/jharjadi/docingest/internal/lifecycle"
	adminmw "github.com/jharjadi/docingest/internal/middleware"
	"github.com/jharjadi/docingest/internal/pdf"
	"github.com/jharjadi/docingest/internal/pipeline"
	"github.com/jharjadi/docingest/internal/queue"
	"github.com/jharjadi/docingest/internal/scheduler"
	"github.com/jharjadi/docingest/internal/service"
	"github.com/jharjadi/docingest/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.StartupChecks(ctx, pool); err != nil {
		slog.Error("startup checks failed", "error", err)
		os.Exit(1)
	}

	if err := db.RunCrashGuard(ctx, pool, cfg.CrashGuardQueuedTTLHours, cfg.CrashGuardRunningStaleMin); err != nil {
		slog.Error("crash guard failed", "error", err)
		os.Exit(1)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
	if err != nil {
		slog.Error("failed to load aws config", "error", err)
		os.Exit(1)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})
	sqsClient := sqs.NewFromConfig(awsCfg)

	store := storage.New(s3Client, cfg.S3Bucket)
	zipQueue := queue.New(sqsClient, cfg.ZipQueueURL)
	fileQueue := queue.New(sqsClient, cfg.FileQueueURL)

	optimizer, err := pdf.NewOptimizer(cfg)
	if err != nil {
		slog.Error("failed to build pdf optimizer", "error", err)
		os.Exit(1)
	}

	registry := handler.NewRegistry(
		handler.NewZipHandler(),
		handler.NewOfficeHandler(cfg.ConvertibleExtensions, cfg.ZipHandlerTempDir, cfg.LibreOfficeTimeout()),
		handler.NewMsgHandler(cfg.ZipHandlerTempDir, cfg.LibreOfficeTimeout()),
		handler.NewPDFHandler(cfg.MaxPages, cfg.MaxFileSizeBytes, optimizer, cfg.ZipHandlerTempDir, cfg.OptimizationTimeout()),
	)

	lc := lifecycle.New(pool)
	gxClient := gxclient.New(cfg.GxBaseURL, cfg.GxAPIKeyName, cfg.GxAPIKeyValue)

	zipWorker := pipeline.NewZipWorker(pool, store, fileQueue, registry, lc, cfg.ZipHandlerTempDir)
	fileWorker := pipeline.NewFileWorker(pool, store, fileQueue, registry, lc, cfg)

	consumerCfg := queue.ConsumerConfig{
		MaxConcurrentMessages: cfg.MaxConcurrentMessages,
		MaxMessagesPerPoll:    int32(cfg.MaxMessagesPerPoll),
		PollWaitSeconds:       int32(cfg.PollTimeoutSeconds),
	}

	zipConsumer := queue.NewConsumer(zipQueue, consumerCfg, decodeHandler("zipMasterId", zipWorker.ProcessZipMaster))
	fileConsumer := queue.NewConsumer(fileQueue, consumerCfg, decodeHandler("fileMasterId", fileWorker.ProcessFileMaster))

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	go zipConsumer.Run(workerCtx)
	go fileConsumer.Run(workerCtx)

	uploadScheduler := scheduler.NewUploadScheduler(pool, store, gxClient, lc, cfg.GxMaxProcess, cfg.PresignedURLTTL())
	reconciler := scheduler.NewLifecycleReconciler(pool, gxClient, lc, cfg.GxMaxProcess)

	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(cfg.GxUploadSchedulerCron, func() {
		if err := uploadScheduler.RunOnce(context.Background()); err != nil {
			slog.Error("upload scheduler tick failed", "error", err)
		}
	}); err != nil {
		slog.Error("failed to register upload scheduler", "error", err)
		os.Exit(1)
	}
	if _, err := c.AddFunc(cfg.LifecycleSchedulerCron, func() {
		if err := reconciler.RunOnce(context.Background()); err != nil {
			slog.Error("lifecycle reconciler tick failed", "error", err)
		}
	}); err != nil {
		slog.Error("failed to register lifecycle reconciler", "error", err)
		os.Exit(1)
	}
	c.Start()

	jobHandler := handler.NewJobHandler(cfg, pool, store, zipQueue, fileQueue)
	adminHandler := handler.NewAdminHandler(pool, zipQueue, fileQueue)
	viewHandler := handler.NewViewHandler(pool)
	adminAuth := adminmw.AdminAuth(service.NewAdminAuthService(cfg.AdminJWTSecret, cfg.AdminJWTExpiryHours))

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/v1/jobs", func(r chi.Router) {
		r.Post("/", jobHandler.CreateForDirectUpload)
		r.Post("/multipart", jobHandler.InitiateMultipart)
		r.Get("/{jobId}/multipart/{uploadId}/parts/{partNumber}", jobHandler.PresignPart)
		r.Post("/{jobId}/multipart/{uploadId}/complete", jobHandler.CompleteMultipart)
		r.Post("/{jobId}/trigger", jobHandler.TriggerProcessing)
	})

	r.Route("/v1/admin", func(r chi.Router) {
		r.Use(adminAuth)
		r.Post("/terminate", adminHandler.Terminate)
		r.Get("/view", viewHandler.List)
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("starting server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-shutdownCtx.Done()
	slog.Info("shutting down server...")

	cancelCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(cancelCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}

	c.Stop()
	stopWorkers()

	slog.Info("server stopped")
}

// decodeHandler adapts a pipeline worker taking an id into the
// queue.Handler signature queue.Consumer expects, by decoding the
// {idField: int64} body that both queues in this service carry.
func decodeHandler(idField string, process func(ctx context.Context, id int64) error) queue.Handler {
	return func(ctx context.Context, body string) error {
		id, err := parseMessageID(body, idField)
		if err != nil {
			slog.Error("failed to decode queue message, dropping", "error", err, "body", body)
			return nil
		}
		return process(ctx, id)
	}
}

// parseMessageID pulls a single int64 field out of a queue message body
// shaped like {"<idField>": 123}, the only JSON shape the zip and file
// queues ever carry (spec §4.3, §4.4).
func parseMessageID(body, idField string) (int64, error) {
	var payload map[string]int64
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return 0, fmt.Errorf("unmarshal message body: %w", err)
	}
	id, ok := payload[idField]
	if !ok {
		return 0, fmt.Errorf("message body missing field %q", idField)
	}
	return id, nil
}
