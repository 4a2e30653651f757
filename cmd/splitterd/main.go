package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/sgte/pdf-splitter/internal/async"
	"github.com/sgte/pdf-splitter/internal/common"
	"github.com/sgte/pdf-splitter/internal/core"
	"github.com/sgte/pdf-splitter/internal/ingest"
	svc "github.com/sgte/pdf-splitter/internal/server"
)

func main() {
	cfg := common.LoadConfig()
	logger := common.NewTextLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := svc.ConnectDB(ctx, cfg.Database.DSN, logger)
	if err != nil {
		os.Exit(1)
	}
	defer db.Close(logger)

	if err := svc.PingDB(ctx, db, logger, 5*time.Second); err != nil {
		os.Exit(1)
	}

	proc, ingestor, err := core.Build(cfg, db, logger)
	if err != nil {
		logger.Error("failed to build processor", "error", err)
		os.Exit(1)
	}
	if err := proc.Probe(ctx); err != nil {
		// keep serving so Probe and health report the problem
		logger.Error("ocr engine unavailable", "error", err)
	}

	queue := async.NewProcessorQueue(proc, logger,
		async.WithWorkers(1),
		async.WithQueueSize(128),
		async.WithProcessTimeout(30*time.Minute),
	)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	splitter := svc.NewSplitterService(proc, logger,
		svc.WithQueue(queue),
		svc.WithIngestor(ingestor),
		svc.WithDatabase(db),
		svc.WithHealth(healthServer),
	)
	svc.Register(grpcServer, splitter)

	if cfg.Paths.InboxDir != "" {
		if err := watchInbox(ctx, cfg.Paths.InboxDir, queue, logger); err != nil {
			logger.Error("failed to watch inbox", "dir", cfg.Paths.InboxDir, "error", err)
			os.Exit(1)
		}
	}

	logger.Info("splitterd listening", "addr", cfg.Server.GRPCAddr, "inbox", cfg.Paths.InboxDir)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			slog.Error("gRPC serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	queue.Shutdown(shutdownCtx)
}

// watchInbox queues every PDF that lands in dir, including those already there.
func watchInbox(ctx context.Context, dir string, queue async.Queue, logger *slog.Logger) error {
	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{dir},
		InitialScan: true,
		SkipHidden:  true,
		Debounce:    2 * time.Second,
	}, logger)
	if err != nil {
		return err
	}
	go func() {
		for {
			select {
			case path, ok := <-events:
				if !ok {
					return
				}
				if err := queue.Enqueue(ctx, async.Job{Path: path}); err != nil {
					logger.Warn("inbox enqueue failed", "path", path, "error", err)
				}
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				logger.Warn("inbox watcher error", "error", err)
			}
		}
	}()
	return nil
}
