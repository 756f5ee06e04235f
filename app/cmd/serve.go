package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"scaffoldgen/app/config"
	"scaffoldgen/app/usecase"
	"scaffoldgen/internal/domain/repository"
	"scaffoldgen/internal/infrastructure/events"
	"scaffoldgen/internal/infrastructure/metrics"
	"scaffoldgen/internal/infrastructure/store/filesystem"
	mongorepo "scaffoldgen/internal/infrastructure/store/mongodb"
	"scaffoldgen/internal/infrastructure/transport"
)

func serveCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, generation worker and metrics endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), loadConfig(opts))
		},
	}
}

func runServe(parent context.Context, cfg *config.Config) error {
	logger := newLogger(os.Stdout, cfg.LogLevel, true)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to MongoDB
	mongoCtx, mongoCancel := context.WithTimeout(ctx, 30*time.Second)
	defer mongoCancel()
	mongoClient, err := mongo.Connect(mongoCtx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return fmt.Errorf("mongo connect: %w", err)
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("disconnecting mongo")
		if err := mongoClient.Disconnect(dctx); err != nil {
			logger.Error("mongo disconnect error", "err", err)
		}
	}()
	if err := mongoClient.Ping(mongoCtx, nil); err != nil {
		return fmt.Errorf("mongo ping: %w", err)
	}
	logger.Info("connected to mongo", "database", cfg.Mongo.Database)
	db := mongoClient.Database(cfg.Mongo.Database)

	// Repositories
	runRepo := mongorepo.NewMongoRunRepo(db)
	artifactRepo := mongorepo.NewMongoArtifactRepo(db)
	exporter, err := filesystem.NewFileRepository(cfg.FileRepo.OutputDir)
	if err != nil {
		return fmt.Errorf("init file repo: %w", err)
	}

	// Model transport and pipeline template
	call, err := newCallFunc(ctx, cfg, logger)
	if err != nil {
		return err
	}
	orchCfg, err := orchestratorConfig(cfg)
	if err != nil {
		return err
	}

	// Progress sinks
	hub := transport.NewProgressHub(logger)
	sinks := []repository.ProgressSink{hub}
	if cfg.NATS.URL != "" {
		pub, err := events.Connect(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		sinks = append(sinks, pub)
		logger.Info("publishing progress to NATS", "url", cfg.NATS.URL, "prefix", cfg.NATS.SubjectPrefix)
	}

	// Usecases / services
	worker := usecase.NewGenerationWorker(runRepo, artifactRepo, exporter, call, usecase.WorkerConfig{
		PollInterval: cfg.Worker.PollInterval,
		RunTimeout:   cfg.Worker.RunTimeout,
		Orchestrator: orchCfg,
		Sinks:        sinks,
	}, logger)
	runSvc := usecase.NewRunService(runRepo, artifactRepo, usecase.NewNpmBuilder(exporter.GetBasePath()), logger)
	artifactSvc := usecase.NewArtifactService(artifactRepo)

	// Transport (HTTP handlers)
	handler := transport.NewRunHandler(runSvc, artifactSvc, hub, logger)
	r := mux.NewRouter()
	handler.RegisterRoutes(r)
	corsHandler := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      corsHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		worker.Start(gctx)
		<-gctx.Done()
		worker.Stop()
		return nil
	})

	g.Go(func() error {
		logger.Info("starting metrics server", "addr", cfg.Server.MetricsAddr)
		return metrics.Serve(gctx, metrics.NewServer(cfg.Server.MetricsAddr))
	})

	g.Go(func() error {
		logger.Info("starting HTTP server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	runSvc.Wait()
	logger.Info("service stopped")
	return err
}
