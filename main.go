package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/fmd-gateway/internal/auth"
	"github.com/example/fmd-gateway/internal/classifier"
	"github.com/example/fmd-gateway/internal/config"
	"github.com/example/fmd-gateway/internal/handlers"
	"github.com/example/fmd-gateway/internal/logging"
	"github.com/example/fmd-gateway/internal/storage"
	"github.com/example/fmd-gateway/internal/usecase"
)

func main() {
	configPath := flag.String("config", "gateway.toml", "path to the gateway configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger, err := logging.NewLogger(cfg.Logging.Level)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	store, err := storage.NewStore(cfg.Uploads.Dir, logger)
	if err != nil {
		logger.Fatal("failed to prepare upload directory", zap.Error(err))
	}

	runner := classifier.NewCLI(
		cfg.Classifier.Command,
		classifier.WithArgs(cfg.Classifier.Args...),
		classifier.WithTimeout(cfg.ClassifierTimeout()),
		classifier.WithOutputLimit(cfg.Classifier.MaxOutputBytes),
		classifier.WithLogger(logger),
	)

	uc := usecase.NewPredictionUseCase(store, runner, logger,
		usecase.WithKeepUploads(cfg.Uploads.KeepFiles))

	r := gin.Default()
	r.MaxMultipartMemory = cfg.MaxUploadBytes()

	var authMiddleware gin.HandlerFunc
	if cfg.Auth.JWTSecret != "" {
		authMiddleware = auth.JWTMiddleware(cfg.Auth.JWTSecret, cfg.Auth.JWTAudience)
	}

	handlers.RegisterRoutes(r, uc, cfg.MaxUploadBytes(), authMiddleware)
	if err := handlers.RegisterUI(r); err != nil {
		logger.Fatal("failed to load embedded client", zap.Error(err))
	}

	server := &http.Server{
		Addr:    cfg.Server.Bind,
		Handler: r,
	}

	logger.Info("prediction gateway listening",
		zap.String("addr", cfg.Server.Bind),
		zap.String("uploads_dir", store.Dir()),
		zap.String("classifier", cfg.Classifier.Command))
	if err := serveHTTPServer(server, cfg.ShutdownTimeout(), logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
