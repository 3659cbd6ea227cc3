package app

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	qhttp "churnform/http"
	"churnform/logging"
)

// Serve runs the form server until ctx is cancelled.
func Serve(ctx context.Context, configPath string) error {
	// 1. Load config
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Logger, with level reload when the config file changes
	logger, level, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	// 3. Model, schema and feedback store
	services, err := Build(cfg, logger)
	if err != nil {
		logger.Error("startup failed", zap.Error(err))
		_ = ignoreSyncError(logger.Sync())
		return err
	}
	defer func() {
		if err := services.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		}
	}()

	watcher, err := logging.WatchLevel(configPath, level, LogLevelFrom, logger.Named("config"))
	if err != nil {
		logger.Warn("log level reload disabled", zap.Error(err))
	} else {
		services.OnClose(watcher)
	}

	// 4. HTTP server
	server := qhttp.NewServer(qhttp.ServerConfig{
		Port:           cfg.Http.Port,
		Timeout:        cfg.Http.Timeout,
		AllowedOrigins: cfg.Http.AllowedOrigins,
	}, services.Handlers())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// 5. Graceful shutdown
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	return server.Stop()
}
