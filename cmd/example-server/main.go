package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

func main() {
	// Exemplo: serviço hospedeiro com um limiter por grupo de rotas (sem proxy).
	logger := zap.Must(zap.NewDevelopment())
	defer func() { _ = logger.Sync() }()

	s, err := newServer(logger, defaultLimits)
	if err != nil {
		logger.Fatal("limiter config error", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	s.startJanitors(ctx)

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("example server listening", zap.String("addr", addr))
	for _, l := range defaultLimits {
		logger.Info("limiter",
			zap.String("service", l.name),
			zap.Int("maxRequests", l.maxRequests),
			zap.Duration("window", l.window))
	}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}
