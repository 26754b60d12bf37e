package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/campuschat/chatlink/internal/infrastructure/logging"
	"github.com/campuschat/chatlink/internal/stubserver"
)

func main() {
	addr := flag.String("addr", ":8000", "Listen address")
	flag.Parse()

	logger := logging.NewDevelopment()
	defer logger.Sync()

	stub := stubserver.New(stubserver.Options{Logger: logger})
	srv := &http.Server{Addr: *addr, Handler: stub.Handler()}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Stub backend listening", zap.String("addr", *addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("Shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	case err := <-errChan:
		logger.Fatal("Server error", zap.Error(err))
	}
}
