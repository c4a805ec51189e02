package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/config"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/http"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Initialize context
	ctx, err := config.InitContext()
	if err != nil {
		log.Fatalf("Failed to initialize context: %v", err)
	}

	defer func() {
		if err := ctx.Logger.Sync(); err != nil {
			fmt.Printf("Failed to sync logger: %v\n", err)
		}
	}()

	// Ensure the database connection is closed when the application exits
	sqlDB, err := ctx.DB.DB()
	if err != nil {
		ctx.Logger.Fatal("Failed to get underlying SQL DB from GORM DB", zap.Error(err))
	}
	defer func() {
		if err := sqlDB.Close(); err != nil {
			ctx.Logger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	if ctx.GCSClient != nil {
		defer ctx.GCSClient.Close()
	}

	service := http.NewHTTPService(ctx)

	server := &nethttp.Server{
		Addr:              ":" + ctx.Port,
		Handler:           service.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		ctx.Logger.Info("Starting server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			ctx.Logger.Error("Failed to start the server", zap.Error(err))
			return
		}
	case sig := <-stop:
		ctx.Logger.Info("Shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		ctx.Logger.Error("Failed to shut down the server", zap.Error(err))
	}
}
