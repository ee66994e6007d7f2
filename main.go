// Package main provides the entry point for the lane mixing server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/fx"

	"github.com/Raikerian/go-lane-mixer/internal/app"
	"github.com/Raikerian/go-lane-mixer/internal/config"
	"github.com/Raikerian/go-lane-mixer/internal/infrastructure"
	"github.com/Raikerian/go-lane-mixer/internal/mixing"
	"github.com/Raikerian/go-lane-mixer/internal/server"
)

func main() {
	// LANEMIXER_* environment variables override values from this file.
	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	application := app.New(
		// Core modules
		config.Module,
		infrastructure.LoggerModule,

		// Application modules
		mixing.Module,
		server.Module,

		fx.Supply(configPath),

		// Configure Fx to use our Zap logger for its own internal logging
		fx.WithLogger(infrastructure.NewFxLoggerAdapter),
	)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 15*time.Second)
	err := application.Start(startCtx)
	cancelStart()
	if err != nil {
		fmt.Printf("Failed to start: %v\n", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	fmt.Printf("Received signal: %s, initiating shutdown.\n", sig)

	// Producers get this long to be disconnected and the recording to be finalised.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	err = application.Stop(shutdownCtx)
	cancel()

	if err != nil {
		fmt.Printf("Error during shutdown: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Application has shut down gracefully.")
}
