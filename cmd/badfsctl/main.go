package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"badfs/internal/client"
	"badfs/internal/effect"
	"badfs/internal/logging"
	"badfs/internal/mount"
)

var logger = logging.GetLogger()

func main() {
	// Parse command line flags
	binary := flag.String("binary", "badfs", "Path to the badfs filesystem binary")
	mountDir := flag.String("mount", "", "Mount point for the fault-injecting filesystem")
	timeout := flag.Duration("timeout", mount.DefaultReadyTimeout, "How long to wait for the mount to become ready")
	delay := flag.Duration("delay", 0, "Attach a delay effect to the mount root after startup")
	verbose := flag.Bool("verbose", false, "Enable verbose logging")
	flag.Parse()

	// Configure logging based on flags
	if *verbose {
		logger.SetLevel(logging.LevelDebug)
	}

	if *mountDir == "" {
		logger.Error("Mount point is required")
		os.Exit(1)
	}
	cleanMount := filepath.Clean(*mountDir)

	logger.Info("Starting badfs supervisor...")
	logger.Debug("Binary: %s", *binary)
	logger.Debug("Mount point: %s", cleanMount)

	sup, err := mount.New(*binary, cleanMount, mount.WithReadyTimeout(*timeout))
	if err != nil {
		logger.Error("Failed to create supervisor: %v", err)
		os.Exit(1)
	}

	logger.Debug("Setting up signal handlers...")
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Mounting filesystem...")
	if err := sup.Start(context.Background()); err != nil {
		logger.Error("Startup failed: %v", err)
		os.Exit(1)
	}

	if *delay > 0 {
		eff, err := effect.NewDelay(*delay)
		if err != nil {
			logger.Error("Invalid delay: %v", err)
			stopAndExit(sup, 1)
		}
		if err := client.Attach(client.Path(cleanMount), eff); err != nil {
			logger.Error("Failed to attach delay: %v", err)
			stopAndExit(sup, 1)
		}
		logger.Info("Attached %s (%v) to mount root", eff.Name(), *delay)
	}

	logger.Info("Filesystem mounted and ready")

	sig := <-sigChan
	logger.Info("Received signal %v", sig)
	stopAndExit(sup, 0)
}

func stopAndExit(sup *mount.Supervisor, code int) {
	if err := sup.Stop(); err != nil {
		logger.Error("Stop error: %v", err)
		os.Exit(1)
	}
	logger.Info("Clean shutdown complete")
	os.Exit(code)
}
