package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/internal/audit"
	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/controlplane"
	"github.com/wardenhq/warden/internal/dispatch"
	"github.com/wardenhq/warden/internal/store"
	"github.com/wardenhq/warden/internal/sweeper"
)

var (
	listenAddr string
	dbPath     string
	configPath string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the Warden daemon (wardend)",
	Long:  `Starts the Warden daemon which provides the HTTP API for task governance.`,
	RunE:  runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address for the API server (overrides config)")
	daemonCmd.Flags().StringVar(&dbPath, "db", "", "Path to SQLite database (overrides config)")
	daemonCmd.Flags().StringVar(&configPath, "config", "", "Path to config file (default ~/.warden/config.yaml)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	log.Println("Starting Warden daemon...")

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadFromHome()
	}
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}

	// Initialize store
	s, err := store.New(cfg.DBPath)
	if err != nil {
		return err
	}

	// Create service, tool registry and server
	events := audit.NewWriter(s)
	service := controlplane.NewService(s, events, controlplane.Options{
		LeaseTTLSec:  cfg.LeaseTTLSec,
		DefaultGates: cfg.DefaultGates,
		EventLimit:   cfg.EventLimit,
	})

	registry := dispatch.NewRegistry()
	if err := controlplane.RegisterTools(registry, service); err != nil {
		s.Close()
		return err
	}
	log.Printf("Tool registry initialized with %d tools", registry.Count())

	server := controlplane.NewServer(service, s, registry, cfg.ListenAddr, cfg.APIToken)

	// Create and start the lease sweeper
	sw := sweeper.New(s, events, cfg.SweepInterval())
	sw.Start()
	defer sw.Stop()

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		err := server.Start()
		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-serverErr:
		if err != nil {
			log.Printf("Server error: %v", err)
			s.Close()
			return err
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Println("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Closing database connection...")
	if err := s.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("Shutdown complete")
	return nil
}
