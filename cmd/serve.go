package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/embedder"
	"github.com/kozaktomas/face-auth/internal/history"
	"github.com/kozaktomas/face-auth/internal/verify"
	"github.com/kozaktomas/face-auth/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the verification web server",
	Long: `Start the Face Auth web server.
The server exposes the identity-proof and reauthentication endpoints plus
per-user history summaries. Both vector collections are bootstrapped on
startup; an unreachable store is fatal here, unlike during request handling.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (string, int) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return host, port
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Printf("Bootstrapping vector collections (%s backend)...\n", cfg.Store.Backend)
	_, historyColl, err := ensureCollections(context.Background(), cfg, store)
	if err != nil {
		return err
	}

	historyStore := history.New(historyColl)
	embeddingClient := embedder.NewClient(cfg.Embedding.URL)
	engine := verify.NewEngine(embeddingClient, historyStore, cfg.Verify.Threshold, cfg.Verify.Concurrency)

	host, port := resolveServeHostPort(cmd)
	server := web.NewServer(engine, historyStore, host, port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Auth API on http://%s:%d\n", host, port)
	fmt.Printf("Threshold: %.2f, embedding service: %s\n", cfg.Verify.Threshold, cfg.Embedding.URL)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
