package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Danz17/txmtc-relay/internal/server/api"
	"github.com/Danz17/txmtc-relay/internal/server/services"
	"github.com/Danz17/txmtc-relay/internal/server/storage"
	"github.com/Danz17/txmtc-relay/internal/server/vault"
	"github.com/Danz17/txmtc-relay/pkg/version"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "relay-server",
	Short: "TxMTC relay - central hub for managing a fleet of remote devices",
	Long:  "Multi-device relay with encrypted credential storage, command fan-out and human-approved device authorization",
	// Default to serve command if no subcommand provided
	Run: func(cmd *cobra.Command, args []string) {
		runServe(cmd, args)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay server",
	Run:   runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetVersion("relay-server"))
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	log.Printf("=== TxMTC Relay ===")
	log.Printf("%s", version.GetVersion("relay-server"))

	dataDir := getenv("RELAY_DATA_DIR", ".")
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	// Credential vault: one key file, one encrypted registry file, nothing
	// else durable. Losing the key file loses the registry; that is the
	// deal, not a bug.
	v, err := vault.Open(filepath.Join(dataDir, ".vault.key"), os.Getenv("VAULT_PASSPHRASE"))
	if err != nil {
		log.Fatalf("Failed to open credential vault: %v", err)
	}

	deviceRepo, err := storage.NewDeviceRepository(v, filepath.Join(dataDir, "devices.enc"))
	if err != nil {
		log.Fatalf("Failed to open device registry: %v", err)
	}

	pool := services.NewConnectionPool(deviceRepo, services.DialRouterOS)
	deviceRepo.SetConnections(pool)
	defer pool.Close()

	dispatcher := services.NewCommandDispatcher(pool, deviceRepo)
	statusAggregator := services.NewStatusAggregator(dispatcher, deviceRepo)

	host := getenv("API_HOST", "0.0.0.0")
	port := getenv("API_PORT", "5001")
	addr := fmt.Sprintf("%s:%s", host, port)

	baseURL := os.Getenv("PUBLIC_BASE_URL")
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://%s:%s", host, port)
		log.Printf("PUBLIC_BASE_URL not set, claim URLs will use %s", baseURL)
	}

	codeTTL := 24 * time.Hour
	if raw := os.Getenv("AUTH_CODE_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			log.Fatalf("Invalid AUTH_CODE_TTL %q: %v", raw, err)
		}
		codeTTL = ttl
	}

	sharedSecret := os.Getenv("RELAY_SHARED_SECRET")
	allowUnverified := os.Getenv("ALLOW_UNVERIFIED_HANDSHAKE") == "true"
	if sharedSecret == "" {
		if allowUnverified {
			log.Println("WARNING: RELAY_SHARED_SECRET not set and ALLOW_UNVERIFIED_HANDSHAKE=true - handshakes are NOT verified!")
		} else {
			log.Println("RELAY_SHARED_SECRET not set - handshakes will be rejected until one is configured")
		}
	}

	authService := services.NewDeviceAuthService(baseURL, codeTTL, sharedSecret, allowUnverified)

	token := os.Getenv("RELAY_API_TOKEN")
	if token == "" {
		log.Println("WARNING: RELAY_API_TOKEN not set - device endpoints are unprotected!")
	}

	deviceHandler := api.NewDeviceHandler(deviceRepo, dispatcher, statusAggregator)
	deviceAuthHandler := api.NewDeviceAuthHandler(authService)
	router := api.NewRouter(token, deviceRepo, deviceHandler, deviceAuthHandler)

	srv := &http.Server{
		Addr:    addr,
		Handler: router,
		// Fan-out over a large fleet of slow devices can legitimately take
		// minutes; the write timeout must not cut it off.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Background cleanup of expired authorization codes
	go cleanupExpiredAuthCodes(authService)

	go func() {
		log.Printf("Server starting on %s", addr)
		log.Printf("Registered devices: %d", deviceRepo.Count())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

func cleanupExpiredAuthCodes(authService *services.DeviceAuthService) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		if removed := authService.CleanupExpired(); removed > 0 {
			log.Printf("Cleaned up %d expired authorization codes", removed)
		}
	}
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
