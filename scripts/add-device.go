package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/Danz17/txmtc-relay/internal/server/storage"
	"github.com/Danz17/txmtc-relay/internal/server/vault"
	"github.com/Danz17/txmtc-relay/pkg/models"
	"github.com/joho/godotenv"
)

// Operator helper that seeds the encrypted device registry without going
// through the HTTP API, for bootstrapping a relay that has no token set yet.
func main() {
	if err := godotenv.Load(".env.production"); err != nil {
		// Try .env as fallback
		godotenv.Load(".env")
	}

	name := flag.String("name", "", "Device name (registry key)")
	host := flag.String("host", "", "Device address")
	port := flag.Int("port", 8728, "API port")
	useTLS := flag.Bool("tls", false, "Use the TLS API port")
	username := flag.String("username", "", "API username")
	secret := flag.String("secret", "", "API password")
	description := flag.String("description", "", "Free-form description")
	flag.Parse()

	if *name == "" || *host == "" || *username == "" || *secret == "" {
		fmt.Println("Usage: go run scripts/add-device.go --name=core1 --host=10.0.0.1 --username=admin --secret=...")
		fmt.Println("\nExample:")
		fmt.Println("  go run scripts/add-device.go \\")
		fmt.Println("    --name=\"core1\" \\")
		fmt.Println("    --host=\"10.0.0.1\" \\")
		fmt.Println("    --username=\"relay\" \\")
		fmt.Println("    --secret=\"router-password\" \\")
		fmt.Println("    --description=\"core router, rack 2\"")
		os.Exit(1)
	}

	dataDir := os.Getenv("RELAY_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}

	v, err := vault.Open(filepath.Join(dataDir, ".vault.key"), os.Getenv("VAULT_PASSPHRASE"))
	if err != nil {
		log.Fatalf("Error: failed to open credential vault: %v", err)
	}

	repo, err := storage.NewDeviceRepository(v, filepath.Join(dataDir, "devices.enc"))
	if err != nil {
		log.Fatalf("Error: failed to open device registry: %v", err)
	}

	view, err := repo.Add(context.Background(), models.DeviceRecord{
		Name:        *name,
		Host:        *host,
		Port:        *port,
		UseTLS:      *useTLS,
		Username:    *username,
		Secret:      *secret,
		Description: *description,
	})
	if err != nil {
		log.Fatalf("Error: failed to add device: %v", err)
	}

	fmt.Printf("Added device %q (%s) to %s\n", view.Name, view.Host, filepath.Join(dataDir, "devices.enc"))
	fmt.Printf("Registry now holds %d device(s)\n", repo.Count())
}
