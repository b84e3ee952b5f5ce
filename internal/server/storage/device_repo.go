package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/Danz17/txmtc-relay/internal/server/vault"
	"github.com/Danz17/txmtc-relay/pkg/models"
)

// ConnectionManager is the slice of the connection pool the repository needs:
// a cheap liveness probe for listings and eviction on removal. Set after
// construction to break the repository <-> pool cycle.
type ConnectionManager interface {
	Probe(ctx context.Context, name string) bool
	Evict(name string)
}

// DeviceRepository is the durable, encrypted-at-rest catalog of remote
// devices. All records live in memory under a mutex; every mutation
// re-serializes the full registry, encrypts it through the vault, and
// atomically replaces the registry file.
type DeviceRepository struct {
	mu      sync.RWMutex
	devices map[string]models.DeviceRecord

	vault *vault.Vault
	path  string
	conns ConnectionManager
}

// NewDeviceRepository opens the registry file at path, decrypting it with v.
// A missing file is a fresh install; a present-but-undecryptable file is a
// hard error, since guessing means silently losing credentials.
func NewDeviceRepository(v *vault.Vault, path string) (*DeviceRepository, error) {
	repo := &DeviceRepository{
		devices: make(map[string]models.DeviceRecord),
		vault:   v,
		path:    path,
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return repo, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading registry file %s: %w", path, err)
	}

	plaintext, err := v.Decrypt(raw)
	if err != nil {
		return nil, fmt.Errorf("decrypting registry: %w", err)
	}
	if err := json.Unmarshal(plaintext, &repo.devices); err != nil {
		return nil, fmt.Errorf("%w: parsing registry: %v", models.ErrVault, err)
	}

	log.Printf("Loaded %d devices from registry", len(repo.devices))
	return repo, nil
}

// SetConnections wires in the connection pool (called after initialization
// to avoid a circular dependency, mirroring service wiring in main).
func (r *DeviceRepository) SetConnections(cm ConnectionManager) {
	r.conns = cm
}

// Add stores a new device record and persists the registry. Duplicate names
// fail with ErrConflict and leave the registry untouched.
func (r *DeviceRepository) Add(ctx context.Context, rec models.DeviceRecord) (models.DeviceView, error) {
	if rec.Name == "" {
		return models.DeviceView{}, fmt.Errorf("%w: device name is required", models.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[rec.Name]; ok {
		return models.DeviceView{}, fmt.Errorf("%w: device %q", models.ErrConflict, rec.Name)
	}

	rec.AddedAt = time.Now().UTC()
	r.devices[rec.Name] = rec
	if err := r.persistLocked(); err != nil {
		// Roll back the in-memory insert; the caller must not believe a
		// record exists when it would not survive a restart.
		delete(r.devices, rec.Name)
		return models.DeviceView{}, err
	}

	log.Printf("Added device: %s (%s)", rec.Name, rec.Host)
	return rec.View(), nil
}

// Remove evicts any pooled connection for the device, deletes the record and
// persists. Eviction failures are deliberately swallowed: the record is being
// deleted regardless, a stale handle just gets closed on a dead name.
func (r *DeviceRepository) Remove(ctx context.Context, name string) error {
	if r.conns != nil {
		r.conns.Evict(name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.devices[name]
	if !ok {
		return fmt.Errorf("%w: device %q", models.ErrNotFound, name)
	}

	delete(r.devices, name)
	if err := r.persistLocked(); err != nil {
		r.devices[name] = rec
		return err
	}

	log.Printf("Removed device: %s", name)
	return nil
}

// Get returns the redacted record for name.
func (r *DeviceRepository) Get(ctx context.Context, name string) (models.DeviceView, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.devices[name]
	if !ok {
		return models.DeviceView{}, fmt.Errorf("%w: device %q", models.ErrNotFound, name)
	}
	return rec.View(), nil
}

// Credentials returns the full record, decrypted secret included. For the
// connection pool only; nothing reachable from a read API may call this.
func (r *DeviceRepository) Credentials(name string) (models.DeviceRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.devices[name]
	if !ok {
		return models.DeviceRecord{}, fmt.Errorf("%w: device %q", models.ErrNotFound, name)
	}
	return rec, nil
}

// List returns every device with a live probe result. Probe failures mean
// "offline", never an error. Probing happens outside the lock; it is remote
// I/O and must not serialize unrelated registry access.
func (r *DeviceRepository) List(ctx context.Context) []models.DeviceSummary {
	r.mu.RLock()
	views := make([]models.DeviceView, 0, len(r.devices))
	for _, rec := range r.devices {
		views = append(views, rec.View())
	}
	r.mu.RUnlock()

	sort.Slice(views, func(i, j int) bool { return views[i].Name < views[j].Name })

	summaries := make([]models.DeviceSummary, 0, len(views))
	for _, v := range views {
		online := false
		if r.conns != nil {
			online = r.conns.Probe(ctx, v.Name)
		}
		summaries = append(summaries, models.DeviceSummary{DeviceView: v, Online: online})
	}
	return summaries
}

// Names returns all device names in sorted order. Fan-out iterates this, so
// per-device results come back in a stable order.
func (r *DeviceRepository) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.devices))
	for name := range r.devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered devices.
func (r *DeviceRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// UpdateLastSeen records a successful contact with the device and persists.
func (r *DeviceRepository) UpdateLastSeen(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.devices[name]
	if !ok {
		return fmt.Errorf("%w: device %q", models.ErrNotFound, name)
	}

	now := time.Now().UTC()
	rec.LastSeen = &now
	r.devices[name] = rec
	return r.persistLocked()
}

// persistLocked re-serializes the whole registry, encrypts it and atomically
// replaces the registry file. Callers hold r.mu. A write failure surfaces to
// the caller: diverging in-memory and on-disk state would misrepresent what
// survives a restart.
func (r *DeviceRepository) persistLocked() error {
	plaintext, err := json.Marshal(r.devices)
	if err != nil {
		return fmt.Errorf("serializing registry: %w", err)
	}

	ciphertext, err := r.vault.Encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("encrypting registry: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".registry-*")
	if err != nil {
		return fmt.Errorf("creating temp registry file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(ciphertext); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing registry: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("setting registry permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing registry file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing registry file: %w", err)
	}
	return nil
}
