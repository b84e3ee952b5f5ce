package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Danz17/txmtc-relay/internal/server/storage"
	"github.com/Danz17/txmtc-relay/pkg/models"
)

const (
	connectTimeout = 10 * time.Second
	probeTimeout   = 3 * time.Second
)

// probeCommand is a cheap read-only request used solely to check that a
// cached session is still usable.
var probeCommand = []string{"/system/identity/print"}

// ConnectionPool keeps one lazily-created session per device, keyed by
// device name. Cached sessions are probed before reuse and recreated when
// the probe fails. The pool never retries on its own; retry policy belongs
// to the caller.
type ConnectionPool struct {
	mu    sync.Mutex
	conns map[string]Conn

	devices *storage.DeviceRepository
	dial    Dialer
}

func NewConnectionPool(devices *storage.DeviceRepository, dial Dialer) *ConnectionPool {
	return &ConnectionPool{
		conns:   make(map[string]Conn),
		devices: devices,
		dial:    dial,
	}
}

// Acquire returns a usable session for the named device, reusing the cached
// one when its probe succeeds. Map access happens under the pool lock; the
// probe and the dial are remote I/O and run outside it, so one slow device
// does not serialize the rest.
func (p *ConnectionPool) Acquire(ctx context.Context, name string) (Conn, error) {
	rec, err := p.devices.Credentials(name)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	cached, ok := p.conns[name]
	p.mu.Unlock()

	if ok {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		_, probeErr := cached.Run(probeCtx, probeCommand...)
		cancel()
		if probeErr == nil {
			return cached, nil
		}
		log.Printf("Stale connection to %s (%v), reconnecting", name, probeErr)
		p.evictHandle(name, cached)
	}

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	conn, err := p.dial(dialCtx, rec)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrConnect, name, err)
	}

	p.mu.Lock()
	if old, ok := p.conns[name]; ok {
		// Another request connected first; keep the winner.
		old.Close()
	}
	p.conns[name] = conn
	p.mu.Unlock()

	// Last-seen is bookkeeping: a persist failure here must not fail an
	// otherwise healthy acquire, so it is logged and dropped.
	if err := p.devices.UpdateLastSeen(name); err != nil {
		log.Printf("Failed to persist last-seen for %s: %v", name, err)
	}

	log.Printf("Connected to device: %s", name)
	return conn, nil
}

// Probe reports whether the device answers a cheap read within a short
// timeout. It never returns an error; unreachable means false.
func (p *ConnectionPool) Probe(ctx context.Context, name string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	// Acquire already validates cached sessions and a fresh dial implies
	// the device is up, so success is the probe result.
	_, err := p.Acquire(probeCtx, name)
	return err == nil
}

// Evict closes and drops any cached session for name.
func (p *ConnectionPool) Evict(name string) {
	p.mu.Lock()
	conn, ok := p.conns[name]
	delete(p.conns, name)
	p.mu.Unlock()

	if ok {
		conn.Close()
	}
}

// evictHandle drops the cached session only if it is still the given handle;
// a concurrent Acquire may already have replaced it.
func (p *ConnectionPool) evictHandle(name string, handle Conn) {
	p.mu.Lock()
	current, ok := p.conns[name]
	if ok && current == handle {
		delete(p.conns, name)
	} else {
		ok = false
	}
	p.mu.Unlock()

	if ok {
		handle.Close()
	}
}

// Close tears down every cached session. Used at shutdown.
func (p *ConnectionPool) Close() {
	p.mu.Lock()
	conns := p.conns
	p.conns = make(map[string]Conn)
	p.mu.Unlock()

	for name, conn := range conns {
		conn.Close()
		log.Printf("Closed connection to %s", name)
	}
}
