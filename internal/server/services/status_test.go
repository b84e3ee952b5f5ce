package services

import (
	"context"
	"errors"
	"testing"
)

func TestStatusAggregator_OnlineSnapshot(t *testing.T) {
	repo := newTestRepo(t)
	fleet := newFakeFleet()
	fleet.devices["core1"] = &fakeDevice{rows: []map[string]string{{
		"name":         "gw-1",
		"version":      "7.14.2",
		"uptime":       "2w3d",
		"cpu-load":     "12",
		"free-memory":  "536870912",
		"total-memory": "1073741824",
	}}}
	pool := NewConnectionPool(repo, fleet.dial)
	aggregator := NewStatusAggregator(NewCommandDispatcher(pool, repo), repo)
	addDevice(t, repo, "core1")

	snap := aggregator.Status(context.Background(), "core1")
	if !snap.Online {
		t.Fatalf("snapshot offline: %s", snap.Error)
	}
	if snap.Identity != "gw-1" || snap.Version != "7.14.2" || snap.Uptime != "2w3d" {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if snap.CPULoad != "12%" {
		t.Errorf("cpu load = %q", snap.CPULoad)
	}
	// 1 - 0.5 = 50.0%
	if snap.MemoryUsed != "50.0%" {
		t.Errorf("memory used = %q", snap.MemoryUsed)
	}
	if snap.LastChecked == "" {
		t.Error("last checked is empty")
	}
}

func TestStatusAggregator_OfflineSnapshot(t *testing.T) {
	repo := newTestRepo(t)
	fleet := newFakeFleet()
	fleet.devices["core1"] = &fakeDevice{dialErr: errors.New("connection refused")}
	pool := NewConnectionPool(repo, fleet.dial)
	aggregator := NewStatusAggregator(NewCommandDispatcher(pool, repo), repo)
	addDevice(t, repo, "core1")

	snap := aggregator.Status(context.Background(), "core1")
	if snap.Online {
		t.Fatal("snapshot online for unreachable device")
	}
	if snap.Error == "" {
		t.Error("offline snapshot carries no error")
	}
}

func TestStatusAggregator_StatusAll(t *testing.T) {
	repo := newTestRepo(t)
	fleet := newFakeFleet()
	fleet.devices["core1"] = &fakeDevice{rows: []map[string]string{{"name": "gw-1"}}}
	fleet.devices["core2"] = &fakeDevice{dialErr: errors.New("connection refused")}
	pool := NewConnectionPool(repo, fleet.dial)
	aggregator := NewStatusAggregator(NewCommandDispatcher(pool, repo), repo)
	addDevice(t, repo, "core1")
	addDevice(t, repo, "core2")

	snaps := aggregator.StatusAll(context.Background())
	if len(snaps) != 2 {
		t.Fatalf("StatusAll() returned %d snapshots, want 2", len(snaps))
	}
	if !snaps[0].Online || snaps[1].Online {
		t.Errorf("online flags = %v, %v", snaps[0].Online, snaps[1].Online)
	}
}

func TestMemoryUsedPercent(t *testing.T) {
	tests := []struct {
		free, total, want string
	}{
		{"536870912", "1073741824", "50.0%"},
		{"268435456", "1073741824", "75.0%"},
		{"0", "1073741824", "100.0%"},
		{"junk", "1073741824", ""},
		{"1", "0", ""},
	}
	for _, tt := range tests {
		if got := memoryUsedPercent(tt.free, tt.total); got != tt.want {
			t.Errorf("memoryUsedPercent(%s, %s) = %q, want %q", tt.free, tt.total, got, tt.want)
		}
	}
}
