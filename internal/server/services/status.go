package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Danz17/txmtc-relay/pkg/models"
)

// StatusAggregator derives a normalized health snapshot per device from two
// cheap reads: the identity and the resource-usage tables.
type StatusAggregator struct {
	dispatcher *CommandDispatcher
	devices    deviceNamer
}

type deviceNamer interface {
	Names() []string
}

func NewStatusAggregator(dispatcher *CommandDispatcher, devices deviceNamer) *StatusAggregator {
	return &StatusAggregator{dispatcher: dispatcher, devices: devices}
}

// Status returns the snapshot for one device. Any failure makes an offline
// snapshot carrying the error; it never raises.
func (s *StatusAggregator) Status(ctx context.Context, name string) models.StatusSnapshot {
	snapshot := models.StatusSnapshot{
		Device:      name,
		LastChecked: time.Now().UTC().Format(time.RFC3339),
	}

	identity := s.dispatcher.Execute(ctx, name, "/system/identity", OpRead, "", nil)
	if !identity.Success {
		snapshot.Error = identity.Error
		return snapshot
	}

	usage := s.dispatcher.Execute(ctx, name, "/system/resource", OpRead, "", nil)
	if !usage.Success {
		snapshot.Error = usage.Error
		return snapshot
	}

	snapshot.Online = true
	if len(identity.Data) > 0 {
		snapshot.Identity = identity.Data[0]["name"]
	}
	if len(usage.Data) > 0 {
		row := usage.Data[0]
		snapshot.Version = row["version"]
		snapshot.Uptime = row["uptime"]
		snapshot.CPULoad = row["cpu-load"] + "%"
		snapshot.MemoryUsed = memoryUsedPercent(row["free-memory"], row["total-memory"])
	}
	return snapshot
}

// StatusAll returns one snapshot per registered device, in registry order.
func (s *StatusAggregator) StatusAll(ctx context.Context) []models.StatusSnapshot {
	names := s.devices.Names()
	snapshots := make([]models.StatusSnapshot, 0, len(names))
	for _, name := range names {
		snapshots = append(snapshots, s.Status(ctx, name))
	}
	return snapshots
}

// memoryUsedPercent computes 1 - free/total as a percentage with one
// decimal. Unparseable counters yield an empty string rather than a bogus
// number.
func memoryUsedPercent(free, total string) string {
	freeBytes, err1 := strconv.ParseFloat(free, 64)
	totalBytes, err2 := strconv.ParseFloat(total, 64)
	if err1 != nil || err2 != nil || totalBytes <= 0 {
		return ""
	}
	return fmt.Sprintf("%.1f%%", (1-freeBytes/totalBytes)*100)
}
