package models

import (
	"net"
	"strconv"
	"time"
)

// DeviceRecord is the internal registry entry for one remote device. It holds
// the decrypted secret and must never be serialized onto a read API; use
// View() for anything that leaves the process.
type DeviceRecord struct {
	Name        string     `json:"name"`
	Host        string     `json:"host"`
	Port        int        `json:"port"`
	UseTLS      bool       `json:"use_tls"`
	Username    string     `json:"username"`
	Secret      string     `json:"secret"`
	Description string     `json:"description,omitempty"`
	AddedAt     time.Time  `json:"added_at"`
	LastSeen    *time.Time `json:"last_seen,omitempty"`
}

// DeviceView is the external shape of a device record. It structurally lacks
// a secret field, so redaction cannot be forgotten on a read path.
type DeviceView struct {
	Name        string     `json:"name"`
	Host        string     `json:"host"`
	Port        int        `json:"port"`
	UseTLS      bool       `json:"use_tls"`
	Username    string     `json:"username"`
	Description string     `json:"description,omitempty"`
	AddedAt     time.Time  `json:"added_at"`
	LastSeen    *time.Time `json:"last_seen,omitempty"`
}

// DeviceSummary is a list entry: the redacted record plus a live probe result.
type DeviceSummary struct {
	DeviceView
	Online bool `json:"online"`
}

// View returns the redacted form of the record.
func (r DeviceRecord) View() DeviceView {
	return DeviceView{
		Name:        r.Name,
		Host:        r.Host,
		Port:        r.Port,
		UseTLS:      r.UseTLS,
		Username:    r.Username,
		Description: r.Description,
		AddedAt:     r.AddedAt,
		LastSeen:    r.LastSeen,
	}
}

// Address returns the host:port dial target for the device.
func (r DeviceRecord) Address() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}
