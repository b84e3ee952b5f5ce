package models

import (
	"time"

	"github.com/google/uuid"
)

// Authorization statuses. A record only ever moves pending -> authorized;
// expiry is absolute and checked at use time, not recorded as a status.
const (
	AuthStatusPending    = "pending"
	AuthStatusAuthorized = "authorized"
)

// AuthorizationRecord tracks one device-authorization transaction: a device
// asked for a credential, a human may attach one via the claim page, and the
// device polls until it appears.
type AuthorizationRecord struct {
	ID             uuid.UUID  `json:"id"`
	DeviceCode     string     `json:"device_code"`
	DeviceID       string     `json:"device_id"`
	DeviceIdentity string     `json:"device_identity,omitempty"`
	Secret         string     `json:"-"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	AuthorizedAt   *time.Time `json:"authorized_at,omitempty"`
}

// Expired reports whether the record is past its absolute expiry. Expired
// records are inert for both submission and polling regardless of status.
func (r AuthorizationRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
