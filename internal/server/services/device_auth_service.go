package services

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/Danz17/txmtc-relay/pkg/models"
	"github.com/google/uuid"
)

const deviceCodeBytes = 32 // 256 bits of entropy per code

// DeviceAuthService issues short-lived opaque codes that bind a claiming
// device to a human-approved secret. The device requests a code, a human
// follows the claim URL and pastes the credential, the device polls until it
// appears. Records live in memory only; restarting the relay voids all
// outstanding codes.
type DeviceAuthService struct {
	mu      sync.Mutex
	records map[string]*models.AuthorizationRecord

	baseURL         string
	ttl             time.Duration
	sharedSecret    string
	allowUnverified bool
}

func NewDeviceAuthService(baseURL string, ttl time.Duration, sharedSecret string, allowUnverified bool) *DeviceAuthService {
	return &DeviceAuthService{
		records:         make(map[string]*models.AuthorizationRecord),
		baseURL:         strings.TrimRight(baseURL, "/"),
		ttl:             ttl,
		sharedSecret:    sharedSecret,
		allowUnverified: allowUnverified,
	}
}

// RequestAuthorization creates a fresh pending record and returns the code
// plus the human-followable claim URL. Two requests for the same device
// produce two independent codes; the device is expected to discard the older
// one.
func (s *DeviceAuthService) RequestAuthorization(deviceID, deviceIdentity string) (models.AuthRequestResponse, error) {
	if strings.TrimSpace(deviceID) == "" {
		return models.AuthRequestResponse{}, fmt.Errorf("%w: device_id is required", models.ErrValidation)
	}

	code, err := generateDeviceCode()
	if err != nil {
		return models.AuthRequestResponse{}, err
	}

	now := time.Now().UTC()
	rec := &models.AuthorizationRecord{
		ID:             uuid.New(),
		DeviceCode:     code,
		DeviceID:       deviceID,
		DeviceIdentity: deviceIdentity,
		Status:         models.AuthStatusPending,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.ttl),
	}

	s.mu.Lock()
	s.removeExpiredLocked(now)
	s.records[code] = rec
	s.mu.Unlock()

	log.Printf("Authorization requested for device %s (record %s)", deviceID, rec.ID)
	return models.AuthRequestResponse{
		DeviceCode: code,
		ClaimURL:   s.ClaimURL(code),
		ExpiresIn:  int(s.ttl.Seconds()),
	}, nil
}

// ClaimURL returns the page a human follows to attach a secret to the code.
func (s *DeviceAuthService) ClaimURL(code string) string {
	return s.baseURL + "/auth/" + code
}

// Claim looks up the record behind a claim-page visit. Unknown and expired
// codes are indistinguishable: both are ErrNotFound.
func (s *DeviceAuthService) Claim(code string) (models.AuthorizationRecord, error) {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeExpiredLocked(now)

	rec, ok := s.records[code]
	if !ok || rec.Expired(now) {
		return models.AuthorizationRecord{}, fmt.Errorf("%w: unknown or expired code", models.ErrNotFound)
	}
	return *rec, nil
}

// SubmitSecret attaches the human-approved secret to a pending code. Exactly
// one submission wins: an already-authorized code rejects re-binding and the
// original secret stays untouched.
func (s *DeviceAuthService) SubmitSecret(code, secret string) error {
	secret = strings.TrimSpace(secret)
	if len(secret) < 8 || strings.ContainsAny(secret, " \t\r\n") {
		return fmt.Errorf("%w: secret must be at least 8 characters with no whitespace", models.ErrValidation)
	}

	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeExpiredLocked(now)

	rec, ok := s.records[code]
	if !ok || rec.Expired(now) {
		return fmt.Errorf("%w: unknown or expired code", models.ErrNotFound)
	}
	if rec.Status == models.AuthStatusAuthorized {
		return fmt.Errorf("%w: code is already authorized", models.ErrValidation)
	}

	rec.Secret = secret
	rec.Status = models.AuthStatusAuthorized
	rec.AuthorizedAt = &now

	log.Printf("Authorization granted for device %s (record %s)", rec.DeviceID, rec.ID)
	return nil
}

// Poll reports the state of a code. It is side-effect-free: the secret is
// not consumed on first read, so a device may safely retry.
func (s *DeviceAuthService) Poll(code string) (models.PollResponse, error) {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeExpiredLocked(now)

	rec, ok := s.records[code]
	if !ok || rec.Expired(now) {
		return models.PollResponse{}, fmt.Errorf("%w: unknown or expired code", models.ErrNotFound)
	}

	if rec.Status != models.AuthStatusAuthorized {
		return models.PollResponse{Authorized: false, Status: models.AuthStatusPending}, nil
	}

	return models.PollResponse{
		Authorized:     true,
		Status:         models.AuthStatusAuthorized,
		Secret:         rec.Secret,
		DeviceID:       rec.DeviceID,
		DeviceIdentity: rec.DeviceIdentity,
		AuthorizedAt:   rec.AuthorizedAt.Format(time.RFC3339),
	}, nil
}

// HandshakeConfigured reports whether a shared secret is set.
func (s *DeviceAuthService) HandshakeConfigured() bool {
	return s.sharedSecret != ""
}

// VerifyHandshake checks the HMAC-SHA256 signature over
// "identity:deviceID:timestamp". Without a configured shared secret the
// handshake only passes when the operator explicitly opted in to unverified
// handshakes; a silent accept-by-default would hide a real security hole.
func (s *DeviceAuthService) VerifyHandshake(deviceIdentity, deviceID, timestamp, signature string) error {
	if s.sharedSecret == "" {
		if s.allowUnverified {
			log.Printf("Accepting UNVERIFIED handshake from %s (%s): no shared secret configured", deviceIdentity, deviceID)
			return nil
		}
		return fmt.Errorf("%w: no handshake secret configured; set RELAY_SHARED_SECRET or opt in with ALLOW_UNVERIFIED_HANDSHAKE=true", models.ErrUnauthorized)
	}

	mac := hmac.New(sha256.New, []byte(s.sharedSecret))
	fmt.Fprintf(mac, "%s:%s:%s", deviceIdentity, deviceID, timestamp)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("%w: handshake signature mismatch", models.ErrUnauthorized)
	}
	return nil
}

// CleanupExpired removes every record past its expiry, whatever its status,
// and returns how many were dropped. Called opportunistically on each
// claim/poll and from a background ticker.
func (s *DeviceAuthService) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeExpiredLocked(time.Now().UTC())
}

func (s *DeviceAuthService) removeExpiredLocked(now time.Time) int {
	removed := 0
	for code, rec := range s.records {
		if rec.Expired(now) {
			delete(s.records, code)
			removed++
		}
	}
	return removed
}

func generateDeviceCode() (string, error) {
	buf := make([]byte, deviceCodeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating device code: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
