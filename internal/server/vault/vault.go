package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/Danz17/txmtc-relay/pkg/models"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// PBKDF2 parameters for passphrase-derived keys
	pbkdf2Iterations = 100000
	keySize          = 32 // 256 bits for AES-256
	saltSize         = 16
)

// Vault encrypts and decrypts opaque byte strings with a single symmetric
// key. The key lives in a file with owner-only permissions: generated on
// first start, loaded on every start after that. There is no rotation and no
// recovery path; losing the key file makes stored data unreadable, which is
// the intended failure mode.
type Vault struct {
	aead cipher.AEAD
}

// Open loads or creates the key material at keyPath. With an empty
// passphrase the file holds a random 256-bit key. With a passphrase set, the
// file holds only a random salt and the key is derived with PBKDF2-SHA256,
// so the key never touches disk.
func Open(keyPath, passphrase string) (*Vault, error) {
	material, err := loadOrCreateKeyFile(keyPath, passphrase)
	if err != nil {
		return nil, err
	}

	key := material
	if passphrase != "" {
		key = pbkdf2.Key([]byte(passphrase), material, pbkdf2Iterations, keySize, sha256.New)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: creating cipher: %v", models.ErrVault, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: creating GCM: %v", models.ErrVault, err)
	}

	return &Vault{aead: aead}, nil
}

// Encrypt seals plaintext with a fresh random nonce. Output layout is
// nonce || ciphertext, base64-encoded so it survives text storage.
func (v *Vault) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("%w: generating nonce: %v", models.ErrVault, err)
	}

	sealed := v.aead.Seal(nonce, nonce, plaintext, nil)
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sealed)))
	base64.StdEncoding.Encode(out, sealed)
	return out, nil
}

// Decrypt reverses Encrypt. A failed GCM authentication (wrong key, tampered
// or truncated data) surfaces as ErrVault; data is never silently dropped.
func (v *Vault) Decrypt(data []byte) ([]byte, error) {
	sealed := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(sealed, data)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding ciphertext: %v", models.ErrVault, err)
	}
	sealed = sealed[:n]

	if len(sealed) < v.aead.NonceSize() {
		return nil, fmt.Errorf("%w: ciphertext too short", models.ErrVault)
	}

	nonce, ciphertext := sealed[:v.aead.NonceSize()], sealed[v.aead.NonceSize():]
	plaintext, err := v.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: decryption failed (wrong key or corrupted data): %v", models.ErrVault, err)
	}
	return plaintext, nil
}

func loadOrCreateKeyFile(path, passphrase string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		material, decErr := base64.StdEncoding.DecodeString(string(raw))
		if decErr != nil {
			return nil, fmt.Errorf("%w: key file %s is not valid base64: %v", models.ErrVault, path, decErr)
		}
		wantLen := keySize
		if passphrase != "" {
			wantLen = saltSize
		}
		if len(material) != wantLen {
			return nil, fmt.Errorf("%w: key file %s has unexpected length %d", models.ErrVault, path, len(material))
		}
		return material, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: reading key file %s: %v", models.ErrVault, path, err)
	}

	size := keySize
	if passphrase != "" {
		size = saltSize
	}
	material := make([]byte, size)
	if _, err := rand.Read(material); err != nil {
		return nil, fmt.Errorf("%w: generating key material: %v", models.ErrVault, err)
	}

	encoded := base64.StdEncoding.EncodeToString(material)
	if err := os.WriteFile(path, []byte(encoded), 0600); err != nil {
		return nil, fmt.Errorf("%w: writing key file %s: %v", models.ErrVault, path, err)
	}
	return material, nil
}
