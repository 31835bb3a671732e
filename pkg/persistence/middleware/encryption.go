package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
)

// envelopePrefix marks plan content that holds an encrypted plan.
const envelopePrefix = "enc:v1:"

var (
	// ErrInvalidKey is returned for keys that are not 32 bytes long.
	ErrInvalidKey = errors.New("encryption key must be 32 bytes (AES-256)")
	// ErrNotEncrypted is returned when a stored plan has no encrypted envelope.
	ErrNotEncrypted = errors.New("stored plan is missing encrypted data envelope")
)

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new plans.
	ActiveKey []byte

	// FallbackKeys are tried in order when the active key cannot decrypt a plan.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

// ParseKey decodes a base64 (standard or URL encoding) AES-256 key.
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if key, err = base64.URLEncoding.DecodeString(s); err != nil {
			return nil, fmt.Errorf("failed to decode key: %w", err)
		}
	}
	if len(key) != 32 {
		return nil, ErrInvalidKey
	}
	return key, nil
}

type encryptionMiddleware struct {
	next   ports.PlanStore
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that encrypts plans at rest using AES-GCM.
// The wrapped store only ever sees an opaque envelope: empty title and summary,
// and the ciphertext as content.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, ErrInvalidKey
	}
	for _, k := range config.FallbackKeys {
		if len(k) != 32 {
			return nil, ErrInvalidKey
		}
	}
	return func(next ports.PlanStore) ports.PlanStore {
		return &encryptionMiddleware{next: next, config: config}
	}, nil
}

func (m *encryptionMiddleware) Save(ctx context.Context, plan domain.ActionPlan) (domain.StoredPlan, error) {
	plainText, err := json.Marshal(plan)
	if err != nil {
		return domain.StoredPlan{}, fmt.Errorf("failed to marshal plan: %w", err)
	}

	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return domain.StoredPlan{}, fmt.Errorf("failed to encrypt plan: %w", err)
	}

	stored, err := m.next.Save(ctx, domain.ActionPlan{
		Content: envelopePrefix + base64.StdEncoding.EncodeToString(ciphertext),
	})
	if err != nil {
		return domain.StoredPlan{}, err
	}
	stored.Plan = plan
	return stored, nil
}

func (m *encryptionMiddleware) Load(ctx context.Context, id string) (domain.StoredPlan, error) {
	stored, err := m.next.Load(ctx, id)
	if err != nil {
		return domain.StoredPlan{}, err
	}

	encoded, ok := strings.CutPrefix(stored.Plan.Content, envelopePrefix)
	if !ok {
		// Fail secure: plans saved before encryption was enabled are not returned.
		return domain.StoredPlan{}, fmt.Errorf("%w: %s", ErrNotEncrypted, id)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return domain.StoredPlan{}, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return domain.StoredPlan{}, fmt.Errorf("failed to decrypt plan %s: %w", id, err)
	}

	var plan domain.ActionPlan
	if err := json.Unmarshal(plainText, &plan); err != nil {
		return domain.StoredPlan{}, fmt.Errorf("failed to unmarshal decrypted plan: %w", err)
	}
	stored.Plan = plan
	return stored, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, id string) error {
	return m.next.Delete(ctx, id)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}

	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}

	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
