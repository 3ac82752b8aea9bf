package snapshot

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"

	"github.com/yndnr/respkv-go/pkg/crypto/adaptive"
)

// Encryption errors.
var (
	ErrPassphraseTooWeak = errors.New("snapshot: passphrase too weak (minimum 8 characters)")
	ErrDecryptionFailed  = errors.New("snapshot: decryption failed - wrong key or corrupted data")
	ErrNotSealed         = errors.New("snapshot: data is not a sealed snapshot")
	ErrUnknownCipher     = errors.New("snapshot: unknown cipher id")
)

const (
	// MinPassphraseLength is the minimum passphrase length.
	MinPassphraseLength = 8

	// SaltLength is the salt length used in key derivation.
	SaltLength = 16

	hkdfInfo = "respkv snapshot v1"
)

var sealMagic = []byte("RKVSEAL1")

var headerLength = len(sealMagic) + 1 + SaltLength

var cipherIDs = map[adaptive.CipherType]byte{
	adaptive.CipherAESGCM:   1,
	adaptive.CipherChaCha20: 2,
}

// KDFParams tunes the Argon2id passphrase derivation.
type KDFParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultKDFParams follow the RFC 9106 second recommended option.
var DefaultKDFParams = KDFParams{Time: 3, Memory: 64 * 1024, Threads: 4}

// Sealer encrypts and decrypts snapshots with a passphrase. It is safe for
// concurrent use.
type Sealer struct {
	passphrase []byte
	cipherType adaptive.CipherType
	params     KDFParams

	mu      sync.Mutex
	salt    []byte
	ciphers map[string]adaptive.Cipher
}

// SealerOption configures a Sealer.
type SealerOption func(*Sealer)

// WithCipher fixes the cipher used by Seal. Open accepts either.
func WithCipher(t adaptive.CipherType) SealerOption {
	return func(s *Sealer) {
		s.cipherType = t
	}
}

// WithKDFParams overrides the Argon2id parameters.
func WithKDFParams(p KDFParams) SealerOption {
	return func(s *Sealer) {
		s.params = p
	}
}

// NewSealer creates a Sealer for passphrase. Snapshots sealed by one Sealer
// share a salt, so the expensive key derivation runs once per process.
func NewSealer(passphrase string, opts ...SealerOption) (*Sealer, error) {
	if len(passphrase) < MinPassphraseLength {
		return nil, ErrPassphraseTooWeak
	}

	s := &Sealer{
		passphrase: []byte(passphrase),
		cipherType: adaptive.Preferred(),
		params:     DefaultKDFParams,
		ciphers:    make(map[string]adaptive.Cipher),
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, ok := cipherIDs[s.cipherType]; !ok {
		return nil, fmt.Errorf("snapshot: unsupported cipher %q", s.cipherType)
	}

	s.salt = make([]byte, SaltLength)
	if _, err := rand.Read(s.salt); err != nil {
		return nil, fmt.Errorf("snapshot: generate salt: %w", err)
	}
	return s, nil
}

// IsSealed reports whether data starts with the sealed snapshot magic.
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(data, sealMagic)
}

// Seal encrypts plain into a sealed snapshot.
func (s *Sealer) Seal(plain []byte) ([]byte, error) {
	c, err := s.cipher(s.cipherType, s.salt)
	if err != nil {
		return nil, err
	}

	header := make([]byte, 0, headerLength)
	header = append(header, sealMagic...)
	header = append(header, cipherIDs[s.cipherType])
	header = append(header, s.salt...)

	sealed, err := c.Encrypt(plain, header)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encrypt: %w", err)
	}
	return append(header, sealed...), nil
}

// Open decrypts a sealed snapshot.
func (s *Sealer) Open(data []byte) ([]byte, error) {
	if !IsSealed(data) || len(data) < headerLength {
		return nil, ErrNotSealed
	}

	id := data[len(sealMagic)]
	var cipherType adaptive.CipherType
	for t, v := range cipherIDs {
		if v == id {
			cipherType = t
		}
	}
	if cipherType == "" {
		return nil, ErrUnknownCipher
	}

	salt := data[len(sealMagic)+1 : headerLength]
	c, err := s.cipher(cipherType, salt)
	if err != nil {
		return nil, err
	}

	plain, err := c.Decrypt(data[headerLength:], data[:headerLength])
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plain, nil
}

func (s *Sealer) cipher(t adaptive.CipherType, salt []byte) (adaptive.Cipher, error) {
	cacheKey := string(t) + "/" + string(salt)

	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.ciphers[cacheKey]; ok {
		return c, nil
	}

	key, err := s.deriveKey(salt)
	if err != nil {
		return nil, err
	}
	defer ZeroKey(key)

	c, err := adaptive.NewWithType(key, t)
	if err != nil {
		return nil, err
	}
	s.ciphers[cacheKey] = c
	return c, nil
}

// deriveKey runs Argon2id over the passphrase, then HKDF to bind the key to
// its purpose.
func (s *Sealer) deriveKey(salt []byte) ([]byte, error) {
	master := argon2.IDKey(s.passphrase, salt, s.params.Time, s.params.Memory, s.params.Threads, adaptive.KeySize)
	defer ZeroKey(master)

	key := make([]byte, adaptive.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, salt, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("snapshot: derive key: %w", err)
	}
	return key, nil
}

// ZeroKey overwrites key material.
func ZeroKey(key []byte) {
	clear(key)
}
