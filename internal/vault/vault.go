// Package vault stores accepted files encrypted at rest and mediates every
// read through signed access tokens. Plaintext is never persisted: each
// file is sealed with AES-256-GCM under a key derived from the server
// secret, written as nonce||ciphertext beneath an unpredictable name, and
// handed back only as a token the caller can present later.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/filegate-project/filegate/internal/core"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/argon2"
)

var (
	ErrNotFound   = errors.New("vault: file not found")
	ErrCiphertext = errors.New("vault: ciphertext corrupt or key mismatch")
)

// Handle identifies one stored ciphertext. The ID is a
// timestamp+hash+random composite, never derived from the original
// filename, so stored paths cannot be enumerated or guessed.
type Handle struct {
	FileID       string
	Path         string
	OriginalName string
	MimeType     string
	SHA256       string
	Size         int64
}

// Vault is the encrypted file store.
type Vault struct {
	dir       string
	aead      cipher.AEAD
	tokens    *TokenIssuer
	retention time.Duration
	logger    zerolog.Logger
}

// New creates a Vault. The encryption key is derived from the configured
// secret with argon2id; the signing secret for tokens is independent, so
// compromising one does not hand over the other.
func New(cfg *core.VaultConfig, tokenTTL time.Duration, logger zerolog.Logger) (*Vault, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("vault secret is not configured (set vault.secret or FILEGATE_VAULT_SECRET)")
	}
	if cfg.TokenSecret == "" {
		return nil, fmt.Errorf("token secret is not configured (set vault.token_secret or FILEGATE_TOKEN_SECRET)")
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating vault dir %s: %w", cfg.Dir, err)
	}

	key := argon2.IDKey([]byte(cfg.Secret), []byte(cfg.KeySalt), 1, 64*1024, 4, 32)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	return &Vault{
		dir:       cfg.Dir,
		aead:      aead,
		tokens:    NewTokenIssuer([]byte(cfg.TokenSecret), tokenTTL, cfg.IPBinding),
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		logger:    logger.With().Str("component", "vault").Logger(),
	}, nil
}

// Store encrypts data and persists it, returning the handle and a signed
// access token bound to clientIP. A fresh random nonce is generated per
// file; the write goes through a temp file and an atomic rename so readers
// never observe partial ciphertext.
func (v *Vault) Store(data []byte, originalName, mimeType, clientIP string) (*Handle, string, error) {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	fileID := fmt.Sprintf("%d_%s_%s", time.Now().UnixNano(), hash[:12], uuid.New().String()[:8])
	path := filepath.Join(v.dir, fileID+".bin")

	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := v.aead.Seal(nonce, nonce, data, nil)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0o640); err != nil {
		return nil, "", fmt.Errorf("writing ciphertext: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return nil, "", fmt.Errorf("finalizing ciphertext: %w", err)
	}

	handle := &Handle{
		FileID:       fileID,
		Path:         path,
		OriginalName: originalName,
		MimeType:     mimeType,
		SHA256:       hash,
		Size:         int64(len(data)),
	}

	token, err := v.tokens.Issue(fileID, originalName, mimeType, clientIP)
	if err != nil {
		os.Remove(path)
		return nil, "", fmt.Errorf("issuing access token: %w", err)
	}

	v.logger.Info().
		Str("file_id", fileID).
		Str("mime", mimeType).
		Int("size", len(data)).
		Msg("file stored")

	return handle, token, nil
}

// Retrieve verifies the token (signature, expiry, IP binding), loads the
// ciphertext, and returns the decrypted bytes. Authenticated administrative
// callers may set admin to bypass the IP-binding check only — signature and
// expiry always apply.
func (v *Vault) Retrieve(token, callerIP string, admin bool) ([]byte, *Handle, error) {
	claims, err := v.tokens.Verify(token, callerIP, admin)
	if err != nil {
		return nil, nil, err
	}

	if !validFileID(claims.FileID) {
		return nil, nil, ErrNotFound
	}
	path := filepath.Join(v.dir, claims.FileID+".bin")

	sealed, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("reading ciphertext: %w", err)
	}

	if len(sealed) < v.aead.NonceSize() {
		return nil, nil, ErrCiphertext
	}
	nonce, ciphertext := sealed[:v.aead.NonceSize()], sealed[v.aead.NonceSize():]
	plain, err := v.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, nil, ErrCiphertext
	}

	sum := sha256.Sum256(plain)
	handle := &Handle{
		FileID:       claims.FileID,
		Path:         path,
		OriginalName: claims.OriginalName,
		MimeType:     claims.MimeType,
		SHA256:       hex.EncodeToString(sum[:]),
		Size:         int64(len(plain)),
	}
	return plain, handle, nil
}

// Sweep removes ciphertexts older than the retention period and returns
// how many were deleted. Intended to run periodically from the engine.
func (v *Vault) Sweep() (int, error) {
	entries, err := os.ReadDir(v.dir)
	if err != nil {
		return 0, fmt.Errorf("listing vault dir: %w", err)
	}

	cutoff := time.Now().Add(-v.retention)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".bin") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(v.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			v.logger.Error().Err(err).Str("path", path).Msg("sweep removal failed")
			continue
		}
		removed++
		v.logger.Info().Str("file_id", strings.TrimSuffix(entry.Name(), ".bin")).Msg("expired file swept")
	}
	return removed, nil
}

// validFileID guards the ID that reaches filepath.Join against anything but
// the generated timestamp_hash_random shape.
func validFileID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}
