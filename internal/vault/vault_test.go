package vault

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/filegate-project/filegate/internal/core"
	"github.com/rs/zerolog"
)

func testVault(t *testing.T, ttl time.Duration, ipBinding string) *Vault {
	t.Helper()
	cfg := &core.VaultConfig{
		Dir:           t.TempDir(),
		Secret:        "test-vault-secret",
		TokenSecret:   "test-token-secret",
		KeySalt:       "filegate-vault-v1",
		RetentionDays: 30,
		IPBinding:     ipBinding,
	}
	v, err := New(cfg, ttl, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return v
}

func TestVault_StoreRetrieveRoundTrip(t *testing.T) {
	v := testVault(t, time.Hour, "strict")
	original := []byte("attachment body, perfectly ordinary")

	handle, token, err := v.Store(original, "letter.txt", "text/plain", "203.0.113.7")
	if err != nil {
		t.Fatalf("Store() error: %v", err)
	}
	if handle.FileID == "" || token == "" {
		t.Fatal("Store must return a file ID and a token")
	}

	plain, got, err := v.Retrieve(token, "203.0.113.7", false)
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if !bytes.Equal(plain, original) {
		t.Error("retrieved bytes differ from stored bytes")
	}
	if got.OriginalName != "letter.txt" || got.MimeType != "text/plain" {
		t.Errorf("handle metadata = %q/%q, want letter.txt/text/plain", got.OriginalName, got.MimeType)
	}
	if got.SHA256 != handle.SHA256 {
		t.Error("retrieved hash differs from stored hash")
	}
}

func TestVault_CiphertextNotPlaintextOnDisk(t *testing.T) {
	v := testVault(t, time.Hour, "strict")
	secretBody := []byte("this exact sentence must not appear on disk")

	handle, _, err := v.Store(secretBody, "s.txt", "text/plain", "203.0.113.7")
	if err != nil {
		t.Fatal(err)
	}

	onDisk, err := os.ReadFile(handle.Path)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(onDisk, secretBody) {
		t.Error("plaintext found inside stored file")
	}
	// nonce (12) + ciphertext + GCM tag (16)
	if len(onDisk) != 12+len(secretBody)+16 {
		t.Errorf("stored size = %d, want %d", len(onDisk), 12+len(secretBody)+16)
	}
}

func TestVault_ExpiredTokenRejected(t *testing.T) {
	v := testVault(t, -time.Minute, "strict")
	_, token, err := v.Store([]byte("x"), "x.txt", "text/plain", "203.0.113.7")
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := v.Retrieve(token, "203.0.113.7", false); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expired token: err = %v, want ErrTokenInvalid", err)
	}
}

func TestVault_TamperedTokenRejected(t *testing.T) {
	v := testVault(t, time.Hour, "strict")
	_, token, err := v.Store([]byte("x"), "x.txt", "text/plain", "203.0.113.7")
	if err != nil {
		t.Fatal(err)
	}

	tampered := token[:len(token)-2] + "zz"
	if _, _, err := v.Retrieve(tampered, "203.0.113.7", false); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("tampered token: err = %v, want ErrTokenInvalid", err)
	}
}

func TestVault_StrictIPBinding(t *testing.T) {
	v := testVault(t, time.Hour, "strict")
	_, token, err := v.Store([]byte("x"), "x.txt", "text/plain", "203.0.113.7")
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := v.Retrieve(token, "203.0.113.8", false); !errors.Is(err, ErrIPMismatch) {
		t.Errorf("different IP in strict mode: err = %v, want ErrIPMismatch", err)
	}
	if _, _, err := v.Retrieve(token, "203.0.113.7", false); err != nil {
		t.Errorf("bound IP in strict mode: unexpected err %v", err)
	}
}

func TestVault_SubnetIPBinding(t *testing.T) {
	v := testVault(t, time.Hour, "subnet")
	_, token, err := v.Store([]byte("x"), "x.txt", "text/plain", "192.168.1.10")
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := v.Retrieve(token, "192.168.1.250", false); err != nil {
		t.Errorf("same /24 in subnet mode: unexpected err %v", err)
	}
	if _, _, err := v.Retrieve(token, "192.168.2.10", false); !errors.Is(err, ErrIPMismatch) {
		t.Errorf("different /24 in subnet mode: err = %v, want ErrIPMismatch", err)
	}
}

func TestVault_AdminBypassesIPBindingOnly(t *testing.T) {
	v := testVault(t, time.Hour, "strict")
	_, token, err := v.Store([]byte("x"), "x.txt", "text/plain", "203.0.113.7")
	if err != nil {
		t.Fatal(err)
	}

	if _, _, err := v.Retrieve(token, "10.0.0.1", true); err != nil {
		t.Errorf("admin from another IP: unexpected err %v", err)
	}

	expired := testVault(t, -time.Minute, "strict")
	_, deadToken, err := expired.Store([]byte("x"), "x.txt", "text/plain", "203.0.113.7")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := expired.Retrieve(deadToken, "10.0.0.1", true); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("admin with expired token: err = %v, want ErrTokenInvalid", err)
	}
}

func TestVault_TokenFromDifferentSecretRejected(t *testing.T) {
	a := testVault(t, time.Hour, "strict")
	b := testVault(t, time.Hour, "strict")

	_, token, err := a.Store([]byte("x"), "x.txt", "text/plain", "203.0.113.7")
	if err != nil {
		t.Fatal(err)
	}
	// Same token secret in both test vaults, so force divergence.
	b.tokens.secret = []byte("another-secret")
	if _, _, err := b.Retrieve(token, "203.0.113.7", false); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("foreign-secret token: err = %v, want ErrTokenInvalid", err)
	}
}

func TestVault_SweepRemovesOnlyExpired(t *testing.T) {
	v := testVault(t, time.Hour, "strict")

	oldHandle, _, err := v.Store([]byte("old"), "old.txt", "text/plain", "203.0.113.7")
	if err != nil {
		t.Fatal(err)
	}
	_, freshToken, err := v.Store([]byte("fresh"), "fresh.txt", "text/plain", "203.0.113.7")
	if err != nil {
		t.Fatal(err)
	}

	past := time.Now().Add(-31 * 24 * time.Hour)
	if err := os.Chtimes(oldHandle.Path, past, past); err != nil {
		t.Fatal(err)
	}

	removed, err := v.Sweep()
	if err != nil {
		t.Fatalf("Sweep() error: %v", err)
	}
	if removed != 1 {
		t.Errorf("Sweep removed %d, want 1", removed)
	}
	if _, err := os.Stat(oldHandle.Path); !os.IsNotExist(err) {
		t.Error("expired ciphertext still present after sweep")
	}
	if _, _, err := v.Retrieve(freshToken, "203.0.113.7", false); err != nil {
		t.Errorf("fresh file unreadable after sweep: %v", err)
	}
}

func TestVault_RetrieveAfterSweepIsNotFound(t *testing.T) {
	v := testVault(t, time.Hour, "strict")
	handle, token, err := v.Store([]byte("x"), "x.txt", "text/plain", "203.0.113.7")
	if err != nil {
		t.Fatal(err)
	}

	past := time.Now().Add(-31 * 24 * time.Hour)
	if err := os.Chtimes(handle.Path, past, past); err != nil {
		t.Fatal(err)
	}
	if _, err := v.Sweep(); err != nil {
		t.Fatal(err)
	}

	if _, _, err := v.Retrieve(token, "203.0.113.7", false); !errors.Is(err, ErrNotFound) {
		t.Errorf("swept file: err = %v, want ErrNotFound", err)
	}
}

func TestVault_CorruptCiphertextRejected(t *testing.T) {
	v := testVault(t, time.Hour, "strict")
	handle, token, err := v.Store([]byte("payload"), "p.txt", "text/plain", "203.0.113.7")
	if err != nil {
		t.Fatal(err)
	}

	sealed, err := os.ReadFile(handle.Path)
	if err != nil {
		t.Fatal(err)
	}
	sealed[len(sealed)-1] ^= 0xFF
	if err := os.WriteFile(handle.Path, sealed, 0o640); err != nil {
		t.Fatal(err)
	}

	if _, _, err := v.Retrieve(token, "203.0.113.7", false); !errors.Is(err, ErrCiphertext) {
		t.Errorf("flipped ciphertext byte: err = %v, want ErrCiphertext", err)
	}
}

func TestVault_ConcurrentStoresUniqueIDs(t *testing.T) {
	v := testVault(t, time.Hour, "strict")

	const n = 24
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, _, err := v.Store([]byte{byte(i)}, "f.txt", "text/plain", "203.0.113.7")
			if err != nil {
				t.Error(err)
				return
			}
			ids <- h.FileID
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate file ID %s", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Errorf("got %d unique IDs, want %d", len(seen), n)
	}

	entries, err := os.ReadDir(v.dir)
	if err != nil {
		t.Fatal(err)
	}
	bins := 0
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".bin" {
			bins++
		}
	}
	if bins != n {
		t.Errorf("vault dir holds %d ciphertexts, want %d", bins, n)
	}
}

func TestValidFileID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"1756400000000000000_ab12cd34ef56_0a1b2c3d", true},
		{"", false},
		{"../../etc/passwd", false},
		{"abc/def", false},
		{"ABC123", false},
	}
	for _, tt := range tests {
		if got := validFileID(tt.id); got != tt.want {
			t.Errorf("validFileID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}
