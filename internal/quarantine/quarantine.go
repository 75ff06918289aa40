// Package quarantine relocates rejected uploads out of the serving path and
// keeps an append-only NDJSON audit trail. Files are fingerprinted before
// they move, never deleted silently, and a quarantine failure never
// propagates — rejecting an upload must not crash the request handler.
package quarantine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/filegate-project/filegate/internal/core"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Record is one audit log entry. Append-only: records are never mutated
// after they are written.
type Record struct {
	Timestamp      time.Time       `json:"timestamp"`
	IncidentID     string          `json:"incident_id"`
	OriginalPath   string          `json:"original_path"`
	QuarantinePath string          `json:"quarantine_path,omitempty"`
	Reason         core.ReasonCode `json:"reason"`
	SHA256         string          `json:"sha256,omitempty"`
	Note           string          `json:"note,omitempty"`
}

// Manager moves rejected files into the quarantine directory and appends
// audit records. Concurrent callers are safe: target names embed the
// content hash plus an incident UUID, and log writes are serialized.
type Manager struct {
	dir     string
	logPath string
	logger  zerolog.Logger
	bus     *core.EventBus

	mu sync.Mutex
}

// New creates a Manager, ensuring the quarantine directory exists.
func New(cfg *core.QuarantineConfig, bus *core.EventBus, logger zerolog.Logger) (*Manager, error) {
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating quarantine dir %s: %w", cfg.Dir, err)
	}
	return &Manager{
		dir:     cfg.Dir,
		logPath: cfg.LogPath,
		logger:  logger.With().Str("component", "quarantine").Logger(),
		bus:     bus,
	}, nil
}

// Quarantine hashes the file at path, renames it into the quarantine
// directory, and appends an audit record. If the move fails it falls back
// to best-effort deletion; if that also fails, the failure is logged and
// recorded but not returned as a panic or error to the caller's caller.
// Calling Quarantine on a path that no longer exists is a logged no-op.
func (m *Manager) Quarantine(path string, reason core.ReasonCode) {
	incident := uuid.New().String()

	// Fingerprint before relocation so the audit trail keeps an immutable
	// reference to the content even after the file moves or vanishes.
	hash, err := hashFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			m.logger.Warn().Str("path", path).Msg("quarantine target already gone")
			m.appendRecord(Record{
				Timestamp:    time.Now().UTC(),
				IncidentID:   incident,
				OriginalPath: path,
				Reason:       reason,
				Note:         "file missing before quarantine",
			})
			return
		}
		m.logger.Error().Err(err).Str("path", path).Msg("hashing quarantine target failed")
		hash = ""
	}

	target := filepath.Join(m.dir, quarantineName(hash, incident))
	if err := os.Rename(path, target); err != nil {
		m.logger.Error().Err(err).Str("path", path).Msg("quarantine move failed, deleting instead")
		note := "move failed, deleted"
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			m.logger.Error().Err(rmErr).Str("path", path).Msg("fallback deletion failed")
			note = "move and deletion failed, file left in place"
		}
		m.appendRecord(Record{
			Timestamp:    time.Now().UTC(),
			IncidentID:   incident,
			OriginalPath: path,
			Reason:       reason,
			SHA256:       hash,
			Note:         note,
		})
		return
	}

	rec := Record{
		Timestamp:      time.Now().UTC(),
		IncidentID:     incident,
		OriginalPath:   path,
		QuarantinePath: target,
		Reason:         reason,
		SHA256:         hash,
	}
	m.appendRecord(rec)

	m.logger.Info().
		Str("incident_id", incident).
		Str("quarantine_path", target).
		Str("reason", string(reason)).
		Str("sha256", hash).
		Msg("file quarantined")

	event := core.NewScanEvent(core.EventQuarantined)
	event.Reason = reason
	event.Risk = core.RiskHigh
	event.Details["incident_id"] = incident
	event.Details["sha256"] = hash
	if err := m.bus.PublishEvent(event); err != nil {
		m.logger.Error().Err(err).Msg("failed to publish quarantine event")
	}
}

// appendRecord writes one JSON line to the audit log. Write failures are
// logged, never raised.
func (m *Manager) appendRecord(rec Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		m.logger.Error().Err(err).Msg("marshaling quarantine record failed")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	f, err := os.OpenFile(m.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		m.logger.Error().Err(err).Str("log", m.logPath).Msg("opening audit log failed")
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		m.logger.Error().Err(err).Str("log", m.logPath).Msg("appending audit record failed")
	}
}

func quarantineName(hash, incident string) string {
	short := hash
	if len(short) > 16 {
		short = short[:16]
	}
	if short == "" {
		short = "nohash"
	}
	return fmt.Sprintf("%d_%s_%s.quarantined", time.Now().UnixNano(), short, incident[:8])
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
