// Package api exposes the upload gateway over HTTP: one endpoint that
// accepts a file and returns an access token, one that resolves a token
// back to bytes, plus health and metrics. Rejection responses carry only
// the stable reason code; the signatures and patterns that matched stay in
// the server-side log.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/filegate-project/filegate/internal/core"
	"github.com/filegate-project/filegate/internal/gate"
	"github.com/filegate-project/filegate/internal/quarantine"
	"github.com/filegate-project/filegate/internal/vault"
)

// uploadFieldName is the single multipart field the upload endpoint reads.
const uploadFieldName = "file"

// Server is the filegate HTTP front end.
type Server struct {
	cfg        *core.Config
	gate       *gate.Gate
	vault      *vault.Vault
	quarantine *quarantine.Manager
	bus        *core.EventBus
	server     *http.Server
	logger     zerolog.Logger
}

// NewServer wires the gate, vault, and quarantine behind the HTTP routes.
// The TTLStore backs per-IP upload rate limiting.
func NewServer(cfg *core.Config, g *gate.Gate, v *vault.Vault, q *quarantine.Manager,
	store core.TTLStore, bus *core.EventBus, logger zerolog.Logger) *Server {

	s := &Server{
		cfg:        cfg,
		gate:       g,
		vault:      v,
		quarantine: q,
		bus:        bus,
		logger:     logger.With().Str("component", "api_server").Logger(),
	}

	r := chi.NewRouter()
	r.Use(recoverMiddleware(s.logger))
	r.Use(loggingMiddleware(s.logger))
	r.Use(rateLimitMiddleware(store, cfg.Server.UploadsPerMinute, cfg.Server.TrustProxyHeader))

	r.Post("/api/v1/files", s.handleUpload)
	r.Get("/api/v1/files/{token}", s.handleDownload)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving in the background.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("API server starting")
	if s.cfg.Server.AdminKey == "" {
		s.logger.Info().Msg("administrative retrieval disabled (no admin_key configured)")
	}
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("API server error")
		}
	}()
	return nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// handleUpload spools the inbound file, runs the gate, and either stores
// the file encrypted (returning an access token) or quarantines it.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Scan.MaxUploadBytes)

	file, header, err := r.FormFile(uploadFieldName)
	if err != nil {
		// The byte ceiling trips during multipart parsing, so an oversized
		// upload surfaces here, not as a malformed request.
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
				"error":  "file too large",
				"reason": string(core.ReasonSizeLimit),
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "upload must be a multipart request with a single \"file\" field",
		})
		return
	}
	defer file.Close()

	// Exactly one file per request. Extra parts are a smuggling vector, not
	// a convenience to honor.
	if r.MultipartForm != nil {
		parts := 0
		for _, headers := range r.MultipartForm.File {
			parts += len(headers)
		}
		if parts != 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "exactly one file per upload",
			})
			return
		}
	}

	// MaxBytesReader already bounds the whole body, so this cannot balloon.
	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
			"error":  "file too large",
			"reason": string(core.ReasonSizeLimit),
		})
		return
	}

	candidate := &core.Candidate{
		Data:             data,
		DeclaredMime:     header.Header.Get("Content-Type"),
		DeclaredFilename: header.Filename,
		DeclaredSize:     header.Size,
		SourceIP:         clientIP(r, s.cfg.Server.TrustProxyHeader),
	}

	// The bytes land in the spool before any verdict exists, so a rejection
	// always has a concrete file to quarantine.
	spool, err := s.spoolFile(data)
	if err != nil {
		s.logger.Error().Err(err).Msg("spooling upload failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	start := time.Now()
	verdict := s.gate.Evaluate(candidate)
	scanDuration.Observe(time.Since(start).Seconds())

	if !verdict.Accepted {
		uploadsTotal.WithLabelValues("rejected", string(verdict.Reason)).Inc()
		quarantineTotal.Inc()
		s.quarantine.Quarantine(spool, verdict.Reason)
		s.publishVerdict(core.EventScanRejected, candidate, verdict)

		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":  "file rejected by security policy",
			"reason": string(verdict.Reason),
		})
		return
	}

	handle, token, err := s.vault.Store(data, candidate.DeclaredFilename, candidate.DeclaredMime, candidate.SourceIP)
	if err != nil {
		s.logger.Error().Err(err).Msg("vault store failed")
		os.Remove(spool)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	os.Remove(spool)

	uploadsTotal.WithLabelValues("accepted", string(core.ReasonNone)).Inc()
	vaultStoredTotal.Inc()
	s.publishVerdict(core.EventScanAccepted, candidate, verdict)

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"token":  token,
		"name":   handle.OriginalName,
		"mime":   handle.MimeType,
		"size":   handle.Size,
		"sha256": handle.SHA256,
	})
}

// handleDownload resolves an access token to the decrypted file. Every
// response carries download-hardening headers so a stored file can never
// execute in a browser context, whatever its content.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	callerIP := clientIP(r, s.cfg.Server.TrustProxyHeader)
	admin := s.isAdmin(r)

	data, handle, err := s.vault.Retrieve(token, callerIP, admin)
	if err != nil {
		switch {
		case errors.Is(err, vault.ErrNotFound):
			downloadsTotal.WithLabelValues("not_found").Inc()
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "file not found"})
		case errors.Is(err, vault.ErrTokenInvalid), errors.Is(err, vault.ErrIPMismatch):
			downloadsTotal.WithLabelValues("denied").Inc()
			s.logger.Warn().Str("caller_ip", callerIP).Err(err).Msg("retrieval denied")
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "access denied"})
		default:
			downloadsTotal.WithLabelValues("error").Inc()
			s.logger.Error().Err(err).Msg("retrieval failed")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
		return
	}

	downloadsTotal.WithLabelValues("ok").Inc()

	w.Header().Set("Content-Type", handle.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", safeFilename(handle.OriginalName)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; sandbox")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "healthy",
		"bus_connected": s.bus.IsConnected(),
		"timestamp":     time.Now().UTC(),
	})
}

// isAdmin checks the administrative key header. An empty configured key
// means no header value can ever match.
func (s *Server) isAdmin(r *http.Request) bool {
	key := s.cfg.Server.AdminKey
	return key != "" && r.Header.Get("X-Admin-Key") == key
}

func (s *Server) spoolFile(data []byte) (string, error) {
	if err := os.MkdirAll(s.cfg.Scan.SpoolDir, 0o750); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(s.cfg.Scan.SpoolDir, "upload-*.tmp")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func (s *Server) publishVerdict(eventType string, c *core.Candidate, v *core.Verdict) {
	event := core.NewScanEvent(eventType)
	event.Reason = v.Reason
	event.Risk = v.Risk
	event.Detector = v.Detector
	event.Filename = c.DeclaredFilename
	event.SourceIP = c.SourceIP
	event.Details["declared_mime"] = c.DeclaredMime
	event.Details["size"] = len(c.Data)
	if err := s.bus.PublishEvent(event); err != nil {
		s.logger.Error().Err(err).Msg("failed to publish scan event")
	}
}

// safeFilename keeps Content-Disposition parseable whatever name the
// uploader declared. Names reaching here already passed the filename
// detector, so this only strips characters that break header quoting.
func safeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r < 0x20 {
			return '_'
		}
		return r
	}, name)
	if name == "" {
		return "download"
	}
	return name
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
