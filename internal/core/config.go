package core

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the entire filegate configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Bus        BusConfig        `yaml:"bus"`
	Scan       ScanConfig       `yaml:"scan"`
	Vault      VaultConfig      `yaml:"vault"`
	Quarantine QuarantineConfig `yaml:"quarantine"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// UploadsPerMinute is the per-IP rate limit on the upload endpoint.
	UploadsPerMinute int `yaml:"uploads_per_minute"`
	// TrustProxyHeader enables X-Forwarded-For as the client IP source.
	// Only enable behind a proxy that strips the header from clients.
	TrustProxyHeader bool `yaml:"trust_proxy_header"`
	// AdminKey authenticates administrative retrievals, which skip the
	// token IP-binding check. Overridable via FILEGATE_ADMIN_KEY. Empty
	// disables administrative access entirely.
	AdminKey string `yaml:"admin_key"`
}

// BusConfig holds NATS event bus settings. The bus is optional: when
// disabled, verdicts and quarantine incidents are only logged locally.
type BusConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Embedded bool   `yaml:"embedded"`
	DataDir  string `yaml:"data_dir"`
	Port     int    `yaml:"port"`
}

// ScanConfig holds detector tunables.
type ScanConfig struct {
	// MaxUploadBytes is the hard ceiling on any single upload.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	// SpoolDir receives inbound bytes before a verdict exists. It must not
	// be web-servable.
	SpoolDir string `yaml:"spool_dir"`
	// GenericEntropyMax flags non-image content above this entropy.
	// The reference value sits above the theoretical 8.0 bits/byte maximum,
	// which disables entropy-only rejection; lower it only after validating
	// against a corpus of legitimate documents.
	GenericEntropyMax float64 `yaml:"generic_entropy_max"`
	// ImageTailEntropyMax flags image trailers (last 1KB) above this
	// entropy. Same caveat as GenericEntropyMax.
	ImageTailEntropyMax float64 `yaml:"image_tail_entropy_max"`
}

// VaultConfig holds encrypted storage and access token settings.
type VaultConfig struct {
	Dir string `yaml:"dir"`
	// Secret keys the at-rest encryption. Overridable via FILEGATE_VAULT_SECRET.
	Secret string `yaml:"secret"`
	// TokenSecret signs access tokens. Overridable via FILEGATE_TOKEN_SECRET.
	TokenSecret string `yaml:"token_secret"`
	// KeySalt feeds the argon2id derivation of the encryption key.
	KeySalt       string `yaml:"key_salt"`
	RetentionDays int    `yaml:"retention_days"`
	TokenTTL      string `yaml:"token_ttl"`
	// IPBinding selects how a token's bound IP is compared to the caller:
	// "strict" requires exact equality, "subnet" accepts the same /24.
	IPBinding string `yaml:"ip_binding"`
}

// QuarantineConfig holds quarantine directory and audit log settings.
type QuarantineConfig struct {
	Dir     string `yaml:"dir"`
	LogPath string `yaml:"log_path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config with sane defaults — zero-config works out of the box.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             1790,
			UploadsPerMinute: 30,
		},
		Bus: BusConfig{
			Enabled:  false,
			URL:      "nats://127.0.0.1:4222",
			Embedded: true,
			DataDir:  "./data/nats",
			Port:     4222,
		},
		Scan: ScanConfig{
			MaxUploadBytes:      15 * 1024 * 1024,
			SpoolDir:            "./data/spool",
			GenericEntropyMax:   8.5,
			ImageTailEntropyMax: 9.5,
		},
		Vault: VaultConfig{
			Dir:           "./data/vault",
			KeySalt:       "filegate-vault-v1",
			RetentionDays: 30,
			TokenTTL:      "24h",
			IPBinding:     "strict",
		},
		Quarantine: QuarantineConfig{
			Dir:     "./data/quarantine",
			LogPath: "./data/quarantine/audit.log",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from a YAML file, falling back to defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// Secrets come from the environment when not set in config.
	if env := os.Getenv("FILEGATE_VAULT_SECRET"); env != "" {
		cfg.Vault.Secret = env
	}
	if env := os.Getenv("FILEGATE_TOKEN_SECRET"); env != "" {
		cfg.Vault.TokenSecret = env
	}
	if env := os.Getenv("FILEGATE_ADMIN_KEY"); env != "" {
		cfg.Server.AdminKey = env
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot produce a working gateway.
func (c *Config) Validate() error {
	if c.Scan.MaxUploadBytes <= 0 {
		return fmt.Errorf("scan.max_upload_bytes must be positive")
	}
	if c.Vault.RetentionDays <= 0 {
		return fmt.Errorf("vault.retention_days must be positive")
	}
	switch c.Vault.IPBinding {
	case "strict", "subnet":
	default:
		return fmt.Errorf("vault.ip_binding must be %q or %q, got %q", "strict", "subnet", c.Vault.IPBinding)
	}
	if _, err := time.ParseDuration(c.Vault.TokenTTL); err != nil {
		return fmt.Errorf("vault.token_ttl: %w", err)
	}
	return nil
}

// TokenTTLDuration returns the parsed token lifetime.
func (c *Config) TokenTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.Vault.TokenTTL)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// LogLevel returns the normalized logging level.
func (c *Config) LogLevel() string {
	return strings.ToLower(strings.TrimSpace(c.Logging.Level))
}
