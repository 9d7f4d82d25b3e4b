// Package config loads the engine configuration from an optional JSON
// file, with environment variables taking precedence.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"trafficctl/internal/cloud/cloudflare"
	"trafficctl/internal/cloud/dockerhost"
)

// Config holds the application configuration
type Config struct {
	ListenAddr        string `json:"listen_addr"`
	Provider          string `json:"provider"` // "mock" or "live"
	AlertRetention    int    `json:"alert_retention"`
	FailureThreshold  int    `json:"failure_threshold"`
	RecoveryThreshold int    `json:"recovery_threshold"`
	ScaleInterval     int    `json:"scale_interval"` // seconds between evaluator passes
	ScaleCooldown     int    `json:"scale_cooldown"` // seconds between firings of one rule

	Cloudflare CloudflareConfig `json:"cloudflare"`
	Docker     DockerConfig     `json:"docker"`
}

// CloudflareConfig enables DNS-based routing in live mode.
type CloudflareConfig struct {
	Enabled   bool              `json:"enabled"`
	APIToken  string            `json:"api_token"`
	ZoneID    string            `json:"zone_id"`
	Addresses map[string]string `json:"addresses"`
}

// DockerConfig enables daemon-backed scaling in live mode.
type DockerConfig struct {
	Enabled       bool   `json:"enabled"`
	Image         string `json:"image"`
	ContainerPort int    `json:"container_port"`
	MinReplicas   int    `json:"min_replicas"`
	MaxReplicas   int    `json:"max_replicas"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		ListenAddr:        ":8080",
		Provider:          "mock",
		AlertRetention:    100,
		FailureThreshold:  3,
		RecoveryThreshold: 2,
		ScaleInterval:     15,
		ScaleCooldown:     300,
	}
}

// Load reads configuration from a file (if given) and then applies
// environment overrides.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := loadFromFile(&cfg, path); err != nil {
			return cfg, err
		}
	}

	overrideFromEnv(&cfg)

	if cfg.Provider != "mock" && cfg.Provider != "live" {
		return cfg, fmt.Errorf("unknown provider %q (want mock or live)", cfg.Provider)
	}

	return cfg, nil
}

// CloudflareRouterConfig maps the config into the adapter's shape.
func (c Config) CloudflareRouterConfig() cloudflare.Config {
	return cloudflare.Config{
		APIToken:  c.Cloudflare.APIToken,
		ZoneID:    c.Cloudflare.ZoneID,
		Addresses: c.Cloudflare.Addresses,
	}
}

// DockerHostConfig maps the config into the adapter's shape.
func (c Config) DockerHostConfig() dockerhost.Config {
	return dockerhost.Config{
		Image:         c.Docker.Image,
		ContainerPort: c.Docker.ContainerPort,
		MinReplicas:   c.Docker.MinReplicas,
		MaxReplicas:   c.Docker.MaxReplicas,
	}
}

func loadFromFile(cfg *Config, path string) error {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(bytes, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func overrideFromEnv(cfg *Config) {
	if val := os.Getenv("TRAFFICCTL_LISTEN_ADDR"); val != "" {
		cfg.ListenAddr = ensurePortFormat(val)
	}

	if val := os.Getenv("TRAFFICCTL_PROVIDER"); val != "" {
		cfg.Provider = strings.ToLower(val)
	}

	if val := os.Getenv("TRAFFICCTL_ALERT_RETENTION"); val != "" {
		if n, err := parseEnvInt(val); err == nil {
			cfg.AlertRetention = n
		}
	}

	if val := os.Getenv("TRAFFICCTL_FAILURE_THRESHOLD"); val != "" {
		if n, err := parseEnvInt(val); err == nil {
			cfg.FailureThreshold = n
		}
	}

	if val := os.Getenv("TRAFFICCTL_RECOVERY_THRESHOLD"); val != "" {
		if n, err := parseEnvInt(val); err == nil {
			cfg.RecoveryThreshold = n
		}
	}

	if val := os.Getenv("TRAFFICCTL_SCALE_INTERVAL"); val != "" {
		if n, err := parseEnvInt(val); err == nil {
			cfg.ScaleInterval = n
		}
	}

	if val := os.Getenv("TRAFFICCTL_SCALE_COOLDOWN"); val != "" {
		if n, err := parseEnvInt(val); err == nil {
			cfg.ScaleCooldown = n
		}
	}

	// Cloudflare settings
	if val := os.Getenv("TRAFFICCTL_CLOUDFLARE_ENABLED"); val != "" {
		cfg.Cloudflare.Enabled = strings.ToLower(val) == "true"
	}

	if val := os.Getenv("TRAFFICCTL_CLOUDFLARE_API_TOKEN"); val != "" {
		cfg.Cloudflare.APIToken = val
	}

	if val := os.Getenv("TRAFFICCTL_CLOUDFLARE_ZONE_ID"); val != "" {
		cfg.Cloudflare.ZoneID = val
	}

	// Docker settings
	if val := os.Getenv("TRAFFICCTL_DOCKER_ENABLED"); val != "" {
		cfg.Docker.Enabled = strings.ToLower(val) == "true"
	}

	if val := os.Getenv("TRAFFICCTL_DOCKER_IMAGE"); val != "" {
		cfg.Docker.Image = val
	}

	if val := os.Getenv("TRAFFICCTL_DOCKER_CONTAINER_PORT"); val != "" {
		if n, err := parseEnvInt(val); err == nil {
			cfg.Docker.ContainerPort = n
		}
	}
}

// ensurePortFormat ensures the address is in the format ":8080"
func ensurePortFormat(addr string) string {
	addr = strings.TrimSpace(addr)
	if !strings.Contains(addr, ":") {
		return ":" + addr
	}
	return addr
}

func parseEnvInt(val string) (int, error) {
	var result int
	if _, err := fmt.Sscanf(val, "%d", &result); err != nil {
		return 0, err
	}
	return result, nil
}
