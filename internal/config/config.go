// Package config loads fabrica-toolgate configuration from environment
// variables and the backend catalog file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openfabrica/fabrica-toolgate/internal/access"
	"github.com/openfabrica/fabrica-toolgate/internal/catalog"
)

const (
	defaultListenAddr      = ":27780"
	defaultCatalogFile     = "toolgate.yaml"
	defaultDispatchTimeout = 30 * time.Second
	defaultCatalogTimeout  = 15 * time.Second
)

// Config holds service runtime configuration.
type Config struct {
	ListenAddr  string
	LogLevel    string
	CatalogFile string

	IdentityURL string

	DispatchTimeout time.Duration
	CatalogTimeout  time.Duration

	NATSURL     string
	NATSSubject string

	MetricsEnabled bool
	DevMode        bool
}

// File is the on-disk backend and tier catalog.
type File struct {
	Services []ServiceEntry `yaml:"services"`
	Tiers    []TierEntry    `yaml:"tiers"`
}

// ServiceEntry declares one backend to aggregate into the catalog.
type ServiceEntry struct {
	Name    string `yaml:"name"`
	URL     string `yaml:"url"`
	Path    string `yaml:"path"`
	Enabled *bool  `yaml:"enabled"`
	// Include sets the document-wide default when the API description
	// carries no inclusion markers of its own.
	Include *bool `yaml:"include"`
}

// TierEntry declares one access tier and its allow-listed tool names.
type TierEntry struct {
	Name  string   `yaml:"name"`
	Allow []string `yaml:"allow"`
}

// Load returns configuration parsed from environment variables.
func Load() (Config, error) {
	cfg := Config{
		ListenAddr:      envOrDefault("FABRICA_TOOLGATE_LISTEN_ADDR", defaultListenAddr),
		LogLevel:        strings.ToLower(strings.TrimSpace(envOrDefault("FABRICA_TOOLGATE_LOG_LEVEL", "info"))),
		CatalogFile:     envOrDefault("FABRICA_TOOLGATE_CATALOG_FILE", defaultCatalogFile),
		IdentityURL:     strings.TrimSpace(os.Getenv("FABRICA_TOOLGATE_IDENTITY_URL")),
		DispatchTimeout: envDuration("FABRICA_TOOLGATE_DISPATCH_TIMEOUT", defaultDispatchTimeout),
		CatalogTimeout:  envDuration("FABRICA_TOOLGATE_CATALOG_TIMEOUT", defaultCatalogTimeout),
		NATSURL:         strings.TrimSpace(os.Getenv("FABRICA_TOOLGATE_NATS_URL")),
		NATSSubject:     strings.TrimSpace(os.Getenv("FABRICA_TOOLGATE_NATS_SUBJECT")),
		MetricsEnabled:  envBool("FABRICA_TOOLGATE_METRICS_ENABLED", true),
		DevMode:         envBool("FABRICA_TOOLGATE_DEV_MODE", false),
	}

	if cfg.IdentityURL == "" {
		return Config{}, fmt.Errorf("FABRICA_TOOLGATE_IDENTITY_URL is required")
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// LoadFile parses and validates the backend catalog file.
func LoadFile(path string) (File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("reading catalog file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return File{}, fmt.Errorf("parsing catalog file %s: %w", path, err)
	}
	if err := file.validate(); err != nil {
		return File{}, fmt.Errorf("invalid catalog file %s: %w", path, err)
	}
	return file, nil
}

func (f File) validate() error {
	if len(f.Services) == 0 {
		return fmt.Errorf("at least one service is required")
	}

	seen := make(map[string]struct{}, len(f.Services))
	for i, svc := range f.Services {
		name := strings.TrimSpace(svc.Name)
		if name == "" {
			return fmt.Errorf("service %d has an empty name", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("duplicate service name %q", name)
		}
		seen[name] = struct{}{}
		if strings.TrimSpace(svc.URL) == "" && strings.TrimSpace(svc.Path) == "" {
			return fmt.Errorf("service %q needs a url or a local path", name)
		}
	}

	hasAnonymous := false
	for _, tier := range f.Tiers {
		if strings.TrimSpace(tier.Name) == access.TierAnonymous {
			hasAnonymous = true
			break
		}
	}
	if !hasAnonymous {
		return fmt.Errorf("tier %q is required", access.TierAnonymous)
	}
	return nil
}

// ServiceConfigs converts file entries to catalog build inputs. Services
// default to enabled and to including every operation.
func (f File) ServiceConfigs() []catalog.ServiceConfig {
	out := make([]catalog.ServiceConfig, 0, len(f.Services))
	for _, svc := range f.Services {
		out = append(out, catalog.ServiceConfig{
			Name:           strings.TrimSpace(svc.Name),
			URL:            strings.TrimSpace(svc.URL),
			Path:           strings.TrimSpace(svc.Path),
			Enabled:        boolOrDefault(svc.Enabled, true),
			DefaultInclude: boolOrDefault(svc.Include, true),
		})
	}
	return out
}

// TierConfigs converts file entries to access tier inputs.
func (f File) TierConfigs() []access.Tier {
	out := make([]access.Tier, 0, len(f.Tiers))
	for _, tier := range f.Tiers {
		out = append(out, access.Tier{
			Name:  strings.TrimSpace(tier.Name),
			Allow: tier.Allow,
		})
	}
	return out
}

func boolOrDefault(value *bool, defaultVal bool) bool {
	if value == nil {
		return defaultVal
	}
	return *value
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultVal
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		switch strings.ToLower(value) {
		case "yes", "on":
			return true
		case "no", "off":
			return false
		default:
			return defaultVal
		}
	}
	return parsed
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultVal
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return defaultVal
	}
	return parsed
}
