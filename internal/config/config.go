package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/chartad/charta/internal/engine"
)

// DaemonConfig is the on-disk configuration of one charta daemon.
type DaemonConfig struct {
	Name           string         `toml:"name"`
	Addr           string         `toml:"addr"`
	RepositoryPath string         `toml:"repository_path"`
	AuthToken      string         `toml:"auth_token"`
	CorsOrigins    []string       `toml:"cors_origins"`
	Domains        []DomainConfig `toml:"domains"`
}

// DomainConfig declares one mapping domain: its unique name, the repository
// workspace it binds to, and the entity types registered with the engine.
type DomainConfig struct {
	Name      string   `toml:"name"`
	Workspace string   `toml:"workspace"`
	Entities  []string `toml:"entities"`
}

func LoadDaemonConfig(path string) (DaemonConfig, error) {
	var cfg DaemonConfig
	if err := loadToml(path, &cfg); err != nil {
		return DaemonConfig{}, err
	}
	if cfg.Name == "" {
		cfg.Name = "charta"
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9400"
	}
	if err := ValidateDaemonConfig(cfg); err != nil {
		return DaemonConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateDaemonConfig(cfg DaemonConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("daemon config missing name")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("daemon config missing addr")
	}
	if len(cfg.Domains) == 0 {
		return fmt.Errorf("daemon config requires at least one domain")
	}
	seen := make(map[string]struct{}, len(cfg.Domains))
	for i, domainCfg := range cfg.Domains {
		if err := ValidateDomainEntry(domainCfg); err != nil {
			return fmt.Errorf("domain[%d] invalid: %w", i, err)
		}
		if _, ok := seen[domainCfg.Name]; ok {
			return fmt.Errorf("domain[%d] invalid: duplicate name %q", i, domainCfg.Name)
		}
		seen[domainCfg.Name] = struct{}{}
	}
	return nil
}

func ValidateDomainEntry(cfg DomainConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if !engine.ValidTypeName(strings.TrimSpace(cfg.Name)) {
		return fmt.Errorf("name %q must be lowercase dotted segments", cfg.Name)
	}
	if strings.TrimSpace(cfg.Workspace) == "" {
		return fmt.Errorf("workspace is required")
	}
	if len(cfg.Entities) == 0 {
		return fmt.Errorf("at least one entity type is required")
	}
	for _, entity := range cfg.Entities {
		if strings.TrimSpace(entity) == "" {
			return fmt.Errorf("entity names must not be blank")
		}
	}
	return nil
}
