package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/chartad/charta/internal/daemon"
)

type fileConfig struct {
	Name                string         `toml:"name"`
	Addr                string         `toml:"addr"`
	RepositoryPath      string         `toml:"repository_path"`
	AuthToken           string         `toml:"auth_token"`
	CorsOrigins         []string       `toml:"cors_origins"`
	Heartbeat           string         `toml:"heartbeat"`
	HeartbeatIntervalMS int64          `toml:"heartbeat_interval_ms"`
	Domains             []domainConfig `toml:"domains"`
}

type domainConfig struct {
	Name      string   `toml:"name"`
	Workspace string   `toml:"workspace"`
	Entities  []string `toml:"entities"`
}

func loadServiceConfig(path string) (daemon.ServiceConfig, error) {
	cfg := daemon.DefaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return daemon.ServiceConfig{}, fmt.Errorf("load daemon config: %w", err)
	}

	if meta.IsDefined("name") {
		name := strings.TrimSpace(raw.Name)
		if name != "" {
			cfg.Name = name
		}
	}

	if meta.IsDefined("addr") {
		cfg.AdminListenAddr = strings.TrimSpace(raw.Addr)
	}

	if meta.IsDefined("repository_path") {
		cfg.RepositoryPath = strings.TrimSpace(raw.RepositoryPath)
	}

	if meta.IsDefined("auth_token") {
		cfg.AuthToken = strings.TrimSpace(raw.AuthToken)
	}

	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = raw.CorsOrigins
	}

	if meta.IsDefined("heartbeat") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Heartbeat))
		if err != nil {
			return daemon.ServiceConfig{}, fmt.Errorf("parse heartbeat: %w", err)
		}
		cfg.HeartbeatInterval = d
	}

	if meta.IsDefined("heartbeat_interval_ms") {
		cfg.HeartbeatInterval = time.Duration(raw.HeartbeatIntervalMS) * time.Millisecond
	}

	for _, domainCfg := range raw.Domains {
		cfg.Domains = append(cfg.Domains, daemon.DomainSpec{
			Name:      strings.TrimSpace(domainCfg.Name),
			Workspace: strings.TrimSpace(domainCfg.Workspace),
			Entities:  domainCfg.Entities,
		})
	}

	return cfg, nil
}
