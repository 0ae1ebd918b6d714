package daemon

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/chartad/charta/internal/config"
	"github.com/chartad/charta/internal/mapping"
	"github.com/chartad/charta/internal/testutil/testlog"
)

func testServiceConfig() ServiceConfig {
	cfg := DefaultServiceConfig()
	cfg.Name = "charta.test"
	cfg.AdminListenAddr = ""
	cfg.Domains = []DomainSpec{
		{Name: "wiki", Workspace: "collaboration", Entities: []string{"wiki.page"}},
		{Name: "portal", Workspace: "portal_system", Entities: []string{"portal.preferences"}},
	}
	return cfg
}

func TestBootstrapValidation(t *testing.T) {
	testlog.Start(t)

	cfg := testServiceConfig()
	cfg.Domains = nil
	if err := NewServiceWithConfig(cfg).Bootstrap(context.Background()); !errors.Is(err, ErrNoDomains) {
		t.Fatalf("expected ErrNoDomains, got %v", err)
	}

	cfg = testServiceConfig()
	cfg.HeartbeatInterval = 0
	if err := NewServiceWithConfig(cfg).Bootstrap(context.Background()); !errors.Is(err, ErrInvalidHeartbeatInterval) {
		t.Fatalf("expected ErrInvalidHeartbeatInterval, got %v", err)
	}
}

func TestBootstrapStartsDomains(t *testing.T) {
	testlog.Start(t)
	svc := NewServiceWithConfig(testServiceConfig())
	if err := svc.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	defer svc.shutdown()

	status := svc.Status()
	if status.Name != "charta.test" {
		t.Fatalf("unexpected name: %q", status.Name)
	}
	if status.Phase != mapping.PhaseStarted {
		t.Fatalf("expected started phase, got %s", status.Phase)
	}
	if len(status.Domains) != 2 || status.Domains[0].Domain != "portal" || status.Domains[1].Domain != "wiki" {
		t.Fatalf("unexpected domains: %+v", status.Domains)
	}
	for _, domain := range status.Domains {
		if !domain.Started {
			t.Fatalf("domain %s not started", domain.Domain)
		}
	}
}

func TestBootstrapOpensSQLRepository(t *testing.T) {
	testlog.Start(t)
	cfg := testServiceConfig()
	cfg.RepositoryPath = filepath.Join(t.TempDir(), "repo.db")

	svc := NewServiceWithConfig(cfg)
	if err := svc.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	defer svc.shutdown()

	if svc.repo == nil || svc.repo.Path() != cfg.RepositoryPath {
		t.Fatalf("expected sql repository at %s", cfg.RepositoryPath)
	}
}

func TestBootstrapRejectsInvalidDomain(t *testing.T) {
	testlog.Start(t)
	cfg := testServiceConfig()
	cfg.Domains = []DomainSpec{{Name: "Wiki", Workspace: "collaboration", Entities: []string{"wiki.page"}}}
	if err := NewServiceWithConfig(cfg).Bootstrap(context.Background()); !errors.Is(err, mapping.ErrInvalidDomain) {
		t.Fatalf("expected ErrInvalidDomain, got %v", err)
	}
}

func TestFromDaemonConfig(t *testing.T) {
	testlog.Start(t)
	cfg := FromDaemonConfig(config.DaemonConfig{
		Name:           "charta.edge",
		Addr:           ":9500",
		RepositoryPath: "repo.db",
		AuthToken:      "secret",
		CorsOrigins:    []string{"http://localhost:3000"},
		Domains: []config.DomainConfig{
			{Name: "wiki", Workspace: "collaboration", Entities: []string{"wiki.page"}},
		},
	})

	if cfg.Name != "charta.edge" || cfg.AdminListenAddr != ":9500" || cfg.RepositoryPath != "repo.db" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.AuthToken != "secret" || len(cfg.CorsOrigins) != 1 {
		t.Fatalf("unexpected auth settings: %+v", cfg)
	}
	if cfg.HeartbeatInterval != 5*time.Second {
		t.Fatalf("expected default heartbeat, got %s", cfg.HeartbeatInterval)
	}
	if len(cfg.Domains) != 1 || cfg.Domains[0].Workspace != "collaboration" {
		t.Fatalf("unexpected domains: %+v", cfg.Domains)
	}
}

func TestNewServiceDefaultsName(t *testing.T) {
	testlog.Start(t)
	svc := NewServiceWithConfig(ServiceConfig{Name: "  "})
	if svc.cfg.Name != "charta.local" {
		t.Fatalf("expected fallback name, got %q", svc.cfg.Name)
	}
}
