package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chartad/charta/internal/config"
	"github.com/chartad/charta/internal/engine"
	"github.com/chartad/charta/internal/engine/memrepo"
	"github.com/chartad/charta/internal/engine/sqlrepo"
	"github.com/chartad/charta/internal/mapping"
)

var (
	ErrInvalidHeartbeatInterval = errors.New("daemon: invalid heartbeat interval")
	ErrNoDomains                = errors.New("daemon: at least one mapping domain required")
)

// DomainSpec declares one mapping domain the daemon bootstraps.
type DomainSpec struct {
	Name      string
	Workspace string
	Entities  []string
}

// ServiceConfig configures daemon standalone runtime defaults.
type ServiceConfig struct {
	Name              string
	RepositoryPath    string
	Domains           []DomainSpec
	HeartbeatInterval time.Duration
	AdminListenAddr   string
	AuthToken         string
	CorsOrigins       []string
}

// Daemon defaults for standalone runtime configuration. The repository is
// ephemeral until a repository path is configured.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Name:              "charta.local",
		RepositoryPath:    "",
		HeartbeatInterval: 5 * time.Second,
		AdminListenAddr:   ":9400",
	}
}

// FromDaemonConfig maps an on-disk daemon config onto runtime defaults.
func FromDaemonConfig(cfg config.DaemonConfig) ServiceConfig {
	out := DefaultServiceConfig()
	out.Name = cfg.Name
	out.RepositoryPath = cfg.RepositoryPath
	out.AdminListenAddr = cfg.Addr
	out.AuthToken = cfg.AuthToken
	out.CorsOrigins = cfg.CorsOrigins
	for _, domainCfg := range cfg.Domains {
		out.Domains = append(out.Domains, DomainSpec{
			Name:      domainCfg.Name,
			Workspace: domainCfg.Workspace,
			Entities:  domainCfg.Entities,
		})
	}
	return out
}

// ServiceStatus reports daemon identity and mapping shape.
type ServiceStatus struct {
	Name    string                 `json:"name"`
	Phase   mapping.Phase          `json:"phase"`
	Domains []mapping.DomainStatus `json:"domains"`
}

// Service runs the mapping manager lifecycle as a standalone process.
type Service struct {
	cfg      ServiceConfig
	manager  *mapping.Manager
	repo     *sqlrepo.Repository
	appeared time.Time
}

// Daemon service constructor using default standalone config.
func NewService() *Service {
	return NewServiceWithConfig(DefaultServiceConfig())
}

// Daemon service constructor using explicit config.
func NewServiceWithConfig(cfg ServiceConfig) *Service {
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = "charta.local"
	}
	return &Service{cfg: cfg}
}

// Daemon runtime entrypoint that blocks until process signal shutdown.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := s.Bootstrap(ctx); err != nil {
		return err
	}
	defer s.shutdown()
	return s.serve(ctx)
}

// Manager exposes the mapping manager for request scoping.
func (s *Service) Manager() *mapping.Manager {
	return s.manager
}

// Status reports the current manager phase and registered domains.
func (s *Service) Status() ServiceStatus {
	return ServiceStatus{
		Name:    s.cfg.Name,
		Phase:   s.manager.Phase(),
		Domains: s.manager.Domains(),
	}
}

// Bootstrap opens the repository backend, registers every configured
// mapping domain, and starts the manager.
func (s *Service) Bootstrap(ctx context.Context) error {
	if s.cfg.HeartbeatInterval <= 0 {
		return ErrInvalidHeartbeatInterval
	}
	if len(s.cfg.Domains) == 0 {
		return ErrNoDomains
	}

	factory, err := s.openRepository()
	if err != nil {
		return err
	}

	s.manager = mapping.NewManager(factory)
	s.appeared = time.Now()
	for _, spec := range s.cfg.Domains {
		lc, err := mapping.NewLifeCycle(mapping.LifeCycleConfig{
			Domain:    spec.Name,
			Workspace: spec.Workspace,
			Entities:  spec.Entities,
		})
		if err != nil {
			return err
		}
		if err := s.manager.Register(lc); err != nil {
			return err
		}
	}
	if err := s.manager.Start(ctx); err != nil {
		return err
	}

	status := s.Status()
	log.Info().
		Str("name", status.Name).
		Str("phase", string(status.Phase)).
		Int("domains", len(status.Domains)).
		Msg("daemon.Service.bootstrap ready")
	return nil
}

func (s *Service) openRepository() (engine.Factory, error) {
	path := strings.TrimSpace(s.cfg.RepositoryPath)
	if path == "" {
		log.Warn().Msg("daemon.Service.openRepository no repository path, content is ephemeral")
		return memrepo.NewRepository().Factory(), nil
	}
	repo, err := sqlrepo.Open(path)
	if err != nil {
		return nil, err
	}
	s.repo = repo
	log.Info().Str("path", repo.Path()).Msg("daemon.Service.openRepository opened")
	return repo.Factory(), nil
}

// Daemon main loop for heartbeat logging and admin API supervision.
func (s *Service) serve(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	serverErr := make(chan error, 1)
	var server *http.Server
	if strings.TrimSpace(s.cfg.AdminListenAddr) != "" {
		server = &http.Server{
			Addr:    s.cfg.AdminListenAddr,
			Handler: s.newRouter(),
		}
		go func() {
			err := server.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				err = nil
			}
			serverErr <- err
		}()
		log.Info().Str("addr", s.cfg.AdminListenAddr).Msg("daemon.Service.serve admin listening")
	}

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("daemon.Service.serve shutdown")
			if server != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("daemon: admin shutdown: %w", err)
				}
			}
			return nil
		case err := <-serverErr:
			if err != nil {
				return fmt.Errorf("daemon: admin server: %w", err)
			}
		case <-ticker.C:
			status := s.Status()
			log.Info().
				Str("name", status.Name).
				Str("phase", string(status.Phase)).
				Int("domains", len(status.Domains)).
				Msg("daemon.Service.heartbeat")
		}
	}
}

func (s *Service) shutdown() {
	if s.manager != nil && s.manager.Phase() == mapping.PhaseStarted {
		if err := s.manager.Stop(); err != nil {
			log.Warn().Err(err).Msg("daemon.Service.shutdown manager stop failed")
		}
	}
	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			log.Warn().Err(err).Msg("daemon.Service.shutdown repository close failed")
		}
	}
}
