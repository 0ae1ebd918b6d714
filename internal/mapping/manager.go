package mapping

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/chartad/charta/internal/engine"
)

// Phase describes manager runtime phase transitions.
type Phase string

const (
	PhaseBoot    Phase = "boot"
	PhaseStarted Phase = "started"
	PhaseStopped Phase = "stopped"
)

// DomainStatus reports one registered lifecycle for status surfaces.
type DomainStatus struct {
	Domain    string   `json:"domain"`
	Workspace string   `json:"workspace"`
	Entities  []string `json:"entities"`
	Started   bool     `json:"started"`
}

// Manager owns every mapping lifecycle, keyed by its unique domain name,
// and scopes request synchronizations across them.
type Manager struct {
	factory engine.Factory

	mu      sync.RWMutex
	domains map[string]*LifeCycle
	phase   Phase
}

// NewManager constructs a manager in boot phase. The factory is the default
// engine backend for registered lifecycles.
func NewManager(factory engine.Factory) *Manager {
	return &Manager{
		factory: factory,
		domains: make(map[string]*LifeCycle),
		phase:   PhaseBoot,
	}
}

// Register adds a lifecycle under its domain name. Lifecycles without their
// own factory inherit the manager's. Registration is only allowed before
// Start.
func (m *Manager) Register(lc *LifeCycle) error {
	if lc == nil {
		return ErrLifeCycleNil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseBoot {
		return fmt.Errorf("%w: register requires boot phase, manager is %s", ErrLifecycleOrder, m.phase)
	}
	if _, ok := m.domains[lc.domain]; ok {
		return fmt.Errorf("%w: %s", ErrDomainExists, lc.domain)
	}
	if lc.factory == nil {
		lc.factory = m.factory
	}
	m.domains[lc.domain] = lc
	log.Debug().Str("domain", lc.domain).Str("workspace", lc.workspace).Msg("mapping.Manager.register")
	return nil
}

// LifeCycle returns the lifecycle registered for the domain.
func (m *Manager) LifeCycle(domain string) (*LifeCycle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lc, ok := m.domains[domain]
	return lc, ok
}

// Domains returns deterministic status ordering by domain name.
func (m *Manager) Domains() []DomainStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]DomainStatus, 0, len(m.domains))
	for _, lc := range m.domains {
		list = append(list, DomainStatus{
			Domain:    lc.Domain(),
			Workspace: lc.Workspace(),
			Entities:  lc.Entities(),
			Started:   lc.Started(),
		})
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Domain < list[j].Domain
	})
	return list
}

// Phase returns the current manager phase.
func (m *Manager) Phase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

// Start builds the engine of every registered lifecycle and transitions
// boot->started. A build failure stops the already started lifecycles and
// leaves the manager in boot phase.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseBoot {
		return transitionError(m.phase, PhaseStarted)
	}

	started := make([]*LifeCycle, 0, len(m.domains))
	for _, domain := range m.sortedDomainsLocked() {
		lc := m.domains[domain]
		if err := lc.Start(ctx); err != nil {
			for _, prev := range started {
				_ = prev.Stop()
			}
			return err
		}
		started = append(started, lc)
	}
	m.phase = PhaseStarted
	log.Info().Int("domains", len(started)).Msg("mapping.Manager.start")
	return nil
}

// Stop closes every lifecycle engine and transitions started->stopped.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseStarted {
		return transitionError(m.phase, PhaseStopped)
	}

	var errs []error
	for _, domain := range m.sortedDomainsLocked() {
		if err := m.domains[domain].Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	m.phase = PhaseStopped
	return errors.Join(errs...)
}

// BeginRequest opens a synchronization spanning every domain that
// participates before EndRequest. The returned context carries the scope
// and must be used for the rest of the request.
func (m *Manager) BeginRequest(ctx context.Context) (context.Context, error) {
	ctx = NewContext(ctx)
	scope := scopeFrom(ctx)
	if !scope.setSynchronization(newSynchronization()) {
		return ctx, ErrSynchronizationActive
	}
	log.Trace().Msg("mapping.Manager.beginRequest synchronization opened")
	return ctx, nil
}

// EndRequest closes the active synchronization, saving or discarding the
// pending changes of every participating domain.
func (m *Manager) EndRequest(ctx context.Context, save bool) error {
	scope := scopeFrom(ctx)
	if scope == nil {
		return ErrNoSynchronization
	}
	sync := scope.clearSynchronization()
	if sync == nil {
		return ErrNoSynchronization
	}
	log.Trace().Bool("save", save).Msg("mapping.Manager.endRequest closing synchronization")
	return sync.close(save)
}

// Synchronization returns the active synchronization carried by ctx, if any.
func (m *Manager) Synchronization(ctx context.Context) *Synchronization {
	scope := scopeFrom(ctx)
	if scope == nil {
		return nil
	}
	return scope.synchronization()
}

func (m *Manager) sortedDomainsLocked() []string {
	domains := make([]string, 0, len(m.domains))
	for domain := range m.domains {
		domains = append(domains, domain)
	}
	sort.Strings(domains)
	return domains
}

func transitionError(from, to Phase) error {
	return fmt.Errorf("%w: %s -> %s", ErrLifecycleOrder, from, to)
}
