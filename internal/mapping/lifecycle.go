package mapping

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/chartad/charta/internal/engine"
	"github.com/chartad/charta/internal/observability"
)

// Hooks lets a lifecycle owner observe session contexts at precise phases.
// OnOpenSession runs right after a context opens, OnCloseSession right after
// it closes. Both may be called from any goroutine handling the request.
type Hooks interface {
	OnOpenSession(sc *SessionContext)
	OnCloseSession(sc *SessionContext)
}

// LifeCycleConfig describes one mapping domain binding.
type LifeCycleConfig struct {
	// Domain uniquely identifies the mapping domain against the manager.
	Domain string
	// Workspace is the repository workspace the engine binds to.
	Workspace string
	// Entities lists the entity type names registered with the engine.
	Entities []string
	// Hooks is optional.
	Hooks Hooks
	// Factory overrides the manager's engine factory when set.
	Factory engine.Factory
}

// LifeCycle bootstraps a mapping engine bound to one repository workspace
// and scopes session contexts for its domain.
type LifeCycle struct {
	domain    string
	workspace string
	entities  []string
	hooks     Hooks
	factory   engine.Factory

	mu  sync.RWMutex
	eng engine.Engine
}

// NewLifeCycle validates the configuration and builds an unstarted
// lifecycle. The engine is not built until Start.
func NewLifeCycle(cfg LifeCycleConfig) (*LifeCycle, error) {
	domain := strings.TrimSpace(cfg.Domain)
	if domain == "" {
		return nil, fmt.Errorf("%w: missing domain name", ErrInvalidDomain)
	}
	if !engine.ValidTypeName(domain) {
		return nil, fmt.Errorf("%w: invalid domain name %q", ErrInvalidDomain, domain)
	}
	engCfg := engine.Config{Workspace: strings.TrimSpace(cfg.Workspace), Entities: trimmed(cfg.Entities)}
	if err := engCfg.Validate(); err != nil {
		return nil, err
	}
	return &LifeCycle{
		domain:    domain,
		workspace: engCfg.Workspace,
		entities:  engCfg.Entities,
		hooks:     cfg.Hooks,
		factory:   cfg.Factory,
	}, nil
}

// Domain returns the unique lifecycle domain name.
func (lc *LifeCycle) Domain() string {
	return lc.domain
}

// Workspace returns the repository workspace bound to this lifecycle.
func (lc *LifeCycle) Workspace() string {
	return lc.workspace
}

// Entities returns the registered entity type names.
func (lc *LifeCycle) Entities() []string {
	out := make([]string, len(lc.entities))
	copy(out, lc.entities)
	return out
}

// Engine returns the engine built at Start, or nil before Start.
func (lc *LifeCycle) Engine() engine.Engine {
	lc.mu.RLock()
	defer lc.mu.RUnlock()
	return lc.eng
}

// Started reports whether the engine has been built.
func (lc *LifeCycle) Started() bool {
	return lc.Engine() != nil
}

// Start builds the mapping engine bound to the workspace with the
// registered entity types.
func (lc *LifeCycle) Start(ctx context.Context) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if lc.eng != nil {
		return fmt.Errorf("%w: %s", ErrLifeCycleStarted, lc.domain)
	}
	if lc.factory == nil {
		return fmt.Errorf("%w: %s", ErrNoFactory, lc.domain)
	}

	log.Debug().Str("domain", lc.domain).Str("workspace", lc.workspace).Msg("mapping.LifeCycle.start building engine")
	eng, err := lc.factory(ctx, engine.Config{Workspace: lc.workspace, Entities: lc.entities})
	observability.RecordEngineBuild(lc.domain, err)
	if err != nil {
		return fmt.Errorf("mapping: build engine for domain %q: %w", lc.domain, err)
	}
	lc.eng = eng
	return nil
}

// Stop closes the engine. Open session contexts keep their sessions; new
// ones fail until the lifecycle starts again.
func (lc *LifeCycle) Stop() error {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if lc.eng == nil {
		return nil
	}
	err := lc.eng.Close()
	lc.eng = nil
	return err
}

// Context makes a best effort to return the active session context whether
// it is local or global. When a synchronization is active and the domain
// does not participate yet, a global context opens automatically. Returns
// nil when no context can be resolved.
func (lc *LifeCycle) Context(ctx context.Context) *SessionContext {
	return lc.resolve(ctx, false)
}

// PeekContext returns the active session context without ever opening one.
func (lc *LifeCycle) PeekContext(ctx context.Context) *SessionContext {
	return lc.resolve(ctx, true)
}

func (lc *LifeCycle) resolve(ctx context.Context, peek bool) *SessionContext {
	scope := scopeFrom(ctx)
	if scope == nil {
		return nil
	}
	if sync := scope.synchronization(); sync != nil {
		sc := sync.Context(lc.domain)
		if sc == nil && !peek {
			opened, err := sync.openContext(lc)
			if err != nil {
				log.Warn().Err(err).Str("domain", lc.domain).Msg("mapping.LifeCycle.resolve global context open failed")
				return nil
			}
			sc = opened
		}
		return sc
	}
	return scope.local(lc.domain)
}

// OpenContext opens a session context for the domain and returns it. With
// an active synchronization the context is global and scoped to it;
// otherwise it is local to the scope installed by NewContext.
func (lc *LifeCycle) OpenContext(ctx context.Context) (*SessionContext, error) {
	scope := scopeFrom(ctx)
	if scope == nil {
		return nil, ErrNoScope
	}
	if sync := scope.synchronization(); sync != nil {
		log.Trace().Str("domain", lc.domain).Msg("mapping.LifeCycle.openContext opening global context")
		return sync.openContext(lc)
	}

	sc := newSessionContext(lc, ScopeLocal)
	if !scope.setLocal(lc.domain, sc) {
		return nil, ErrContextAlreadyOpen
	}
	log.Trace().Str("domain", lc.domain).Msg("mapping.LifeCycle.openContext opened local context")
	lc.opened(sc)
	return sc, nil
}

// OpenGlobalContext opens a context scoped to the active synchronization.
// It fails when no synchronization is active or when the domain already
// participates in it.
func (lc *LifeCycle) OpenGlobalContext(ctx context.Context) (*SessionContext, error) {
	scope := scopeFrom(ctx)
	if scope == nil {
		return nil, ErrNoScope
	}
	sync := scope.synchronization()
	if sync == nil {
		return nil, ErrNoSynchronization
	}
	return sync.openContext(lc)
}

// CloseContext closes the active session context, saving or discarding its
// pending changes. A global context detaches from its synchronization.
func (lc *LifeCycle) CloseContext(ctx context.Context, save bool) error {
	scope := scopeFrom(ctx)
	if scope == nil {
		return ErrNoScope
	}

	if sync := scope.synchronization(); sync != nil {
		sc := sync.Context(lc.domain)
		if sc == nil {
			return ErrNoContext
		}
		sync.detach(lc.domain)
		return sc.close(save)
	}

	sc := scope.local(lc.domain)
	if sc == nil {
		return ErrNoContext
	}
	scope.clearLocal(lc.domain)
	return sc.close(save)
}

// Session returns the engine session of the active context, resolving the
// context the same way Context does.
func (lc *LifeCycle) Session(ctx context.Context) (engine.Session, error) {
	sc := lc.Context(ctx)
	if sc == nil {
		return nil, ErrNoContext
	}
	return sc.Session(ctx)
}

// opened records metrics and fires the open hook for a new context.
func (lc *LifeCycle) opened(sc *SessionContext) {
	observability.RecordContextOpened(lc.domain, string(sc.Scope()))
	if lc.hooks != nil {
		lc.hooks.OnOpenSession(sc)
	}
}

// closed records metrics and fires the close hook for an ended context.
func (lc *LifeCycle) closed(sc *SessionContext, outcome SynchronizationOutcome, err error) {
	if err != nil {
		log.Warn().Err(err).Str("domain", lc.domain).Msg("mapping.LifeCycle.closed context close failed")
	}
	observability.RecordContextClosed(lc.domain, string(sc.Scope()), string(outcome), sc.duration())
	if lc.hooks != nil {
		lc.hooks.OnCloseSession(sc)
	}
}

func trimmed(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
