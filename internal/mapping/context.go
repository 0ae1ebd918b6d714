package mapping

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chartad/charta/internal/engine"
)

// ContextScope tells whether a session context is bound to the calling
// request only, or to an ambient synchronization shared across domains.
type ContextScope string

const (
	ScopeLocal  ContextScope = "local"
	ScopeGlobal ContextScope = "global"
)

// SynchronizationOutcome tells listeners how a session context ended.
type SynchronizationOutcome string

const (
	OutcomeSaved     SynchronizationOutcome = "saved"
	OutcomeDiscarded SynchronizationOutcome = "discarded"
)

// SynchronizationListener observes the close of one session context.
// BeforeSynchronization runs while the engine session is still usable;
// AfterSynchronization reports whether the session saved or discarded.
type SynchronizationListener interface {
	BeforeSynchronization()
	AfterSynchronization(outcome SynchronizationOutcome)
}

// SessionContext is one request- or transaction-bound handle on a mapping
// domain. The engine session opens lazily on first use and ends exactly
// once when the context closes.
type SessionContext struct {
	lc       *LifeCycle
	scope    ContextScope
	openedAt time.Time

	mu          sync.Mutex
	session     engine.Session
	attachments map[string]any
	listeners   []SynchronizationListener
	closed      bool
}

func newSessionContext(lc *LifeCycle, scope ContextScope) *SessionContext {
	return &SessionContext{
		lc:          lc,
		scope:       scope,
		openedAt:    time.Now(),
		attachments: make(map[string]any),
	}
}

// Domain returns the mapping domain this context belongs to.
func (c *SessionContext) Domain() string {
	return c.lc.Domain()
}

// Scope reports whether the context is local or global.
func (c *SessionContext) Scope() ContextScope {
	return c.scope
}

// Session returns the engine session, opening it on first use.
func (c *SessionContext) Session(ctx context.Context) (engine.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrContextClosed
	}
	if c.session != nil {
		return c.session, nil
	}
	eng := c.lc.Engine()
	if eng == nil {
		return nil, ErrLifeCycleNotStarted
	}
	session, err := eng.OpenSession(ctx)
	if err != nil {
		return nil, err
	}
	c.session = session
	return session, nil
}

// Attachment returns the named attachment, or nil.
func (c *SessionContext) Attachment(name string) any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attachments[name]
}

// SetAttachment associates a value with the context for its lifetime.
func (c *SessionContext) SetAttachment(name string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrContextClosed
	}
	if value == nil {
		delete(c.attachments, name)
		return nil
	}
	c.attachments[name] = value
	return nil
}

// AddSynchronizationListener registers a listener fired when the context
// closes. Listeners fire in registration order.
func (c *SessionContext) AddSynchronizationListener(l SynchronizationListener) error {
	if l == nil {
		return ErrListenerNil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrContextClosed
	}
	c.listeners = append(c.listeners, l)
	return nil
}

// close runs the context end state machine: before-listeners, save or
// discard of the engine session, after-listeners with the outcome, then the
// lifecycle close hook.
func (c *SessionContext) close(save bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrContextClosed
	}
	c.closed = true
	listeners := make([]SynchronizationListener, len(c.listeners))
	copy(listeners, c.listeners)
	session := c.session
	c.session = nil
	c.mu.Unlock()

	for _, l := range listeners {
		l.BeforeSynchronization()
	}

	outcome := OutcomeDiscarded
	if save {
		outcome = OutcomeSaved
	}
	var err error
	if session != nil {
		if save {
			err = session.Save()
			if err != nil {
				outcome = OutcomeDiscarded
				if cerr := session.Close(); cerr != nil && !errors.Is(cerr, engine.ErrSessionClosed) {
					err = errors.Join(err, cerr)
				}
			}
		} else {
			err = session.Close()
		}
	}

	for _, l := range listeners {
		l.AfterSynchronization(outcome)
	}
	c.lc.closed(c, outcome, err)

	log.Trace().
		Str("domain", c.Domain()).
		Str("scope", string(c.scope)).
		Str("outcome", string(outcome)).
		Msg("mapping.SessionContext.close")
	return err
}

func (c *SessionContext) duration() time.Duration {
	return time.Since(c.openedAt)
}
