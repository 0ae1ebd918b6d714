package mapping

import (
	"context"
	"sync"
)

type scopeKey struct{}

// scope carries the per-request mapping state: the ambient synchronization,
// if any, and the local session contexts keyed by domain. The holder is
// mutable so closing a context can detach it without deriving a new
// context.Context, mirroring how a request-bound slot behaves.
type scope struct {
	mu     sync.Mutex
	sync   *Synchronization
	locals map[string]*SessionContext
}

// NewContext installs a fresh mapping scope on ctx. Calling it on a context
// that already carries a scope returns ctx unchanged.
func NewContext(ctx context.Context) context.Context {
	if scopeFrom(ctx) != nil {
		return ctx
	}
	return context.WithValue(ctx, scopeKey{}, &scope{locals: make(map[string]*SessionContext)})
}

func scopeFrom(ctx context.Context) *scope {
	sc, _ := ctx.Value(scopeKey{}).(*scope)
	return sc
}

func (s *scope) synchronization() *Synchronization {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sync
}

func (s *scope) setSynchronization(sync *Synchronization) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sync != nil {
		return false
	}
	s.sync = sync
	return true
}

func (s *scope) clearSynchronization() *Synchronization {
	s.mu.Lock()
	defer s.mu.Unlock()
	sync := s.sync
	s.sync = nil
	return sync
}

func (s *scope) local(domain string) *SessionContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locals[domain]
}

func (s *scope) setLocal(domain string, sc *SessionContext) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.locals[domain]; ok {
		return false
	}
	s.locals[domain] = sc
	return true
}

func (s *scope) clearLocal(domain string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locals, domain)
}
