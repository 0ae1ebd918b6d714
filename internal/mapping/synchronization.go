package mapping

import (
	"errors"
	"sort"
	"sync"
)

// Synchronization spans one request or transaction. Every mapping domain
// that participates gets a single global session context registered here,
// and all of them close together when the synchronization ends.
type Synchronization struct {
	mu          sync.Mutex
	contexts    map[string]*SessionContext
	saveOnClose bool
	closed      bool
}

func newSynchronization() *Synchronization {
	return &Synchronization{
		contexts:    make(map[string]*SessionContext),
		saveOnClose: true,
	}
}

// Context returns the global session context registered for the domain, or
// nil when the domain does not participate yet.
func (s *Synchronization) Context(domain string) *SessionContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contexts[domain]
}

// Domains returns the participating domains in deterministic order.
func (s *Synchronization) Domains() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	domains := make([]string, 0, len(s.contexts))
	for domain := range s.contexts {
		domains = append(domains, domain)
	}
	sort.Strings(domains)
	return domains
}

// SetSaveOnClose downgrades the synchronization so its contexts discard on
// close even when the request asks for a save. A save can never be forced
// back on once disabled.
func (s *Synchronization) SetSaveOnClose(save bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveOnClose {
		s.saveOnClose = save
	}
}

// openContext registers a new global context for the lifecycle's domain.
func (s *Synchronization) openContext(lc *LifeCycle) (*SessionContext, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSynchronizationClosed
	}
	if _, ok := s.contexts[lc.Domain()]; ok {
		s.mu.Unlock()
		return nil, ErrContextAlreadyOpen
	}
	sc := newSessionContext(lc, ScopeGlobal)
	s.contexts[lc.Domain()] = sc
	s.mu.Unlock()

	lc.opened(sc)
	return sc, nil
}

// detach removes a context that was closed individually before the
// synchronization ended.
func (s *Synchronization) detach(domain string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contexts, domain)
}

// close ends the synchronization, closing every participating context. The
// effective save decision combines the caller's intent with SetSaveOnClose.
func (s *Synchronization) close(save bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSynchronizationClosed
	}
	s.closed = true
	contexts := make([]*SessionContext, 0, len(s.contexts))
	for _, domain := range sortedDomains(s.contexts) {
		contexts = append(contexts, s.contexts[domain])
	}
	s.contexts = nil
	effective := save && s.saveOnClose
	s.mu.Unlock()

	var errs []error
	for _, sc := range contexts {
		if err := sc.close(effective); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func sortedDomains(contexts map[string]*SessionContext) []string {
	domains := make([]string, 0, len(contexts))
	for domain := range contexts {
		domains = append(domains, domain)
	}
	sort.Strings(domains)
	return domains
}
