package mapping

import (
	"context"
	"fmt"
	"sync"

	"github.com/chartad/charta/internal/engine"
)

type fakeSession struct {
	ws     string
	saved  bool
	closed bool

	saveErr error
}

func (f *fakeSession) Workspace() string { return f.ws }

func (f *fakeSession) Store(node engine.Node) (engine.Node, error) {
	if f.done() {
		return engine.Node{}, engine.ErrSessionClosed
	}
	return node, nil
}

func (f *fakeSession) Load(path string) (engine.Node, error) {
	return engine.Node{}, fmt.Errorf("%w: %s", engine.ErrNodeNotFound, path)
}

func (f *fakeSession) List(string) ([]engine.Node, error) { return nil, nil }

func (f *fakeSession) Remove(string) error { return nil }

func (f *fakeSession) Save() error {
	if f.done() {
		return engine.ErrSessionClosed
	}
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = true
	return nil
}

func (f *fakeSession) Close() error {
	if f.done() {
		return engine.ErrSessionClosed
	}
	f.closed = true
	return nil
}

func (f *fakeSession) done() bool { return f.saved || f.closed }

type fakeEngine struct {
	cfg engine.Config

	mu       sync.Mutex
	sessions []*fakeSession
	closed   bool

	openErr error
	saveErr error
}

func (f *fakeEngine) Workspace() string { return f.cfg.Workspace }

func (f *fakeEngine) OpenSession(context.Context) (engine.Session, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	session := &fakeSession{ws: f.cfg.Workspace, saveErr: f.saveErr}
	f.sessions = append(f.sessions, session)
	return session, nil
}

func (f *fakeEngine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeEngine) sessionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

func (f *fakeEngine) session(i int) *fakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[i]
}

// fakeBackend hands out fake engines per workspace and remembers them so
// tests can inspect session fate.
type fakeBackend struct {
	mu        sync.Mutex
	engines   map[string]*fakeEngine
	buildErrs map[string]error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{engines: make(map[string]*fakeEngine), buildErrs: make(map[string]error)}
}

func (b *fakeBackend) factory() engine.Factory {
	return func(_ context.Context, cfg engine.Config) (engine.Engine, error) {
		b.mu.Lock()
		defer b.mu.Unlock()
		if err := b.buildErrs[cfg.Workspace]; err != nil {
			return nil, err
		}
		eng := &fakeEngine{cfg: cfg}
		b.engines[cfg.Workspace] = eng
		return eng, nil
	}
}

func (b *fakeBackend) engine(workspace string) *fakeEngine {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.engines[workspace]
}

type hookRecorder struct {
	mu     sync.Mutex
	events []string
}

func (h *hookRecorder) OnOpenSession(sc *SessionContext) {
	h.record("open:" + sc.Domain() + ":" + string(sc.Scope()))
}

func (h *hookRecorder) OnCloseSession(sc *SessionContext) {
	h.record("close:" + sc.Domain() + ":" + string(sc.Scope()))
}

func (h *hookRecorder) record(event string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
}

func (h *hookRecorder) snapshot() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.events))
	copy(out, h.events)
	return out
}

type listenerRecorder struct {
	mu       sync.Mutex
	before   int
	outcomes []SynchronizationOutcome
}

func (l *listenerRecorder) BeforeSynchronization() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.before++
}

func (l *listenerRecorder) AfterSynchronization(outcome SynchronizationOutcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outcomes = append(l.outcomes, outcome)
}

func mustLifeCycle(cfg LifeCycleConfig) *LifeCycle {
	lc, err := NewLifeCycle(cfg)
	if err != nil {
		panic(err)
	}
	return lc
}
