// Package memrepo is an in-memory workspace backend. It backs ephemeral
// daemon runs and keeps tests independent of the on-disk repository.
package memrepo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/chartad/charta/internal/engine"
)

// Repository holds every workspace of one in-memory content repository.
type Repository struct {
	mu         sync.Mutex
	workspaces map[string]*workspace
}

type workspace struct {
	mu    sync.Mutex
	nodes map[string]engine.Node
}

// NewRepository constructs an empty in-memory repository.
func NewRepository() *Repository {
	return &Repository{workspaces: make(map[string]*workspace)}
}

// Factory returns an engine factory that binds workspaces of this repository.
func (r *Repository) Factory() engine.Factory {
	return func(_ context.Context, cfg engine.Config) (engine.Engine, error) {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return &memEngine{ws: r.workspace(cfg.Workspace), cfg: cfg}, nil
	}
}

func (r *Repository) workspace(name string) *workspace {
	r.mu.Lock()
	defer r.mu.Unlock()
	ws, ok := r.workspaces[name]
	if !ok {
		ws = &workspace{nodes: make(map[string]engine.Node)}
		r.workspaces[name] = ws
	}
	return ws
}

type memEngine struct {
	ws  *workspace
	cfg engine.Config
}

func (e *memEngine) Workspace() string {
	return e.cfg.Workspace
}

func (e *memEngine) OpenSession(ctx context.Context) (engine.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memSession{
		eng:      e,
		entities: e.cfg.EntitySet(),
		pending:  make(map[string]engine.Node),
		removed:  make(map[string]struct{}),
	}, nil
}

func (e *memEngine) Close() error {
	return nil
}

// memSession buffers mutations until Save applies them to the shared
// workspace in one step. Save and Close both end the session; Save applies
// the buffered mutations, Close discards them.
type memSession struct {
	eng      *memEngine
	entities map[string]struct{}

	mu      sync.Mutex
	pending map[string]engine.Node
	removed map[string]struct{}
	closed  bool
}

func (s *memSession) Workspace() string {
	return s.eng.cfg.Workspace
}

func (s *memSession) Store(node engine.Node) (engine.Node, error) {
	if err := node.Validate(); err != nil {
		return engine.Node{}, err
	}
	if _, ok := s.entities[node.Type]; !ok {
		return engine.Node{}, fmt.Errorf("%w: %q in workspace %q", engine.ErrUnknownEntity, node.Type, s.Workspace())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return engine.Node{}, engine.ErrSessionClosed
	}
	if node.ID == "" {
		node.ID = uuid.NewString()
	}
	s.pending[node.Path] = node
	delete(s.removed, node.Path)
	return node, nil
}

func (s *memSession) Load(path string) (engine.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return engine.Node{}, engine.ErrSessionClosed
	}
	if _, gone := s.removed[path]; gone {
		return engine.Node{}, fmt.Errorf("%w: %s", engine.ErrNodeNotFound, path)
	}
	if node, ok := s.pending[path]; ok {
		return node, nil
	}
	s.eng.ws.mu.Lock()
	node, ok := s.eng.ws.nodes[path]
	s.eng.ws.mu.Unlock()
	if !ok {
		return engine.Node{}, fmt.Errorf("%w: %s", engine.ErrNodeNotFound, path)
	}
	return node, nil
}

func (s *memSession) List(pathPrefix string) ([]engine.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, engine.ErrSessionClosed
	}

	merged := make(map[string]engine.Node)
	s.eng.ws.mu.Lock()
	for path, node := range s.eng.ws.nodes {
		merged[path] = node
	}
	s.eng.ws.mu.Unlock()
	for path := range s.removed {
		delete(merged, path)
	}
	for path, node := range s.pending {
		merged[path] = node
	}

	list := make([]engine.Node, 0, len(merged))
	for path, node := range merged {
		if pathPrefix == "" || strings.HasPrefix(path, pathPrefix) {
			list = append(list, node)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Path < list[j].Path
	})
	return list, nil
}

func (s *memSession) Remove(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return engine.ErrSessionClosed
	}
	delete(s.pending, path)
	s.removed[path] = struct{}{}
	return nil
}

func (s *memSession) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return engine.ErrSessionClosed
	}
	s.eng.ws.mu.Lock()
	for path := range s.removed {
		delete(s.eng.ws.nodes, path)
	}
	for path, node := range s.pending {
		s.eng.ws.nodes[path] = node
	}
	s.eng.ws.mu.Unlock()
	s.closed = true
	s.pending = nil
	s.removed = nil
	return nil
}

func (s *memSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return engine.ErrSessionClosed
	}
	s.closed = true
	s.pending = nil
	s.removed = nil
	return nil
}
