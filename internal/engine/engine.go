package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrWorkspaceRequired = errors.New("engine: workspace name required")
	ErrNoEntities        = errors.New("engine: at least one entity type required")
	ErrInvalidEntity     = errors.New("engine: invalid entity type name")
	ErrUnknownEntity     = errors.New("engine: unknown entity type")
	ErrNodeNotFound      = errors.New("engine: node not found")
	ErrInvalidNode       = errors.New("engine: invalid node")
	ErrSessionClosed     = errors.New("engine: session closed")
)

// Node is one mapped content item stored inside a workspace.
type Node struct {
	ID         string         `json:"id"`
	Path       string         `json:"path"`
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Validate checks the fields a session needs before it can store a node.
// The ID may be empty; backends assign one on first store.
func (n Node) Validate() error {
	if strings.TrimSpace(n.Path) == "" {
		return fmt.Errorf("%w: missing path", ErrInvalidNode)
	}
	if !strings.HasPrefix(n.Path, "/") {
		return fmt.Errorf("%w: path %q must be absolute", ErrInvalidNode, n.Path)
	}
	if strings.TrimSpace(n.Type) == "" {
		return fmt.Errorf("%w: missing type", ErrInvalidNode)
	}
	return nil
}

// Session is one unit of work against a workspace. Mutations stay invisible
// to other sessions until Save commits them; Close discards them. Save and
// Close both end the session, and every later call fails with
// ErrSessionClosed.
type Session interface {
	Workspace() string
	Store(node Node) (Node, error)
	Load(path string) (Node, error)
	List(pathPrefix string) ([]Node, error)
	Remove(path string) error
	Save() error
	Close() error
}

// Engine is a content-mapping engine bound to a single repository workspace.
type Engine interface {
	Workspace() string
	OpenSession(ctx context.Context) (Session, error)
	Close() error
}

// Config describes one workspace binding handed to a Factory.
type Config struct {
	Workspace string
	Entities  []string
}

// Validate checks the workspace name and entity type name formats.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Workspace) == "" {
		return ErrWorkspaceRequired
	}
	if !ValidTypeName(c.Workspace) {
		return fmt.Errorf("%w: invalid workspace name %q", ErrWorkspaceRequired, c.Workspace)
	}
	if len(c.Entities) == 0 {
		return ErrNoEntities
	}
	for _, entity := range c.Entities {
		if !ValidTypeName(entity) {
			return fmt.Errorf("%w: %q", ErrInvalidEntity, entity)
		}
	}
	return nil
}

// EntitySet returns the registered entity types as a lookup set.
func (c Config) EntitySet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.Entities))
	for _, entity := range c.Entities {
		set[entity] = struct{}{}
	}
	return set
}

// Factory builds an engine bound to the configured workspace.
type Factory func(ctx context.Context, cfg Config) (Engine, error)

// ValidTypeName reports whether a workspace or entity type name is made of
// lowercase dotted segments, e.g. "wiki" or "wiki.page".
func ValidTypeName(name string) bool {
	if name == "" {
		return false
	}
	lastSep := true
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			lastSep = false
		case r == '.':
			if lastSep {
				return false
			}
			lastSep = true
		default:
			return false
		}
	}
	return !lastSep
}
