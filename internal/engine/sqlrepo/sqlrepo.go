// Package sqlrepo is the SQLite-backed content repository. Workspaces share
// one database; a mapping session wraps a transaction so save commits and
// close-without-save rolls back.
package sqlrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/chartad/charta/internal/engine"
)

var ErrPathRequired = errors.New("sqlrepo: repository path required")

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	workspace  TEXT NOT NULL,
	path       TEXT NOT NULL,
	id         TEXT NOT NULL,
	type       TEXT NOT NULL,
	properties TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (workspace, path)
);
CREATE INDEX IF NOT EXISTS nodes_by_type ON nodes (workspace, type);
`

// Repository owns the repository database shared by every workspace.
type Repository struct {
	sqlDB *sql.DB
	path  string
}

// Open opens the repository database at the provided path and applies the
// node schema.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrPathRequired
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlrepo: open database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlrepo: ping database: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlrepo: apply schema: %w", err)
	}
	return &Repository{sqlDB: sqlDB, path: path}, nil
}

// Path returns the repository database path.
func (r *Repository) Path() string {
	return r.path
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	if r == nil || r.sqlDB == nil {
		return nil
	}
	return r.sqlDB.Close()
}

// Factory returns an engine factory that binds workspaces of this repository.
func (r *Repository) Factory() engine.Factory {
	return func(_ context.Context, cfg engine.Config) (engine.Engine, error) {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return &sqlEngine{repo: r, cfg: cfg}, nil
	}
}

type sqlEngine struct {
	repo *Repository
	cfg  engine.Config
}

func (e *sqlEngine) Workspace() string {
	return e.cfg.Workspace
}

func (e *sqlEngine) OpenSession(ctx context.Context) (engine.Session, error) {
	tx, err := e.repo.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlrepo: begin session: %w", err)
	}
	return &sqlSession{
		tx:       tx,
		ws:       e.cfg.Workspace,
		entities: e.cfg.EntitySet(),
	}, nil
}

// Close is a no-op; the database belongs to the repository, not the
// workspace binding.
func (e *sqlEngine) Close() error {
	return nil
}

type sqlSession struct {
	tx       *sql.Tx
	ws       string
	entities map[string]struct{}

	mu   sync.Mutex
	done bool
}

func (s *sqlSession) Workspace() string {
	return s.ws
}

func (s *sqlSession) Store(node engine.Node) (engine.Node, error) {
	if err := node.Validate(); err != nil {
		return engine.Node{}, err
	}
	if _, ok := s.entities[node.Type]; !ok {
		return engine.Node{}, fmt.Errorf("%w: %q in workspace %q", engine.ErrUnknownEntity, node.Type, s.ws)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return engine.Node{}, engine.ErrSessionClosed
	}
	if node.ID == "" {
		node.ID = uuid.NewString()
	}
	props, err := json.Marshal(nodeProperties(node))
	if err != nil {
		return engine.Node{}, fmt.Errorf("sqlrepo: encode properties: %w", err)
	}

	_, err = s.tx.Exec(
		`INSERT INTO nodes (workspace, path, id, type, properties) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (workspace, path) DO UPDATE SET id = excluded.id, type = excluded.type, properties = excluded.properties`,
		s.ws, node.Path, node.ID, node.Type, string(props),
	)
	if err != nil {
		return engine.Node{}, fmt.Errorf("sqlrepo: store %s: %w", node.Path, err)
	}
	return node, nil
}

func (s *sqlSession) Load(path string) (engine.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return engine.Node{}, engine.ErrSessionClosed
	}

	row := s.tx.QueryRow(
		`SELECT id, path, type, properties FROM nodes WHERE workspace = ? AND path = ?`,
		s.ws, path,
	)
	node, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Node{}, fmt.Errorf("%w: %s", engine.ErrNodeNotFound, path)
	}
	if err != nil {
		return engine.Node{}, fmt.Errorf("sqlrepo: load %s: %w", path, err)
	}
	return node, nil
}

func (s *sqlSession) List(pathPrefix string) ([]engine.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil, engine.ErrSessionClosed
	}

	rows, err := s.tx.Query(
		`SELECT id, path, type, properties FROM nodes
		 WHERE workspace = ? AND path LIKE ? ESCAPE '\' ORDER BY path`,
		s.ws, likePrefix(pathPrefix),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlrepo: list %q: %w", pathPrefix, err)
	}
	defer rows.Close()

	var list []engine.Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlrepo: list %q: %w", pathPrefix, err)
		}
		list = append(list, node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlrepo: list %q: %w", pathPrefix, err)
	}
	return list, nil
}

func (s *sqlSession) Remove(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return engine.ErrSessionClosed
	}

	if _, err := s.tx.Exec(`DELETE FROM nodes WHERE workspace = ? AND path = ?`, s.ws, path); err != nil {
		return fmt.Errorf("sqlrepo: remove %s: %w", path, err)
	}
	return nil
}

func (s *sqlSession) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return engine.ErrSessionClosed
	}
	s.done = true
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("sqlrepo: save session: %w", err)
	}
	return nil
}

func (s *sqlSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return engine.ErrSessionClosed
	}
	s.done = true
	if err := s.tx.Rollback(); err != nil {
		return fmt.Errorf("sqlrepo: discard session: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (engine.Node, error) {
	var node engine.Node
	var props string
	if err := row.Scan(&node.ID, &node.Path, &node.Type, &props); err != nil {
		return engine.Node{}, err
	}
	if props != "" && props != "{}" {
		if err := json.Unmarshal([]byte(props), &node.Properties); err != nil {
			return engine.Node{}, fmt.Errorf("decode properties of %s: %w", node.Path, err)
		}
	}
	return node, nil
}

func nodeProperties(node engine.Node) map[string]any {
	if node.Properties == nil {
		return map[string]any{}
	}
	return node.Properties
}

func likePrefix(prefix string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	return escaped + "%"
}
