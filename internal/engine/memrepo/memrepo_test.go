package memrepo

import (
	"context"
	"errors"
	"testing"

	"github.com/chartad/charta/internal/engine"
	"github.com/chartad/charta/internal/testutil/testlog"
)

func openWorkspace(t *testing.T, repo *Repository, workspace string, entities ...string) engine.Engine {
	t.Helper()
	eng, err := repo.Factory()(context.Background(), engine.Config{Workspace: workspace, Entities: entities})
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	return eng
}

func TestSaveMakesNodesVisible(t *testing.T) {
	testlog.Start(t)
	repo := NewRepository()
	eng := openWorkspace(t, repo, "collaboration", "wiki.page")

	first, err := eng.OpenSession(context.Background())
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	stored, err := first.Store(engine.Node{Path: "/wiki/home", Type: "wiki.page", Properties: map[string]any{"title": "Home"}})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if stored.ID == "" {
		t.Fatalf("expected generated node id")
	}

	// Not visible to a parallel session until save.
	parallel, err := eng.OpenSession(context.Background())
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if _, err := parallel.Load("/wiki/home"); !errors.Is(err, engine.ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound before save, got %v", err)
	}
	if err := parallel.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := first.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	second, err := eng.OpenSession(context.Background())
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	node, err := second.Load("/wiki/home")
	if err != nil {
		t.Fatalf("load after save: %v", err)
	}
	if node.ID != stored.ID || node.Properties["title"] != "Home" {
		t.Fatalf("unexpected node: %+v", node)
	}
}

func TestCloseDiscardsPending(t *testing.T) {
	testlog.Start(t)
	repo := NewRepository()
	eng := openWorkspace(t, repo, "collaboration", "wiki.page")

	session, err := eng.OpenSession(context.Background())
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if _, err := session.Store(engine.Node{Path: "/wiki/draft", Type: "wiki.page"}); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	check, err := eng.OpenSession(context.Background())
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if _, err := check.Load("/wiki/draft"); !errors.Is(err, engine.ErrNodeNotFound) {
		t.Fatalf("expected discard, got %v", err)
	}
}

func TestUnknownEntityRejected(t *testing.T) {
	testlog.Start(t)
	repo := NewRepository()
	eng := openWorkspace(t, repo, "collaboration", "wiki.page")

	session, err := eng.OpenSession(context.Background())
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if _, err := session.Store(engine.Node{Path: "/x", Type: "portal.preferences"}); !errors.Is(err, engine.ErrUnknownEntity) {
		t.Fatalf("expected ErrUnknownEntity, got %v", err)
	}
}

func TestListMergesPendingSortedByPath(t *testing.T) {
	testlog.Start(t)
	repo := NewRepository()
	eng := openWorkspace(t, repo, "collaboration", "wiki.page")

	seed, err := eng.OpenSession(context.Background())
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	for _, path := range []string{"/wiki/b", "/wiki/a"} {
		if _, err := seed.Store(engine.Node{Path: path, Type: "wiki.page"}); err != nil {
			t.Fatalf("store %s: %v", path, err)
		}
	}
	if err := seed.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	session, err := eng.OpenSession(context.Background())
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if _, err := session.Store(engine.Node{Path: "/wiki/c", Type: "wiki.page"}); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := session.Remove("/wiki/b"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	list, err := session.List("/wiki/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Path != "/wiki/a" || list[1].Path != "/wiki/c" {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestWorkspacesAreIsolated(t *testing.T) {
	testlog.Start(t)
	repo := NewRepository()
	collab := openWorkspace(t, repo, "collaboration", "wiki.page")
	portal := openWorkspace(t, repo, "portal_system", "wiki.page")

	session, err := collab.OpenSession(context.Background())
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if _, err := session.Store(engine.Node{Path: "/shared", Type: "wiki.page"}); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := session.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	other, err := portal.OpenSession(context.Background())
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if _, err := other.Load("/shared"); !errors.Is(err, engine.ErrNodeNotFound) {
		t.Fatalf("expected workspace isolation, got %v", err)
	}
}

func TestSessionEndsExactlyOnce(t *testing.T) {
	testlog.Start(t)
	repo := NewRepository()
	eng := openWorkspace(t, repo, "collaboration", "wiki.page")

	session, err := eng.OpenSession(context.Background())
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	if err := session.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := session.Close(); !errors.Is(err, engine.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed after save, got %v", err)
	}
	if _, err := session.Store(engine.Node{Path: "/x", Type: "wiki.page"}); !errors.Is(err, engine.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}
