package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/jana/pkg/content"
	"github.com/grovetools/jana/pkg/remote"
	"github.com/grovetools/jana/pkg/tree"
)

var sess = remote.Session{Token: "jwt", Username: "dominik"}

type fixture struct {
	store  *tree.Store
	remote *fakeRemote
	sel    *Selection
	gw     *Gateway
	rec    *recorder
}

func newFixture(t *testing.T, forest ...tree.Node) *fixture {
	t.Helper()
	fr := newFakeRemote(forest...)
	store := tree.NewStore()
	sel := NewSelection(store, content.NewSync(fr, nil), nil)
	rec := &recorder{}
	gw := NewGateway(store, fr, sel, rec, nil)
	require.NoError(t, gw.Refresh(context.Background(), sess))
	return &fixture{store: store, remote: fr, sel: sel, gw: gw, rec: rec}
}

func workspace() []tree.Node {
	return []tree.Node{
		tree.NewFolder("Notes", "Notes",
			tree.NewDocument("Notes/todo.txt", "todo.txt"),
			tree.NewDocument("Notes/data.json", "data.json"),
			tree.NewFolder("Notes/Work", "Work"),
		),
		tree.NewTrash("Trash"),
	}
}

func TestSelectDocumentFetchesOnce(t *testing.T) {
	f := newFixture(t, workspace()...)
	f.remote.bodies["Notes/data.json"] = `{"a":1}`

	require.NoError(t, f.sel.Select(context.Background(), sess, "Notes/data.json"))
	assert.Equal(t, 1, f.remote.count("get"))

	c, ok := f.sel.Content()
	require.True(t, ok)
	assert.True(t, c.IsStructured())

	// selecting the same node again is a no-op
	require.NoError(t, f.sel.Select(context.Background(), sess, "Notes/data.json"))
	assert.Equal(t, 1, f.remote.count("get"))

	n, ok := f.sel.Current()
	require.True(t, ok)
	assert.Equal(t, "data.json", n.Label)
}

func TestSelectFolderClearsContent(t *testing.T) {
	f := newFixture(t, workspace()...)
	f.remote.bodies["Notes/todo.txt"] = "buy milk"

	require.NoError(t, f.sel.Select(context.Background(), sess, "Notes/todo.txt"))
	require.NoError(t, f.sel.Select(context.Background(), sess, "Notes/Work"))

	assert.Equal(t, 1, f.remote.count("get"))
	assert.Equal(t, "Notes/Work", f.sel.SelectedID())
	_, ok := f.sel.Content()
	assert.False(t, ok)

	require.NoError(t, f.sel.Select(context.Background(), sess, "Trash"))
	assert.Equal(t, 1, f.remote.count("get"))
}

func TestSelectMissingKeepsState(t *testing.T) {
	f := newFixture(t, workspace()...)
	f.remote.bodies["Notes/todo.txt"] = "buy milk"
	require.NoError(t, f.sel.Select(context.Background(), sess, "Notes/todo.txt"))

	err := f.sel.Select(context.Background(), sess, "nope")
	assert.ErrorIs(t, err, tree.ErrNotFound)
	assert.Equal(t, "Notes/todo.txt", f.sel.SelectedID())
	c, ok := f.sel.Content()
	require.True(t, ok)
	assert.Equal(t, "buy milk", c.Value())
}

func TestSelectFetchFailure(t *testing.T) {
	f := newFixture(t, workspace()...)
	f.remote.failWith = &remote.NetworkError{Op: "get file content", Err: errors.New("connection refused")}

	err := f.sel.Select(context.Background(), sess, "Notes/todo.txt")
	var netErr *remote.NetworkError
	require.True(t, errors.As(err, &netErr))

	assert.Equal(t, "Notes/todo.txt", f.sel.SelectedID())
	_, ok := f.sel.Content()
	assert.False(t, ok)
}

func TestSelectDiscardsSupersededFetch(t *testing.T) {
	f := newFixture(t, workspace()...)
	f.remote.bodies["Notes/todo.txt"] = "stale"
	f.remote.bodies["Notes/data.json"] = `{"fresh":true}`

	started := make(chan struct{})
	release := make(chan struct{})
	f.remote.fetchHook = func(id string) {
		if id == "Notes/todo.txt" {
			close(started)
			<-release
		}
	}

	slow := make(chan error, 1)
	go func() {
		slow <- f.sel.Select(context.Background(), sess, "Notes/todo.txt")
	}()
	<-started

	require.NoError(t, f.sel.Select(context.Background(), sess, "Notes/data.json"))
	close(release)
	require.NoError(t, <-slow)

	assert.Equal(t, "Notes/data.json", f.sel.SelectedID())
	c, ok := f.sel.Content()
	require.True(t, ok)
	assert.Equal(t, map[string]any{"fresh": true}, c.Value())
}

func TestClear(t *testing.T) {
	f := newFixture(t, workspace()...)
	require.NoError(t, f.sel.Select(context.Background(), sess, "Notes/todo.txt"))
	f.sel.Clear()

	_, ok := f.sel.Current()
	assert.False(t, ok)
	_, ok = f.sel.Content()
	assert.False(t, ok)
	assert.Empty(t, f.sel.SelectedID())
}

func TestSelectionSave(t *testing.T) {
	f := newFixture(t, workspace()...)

	_, err := f.sel.Save(context.Background(), sess, content.Text("x"))
	assert.ErrorIs(t, err, ErrNothingSelected)

	require.NoError(t, f.sel.Select(context.Background(), sess, "Notes/Work"))
	_, err = f.sel.Save(context.Background(), sess, content.Text("x"))
	assert.ErrorIs(t, err, tree.ErrInvalidTarget)

	require.NoError(t, f.sel.Select(context.Background(), sess, "Notes/todo.txt"))
	id, err := f.sel.Save(context.Background(), sess, content.Text("buy bread"))
	require.NoError(t, err)
	assert.Equal(t, "Notes/todo.txt", id)
	assert.Equal(t, "buy bread", f.remote.bodies["Notes/todo.txt"])

	c, ok := f.sel.Content()
	require.True(t, ok)
	assert.Equal(t, "buy bread", c.Value())

	f.remote.failWith = &remote.RemoteError{Op: "save file content", StatusCode: 500, Detail: "disk full"}
	_, err = f.sel.Save(context.Background(), sess, content.Text("lost"))
	assert.ErrorIs(t, err, content.ErrSaveFailed)
	c, _ = f.sel.Content()
	assert.Equal(t, "buy bread", c.Value())
}
