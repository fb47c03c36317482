package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/jana/pkg/journal"
	"github.com/grovetools/jana/pkg/remote"
	"github.com/grovetools/jana/pkg/service"
	"github.com/grovetools/jana/pkg/tree"
)

// fileStore serves the remote store API from memory. Ids are slash paths and
// deletes move nodes under Trash/, like the original backend.
type fileStore struct {
	mu         sync.Mutex
	dirs       map[string]bool
	files      map[string]string
	unreadable map[string]bool
}

func newFileStore() *fileStore {
	return &fileStore{dirs: map[string]bool{"Trash": true}, files: map[string]string{}, unreadable: map[string]bool{}}
}

func (fs *fileStore) put(p, body string, dir bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if dir {
		fs.dirs[p] = true
		return
	}
	fs.files[p] = body
}

func (fs *fileStore) breakReads(p string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.unreadable[p] = true
}

func (fs *fileStore) file(p string) string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.files[p]
}

func (fs *fileStore) forest(prefix string) []tree.Node {
	var names []string
	seen := map[string]bool{}
	collect := func(p string) {
		dir := path.Dir(p)
		if prefix == "" && dir != "." || prefix != "" && dir != prefix {
			return
		}
		if !seen[p] {
			seen[p] = true
			names = append(names, p)
		}
	}
	for d := range fs.dirs {
		collect(d)
	}
	for f := range fs.files {
		collect(f)
	}
	sort.Strings(names)

	nodes := []tree.Node{}
	for _, p := range names {
		if fs.dirs[p] {
			n := tree.NewFolder(p, path.Base(p), fs.forest(p)...)
			nodes = append(nodes, n)
			continue
		}
		nodes = append(nodes, tree.NewDocument(p, path.Base(p)))
	}
	return nodes
}

func (fs *fileStore) move(from string) string {
	to := "Trash/" + path.Base(from)
	for p := range fs.dirs {
		if p == from || strings.HasPrefix(p, from+"/") {
			delete(fs.dirs, p)
			fs.dirs[to+strings.TrimPrefix(p, from)] = true
		}
	}
	for p, body := range fs.files {
		if p == from || strings.HasPrefix(p, from+"/") {
			delete(fs.files, p)
			fs.files[to+strings.TrimPrefix(p, from)] = body
		}
	}
	return to
}

func (fs *fileStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	var body map[string]*string
	if r.Body != nil && r.Method != http.MethodGet {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	str := func(key string) string {
		if v := body[key]; v != nil {
			return *v
		}
		return ""
	}
	reply := func(status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	if r.Header.Get("Authorization") == "Bearer expired" {
		reply(http.StatusUnauthorized, map[string]string{"detail": "Token has expired"})
		return
	}

	switch r.URL.Path {
	case "/api/tree":
		reply(http.StatusOK, fs.forest(""))
	case "/api/add-folder":
		p := path.Join(str("parent_id"), str("folder_name"))
		if fs.dirs[p] {
			reply(http.StatusBadRequest, map[string]string{"detail": "Folder already exists"})
			return
		}
		fs.dirs[p] = true
		reply(http.StatusOK, tree.NewFolder(p, str("folder_name")))
	case "/api/add-file":
		p := path.Join(str("parent_id"), str("file_name"))
		fs.files[p] = ""
		reply(http.StatusOK, tree.NewDocument(p, str("file_name")))
	case "/api/delete-folder", "/api/delete-file":
		id := str("folder_id") + str("file_id")
		reply(http.StatusOK, map[string]string{"message": "Moved to trash", "moved_path": fs.move(id)})
	case "/api/get-file-content":
		if fs.unreadable[str("file_path")] {
			reply(http.StatusInternalServerError, map[string]string{"detail": "corrupt file"})
			return
		}
		body, ok := fs.files[str("file_path")]
		if !ok {
			reply(http.StatusNotFound, map[string]string{"detail": "File not found"})
			return
		}
		reply(http.StatusOK, map[string]string{"content": body})
	case "/api/save-file-content":
		fs.files[str("file_path")] = str("content")
		reply(http.StatusOK, map[string]string{"message": "File saved successfully"})
	default:
		reply(http.StatusNotFound, map[string]string{"detail": "Not Found"})
	}
}

func newTestService(t *testing.T) (*service.Service, *fileStore) {
	t.Helper()
	store := newFileStore()
	server := httptest.NewServer(store)
	t.Cleanup(server.Close)

	dir := t.TempDir()
	j, err := journal.Open(filepath.Join(dir, "journal.db"))
	require.NoError(t, err)
	client := remote.NewHTTPClient(server.URL, remote.Options{HTTPClient: server.Client()})
	svc := service.NewWithClient(&service.Config{
		BaseURL:     server.URL,
		DataDir:     dir,
		SessionFile: filepath.Join(dir, "session.yaml"),
		Token:       "tok",
	}, client, j, nil)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, store
}

func run(t *testing.T, c *cobra.Command, stdin string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	c.SetOut(&out)
	c.SetErr(&out)
	c.SetIn(strings.NewReader(stdin))
	if args == nil {
		args = []string{}
	}
	c.SetArgs(args)
	require.NoError(t, c.Execute())
	return out.String()
}

func TestCommandsRoundTrip(t *testing.T) {
	svc, store := newTestService(t)

	out := run(t, NewMkdirCmd(&svc), "", "Notes")
	assert.Contains(t, out, "Created folder Notes [Notes]")

	out = run(t, NewNewCmd(&svc), "", "--stdin=false", "Notes", "todo.txt")
	assert.Contains(t, out, "[Notes/todo.txt]")

	out = run(t, NewSaveCmd(&svc), `{"items": ["milk"]}`, "Notes/todo.txt")
	assert.Contains(t, out, "structured")
	assert.Equal(t, `{"items":["milk"]}`, store.file("Notes/todo.txt"))

	out = run(t, NewShowCmd(&svc), "", "--raw", "Notes/todo.txt")
	assert.Equal(t, `{"items":["milk"]}`, out)

	out = run(t, NewShowCmd(&svc), "", "Notes")
	assert.Contains(t, out, "Folder")
	assert.Contains(t, out, "CHILDREN")

	out = run(t, NewRmCmd(&svc), "", "Notes/todo.txt")
	assert.Contains(t, out, "Trash/todo.txt")
	assert.True(t, svc.Tree.InTrash("Notes/todo.txt"))

	out = run(t, NewTreeCmd(&svc), "")
	assert.Equal(t, "Notes/\nTrash/\n  todo.txt\n", out)

	out = run(t, NewLogCmd(&svc), "")
	assert.Contains(t, out, "delete-file")
	assert.Contains(t, out, "-> Trash/todo.txt")
	assert.Contains(t, out, "add-folder")
}

func TestSaveOverwritesUnreadableDocument(t *testing.T) {
	svc, store := newTestService(t)
	store.put("Notes", "", true)
	store.put("Notes/todo.txt", "old", false)
	store.breakReads("Notes/todo.txt")

	out := run(t, NewSaveCmd(&svc), "buy milk", "Notes/todo.txt")
	assert.Contains(t, out, "Saved Notes/todo.txt (text")
	assert.Equal(t, "buy milk", store.file("Notes/todo.txt"))

	store.breakReads("Notes/new.txt")
	out = run(t, NewNewCmd(&svc), `{"done": false}`, "--stdin", "Notes", "new.txt")
	assert.Contains(t, out, "[Notes/new.txt]")
	assert.Equal(t, `{"done":false}`, store.file("Notes/new.txt"))

	history, err := svc.History(context.Background(), journal.Filter{Op: journal.OpSave})
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestTreeFormats(t *testing.T) {
	svc, store := newTestService(t)
	store.put("Notes", "", true)
	store.put("Notes/a.txt", "hello", false)

	var roots []tree.Node
	require.NoError(t, json.Unmarshal([]byte(run(t, NewTreeCmd(&svc), "", "--format", "json")), &roots))
	require.Len(t, roots, 2)
	assert.Equal(t, tree.KindTrash, roots[1].Kind)

	out := run(t, NewTreeCmd(&svc), "", "--format", "yaml")
	assert.Contains(t, out, "type: file")

	out = run(t, NewTreeCmd(&svc), "", "--ids")
	assert.Contains(t, out, "a.txt  [Notes/a.txt]")

	c := NewTreeCmd(&svc)
	c.SetOut(&bytes.Buffer{})
	c.SetArgs([]string{"--format", "xml"})
	assert.Error(t, c.Execute())
}

func TestRemoteDetailReachesUser(t *testing.T) {
	svc, store := newTestService(t)
	store.put("Notes", "", true)

	c := NewMkdirCmd(&svc)
	c.SetOut(&bytes.Buffer{})
	c.SetErr(&bytes.Buffer{})
	c.SetArgs([]string{"Notes"})
	err := c.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Folder already exists")
}

func TestExplainPointsToNextStep(t *testing.T) {
	svc, _ := newTestService(t)
	svc.Config.Token = "expired"

	c := NewTreeCmd(&svc)
	c.SetOut(&bytes.Buffer{})
	c.SetErr(&bytes.Buffer{})
	c.SetArgs([]string{})
	err := Explain(c.Execute())
	require.Error(t, err)
	assert.True(t, remote.IsUnauthorized(err))
	assert.Contains(t, err.Error(), "Token has expired")
	assert.Contains(t, err.Error(), "run 'jana login'")

	gone := Explain(&remote.RemoteError{Op: "get file content", StatusCode: http.StatusNotFound, Detail: "File not found"})
	assert.True(t, remote.IsNotFound(gone))
	assert.Contains(t, gone.Error(), "jana tree")

	other := errors.New("boom")
	assert.Same(t, other, Explain(other))
	assert.NoError(t, Explain(nil))
}

func TestKindTitleAndOrder(t *testing.T) {
	assert.Equal(t, "Folder", kindTitle(tree.KindFolder))
	assert.Equal(t, "Document", kindTitle(tree.KindDocument))
	assert.Equal(t, "Trash", kindTitle(tree.KindTrash))

	ordered := displayOrder([]tree.Node{tree.NewTrash("t"), tree.NewFolder("a", "A"), tree.NewDocument("b", "B")})
	assert.Equal(t, []string{"a", "b", "t"}, []string{ordered[0].ID, ordered[1].ID, ordered[2].ID})

	var out bytes.Buffer
	printTree(&out, []tree.Node{tree.NewFolder("a", "A", tree.NewDocument("a/b", "b"))}, false)
	assert.Equal(t, "A/\n  b\n", out.String())
}

func TestLoginReadsCredentialsFromInput(t *testing.T) {
	store := newFileStore()
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("password") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"Incorrect username or password"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"jwt","token_type":"bearer"}`))
	})
	mux.HandleFunc("/protected", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"ok","user":"dominik"}`))
	})
	mux.Handle("/", store)
	server := httptest.NewServer(mux)
	defer server.Close()

	dir := t.TempDir()
	svc := service.NewWithClient(&service.Config{
		BaseURL:     server.URL,
		DataDir:     dir,
		SessionFile: filepath.Join(dir, "session.yaml"),
	}, remote.NewHTTPClient(server.URL, remote.Options{HTTPClient: server.Client()}), nil, nil)

	out := run(t, NewLoginCmd(&svc), "dominik\nsecret\n")
	assert.Contains(t, out, "Logged in as dominik")

	out = run(t, NewWhoamiCmd(&svc), "")
	assert.Contains(t, out, "dominik")

	out = run(t, NewLogoutCmd(&svc), "")
	assert.Contains(t, out, "Logged out")

	c := NewLoginCmd(&svc)
	c.SetOut(&bytes.Buffer{})
	c.SetErr(&bytes.Buffer{})
	c.SetIn(strings.NewReader(""))
	c.SetArgs([]string{"-u", "dominik", "--password", "wrong"})
	err := c.Execute()
	require.Error(t, err)
	assert.True(t, remote.IsUnauthorized(err))
}
