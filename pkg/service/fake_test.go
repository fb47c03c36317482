package service

import (
	"context"
	"sync"

	"github.com/grovetools/jana/pkg/journal"
	"github.com/grovetools/jana/pkg/remote"
	"github.com/grovetools/jana/pkg/tree"
)

// fakeRemote is an in-memory remote store. Ids are slash-joined labels, the
// way the original backend derives them from paths.
type fakeRemote struct {
	mu sync.Mutex

	forest []tree.Node
	bodies map[string]string
	calls  map[string]int

	failWith  error
	failOp    string // when set, failWith applies to this op only
	fetchHook func(id string)
}

var _ remote.Client = (*fakeRemote)(nil)

func newFakeRemote(forest ...tree.Node) *fakeRemote {
	return &fakeRemote{forest: forest, bodies: map[string]string{}, calls: map[string]int{}}
}

func (f *fakeRemote) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeRemote) begin(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	if f.failOp != "" && f.failOp != op {
		return nil
	}
	return f.failWith
}

func (f *fakeRemote) ListTree(_ context.Context, _ remote.Session) ([]tree.Node, error) {
	if err := f.begin("list"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]tree.Node, 0, len(f.forest))
	for _, n := range f.forest {
		out = append(out, n.Clone())
	}
	return out, nil
}

func (f *fakeRemote) GetFileContent(_ context.Context, _ remote.Session, id string) (string, error) {
	if err := f.begin("get"); err != nil {
		return "", err
	}
	if f.fetchHook != nil {
		f.fetchHook(id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[id], nil
}

func (f *fakeRemote) SaveFileContent(_ context.Context, _ remote.Session, id, body string) error {
	if err := f.begin("save"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[id] = body
	return nil
}

func (f *fakeRemote) AddFolder(_ context.Context, _ remote.Session, parentID, name string) (tree.Node, error) {
	if err := f.begin("add-folder"); err != nil {
		return tree.Node{}, err
	}
	return tree.NewFolder(joinID(parentID, name), name), nil
}

func (f *fakeRemote) AddFile(_ context.Context, _ remote.Session, parentID, name string) (tree.Node, error) {
	if err := f.begin("add-file"); err != nil {
		return tree.Node{}, err
	}
	return tree.NewDocument(joinID(parentID, name), name), nil
}

func (f *fakeRemote) DeleteFolder(_ context.Context, _ remote.Session, id string) (remote.DeleteResult, error) {
	if err := f.begin("delete-folder"); err != nil {
		return remote.DeleteResult{}, err
	}
	return remote.DeleteResult{Message: "Folder moved to trash", MovedPath: "Trash/" + id}, nil
}

func (f *fakeRemote) DeleteFile(_ context.Context, _ remote.Session, id string) (remote.DeleteResult, error) {
	if err := f.begin("delete-file"); err != nil {
		return remote.DeleteResult{}, err
	}
	return remote.DeleteResult{Message: "File moved to trash", MovedPath: "Trash/" + id}, nil
}

func (f *fakeRemote) Login(_ context.Context, username, password string) (remote.Session, error) {
	if err := f.begin("login"); err != nil {
		return remote.Session{}, err
	}
	if password != "secret" {
		return remote.Session{}, &remote.RemoteError{Op: "login", StatusCode: 401, Detail: "Incorrect username or password"}
	}
	return remote.Session{Token: "jwt-" + username, Username: username}, nil
}

func (f *fakeRemote) Verify(_ context.Context, sess remote.Session) (string, error) {
	if err := f.begin("verify"); err != nil {
		return "", err
	}
	if sess.Token == "" {
		return "", &remote.RemoteError{Op: "verify token", StatusCode: 401, Detail: "Invalid token"}
	}
	return sess.Username, nil
}

func joinID(parentID, name string) string {
	if parentID == "" {
		return name
	}
	return parentID + "/" + name
}

// recorder collects journal entries in memory.
type recorder struct {
	mu      sync.Mutex
	entries []journal.Entry
	err     error
}

func (r *recorder) Record(_ context.Context, e journal.Entry) (journal.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return journal.Entry{}, r.err
	}
	r.entries = append(r.entries, e)
	return e, nil
}

func (r *recorder) ops() []journal.Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]journal.Op, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Op)
	}
	return out
}
