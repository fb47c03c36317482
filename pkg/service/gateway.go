package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"

	"github.com/grovetools/jana/pkg/journal"
	"github.com/grovetools/jana/pkg/remote"
	"github.com/grovetools/jana/pkg/tree"
)

// TreeRemote is the part of the remote store that structural edits need.
type TreeRemote interface {
	ListTree(ctx context.Context, sess remote.Session) ([]tree.Node, error)
	AddFolder(ctx context.Context, sess remote.Session, parentID, name string) (tree.Node, error)
	AddFile(ctx context.Context, sess remote.Session, parentID, name string) (tree.Node, error)
	DeleteFolder(ctx context.Context, sess remote.Session, folderID string) (remote.DeleteResult, error)
	DeleteFile(ctx context.Context, sess remote.Session, fileID string) (remote.DeleteResult, error)
}

// Recorder stores confirmed mutations.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) (journal.Entry, error)
}

// Gateway is the only path by which user edits reach the tree. The local
// store changes only after the remote store has confirmed an operation, so a
// failed call leaves the tree exactly as it was.
type Gateway struct {
	store     *tree.Store
	remote    TreeRemote
	selection *Selection
	journal   Recorder
	logger    *logrus.Entry
}

// NewGateway wires a gateway. rec may be nil.
func NewGateway(store *tree.Store, r TreeRemote, selection *Selection, rec Recorder, logger *logrus.Entry) *Gateway {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	return &Gateway{
		store:     store,
		remote:    r,
		selection: selection,
		journal:   rec,
		logger:    logger.WithField("sub-component", "gateway"),
	}
}

// Refresh replaces the local forest with the remote one.
func (g *Gateway) Refresh(ctx context.Context, sess remote.Session) error {
	nodes, err := g.remote.ListTree(ctx, sess)
	if err != nil {
		return fmt.Errorf("refresh tree: %w", err)
	}
	if err := g.store.Load(nodes); err != nil {
		return fmt.Errorf("refresh tree: %w", err)
	}
	g.selection.reconcile()
	g.logger.WithField("nodes", g.store.Len()).Debug("Tree refreshed")
	return nil
}

// AddFolder creates a folder named name under parentID, or at the root when
// parentID is empty.
func (g *Gateway) AddFolder(ctx context.Context, sess remote.Session, parentID, name string) (tree.Node, error) {
	name = normalizeName(name)
	if name == "" {
		return tree.Node{}, fmt.Errorf("add folder: %w", ErrInvalidName)
	}
	if parentID != "" {
		parent, ok := g.store.Find(parentID)
		if !ok {
			return tree.Node{}, fmt.Errorf("add folder: parent %q: %w", parentID, tree.ErrNotFound)
		}
		if parent.Kind != tree.KindFolder {
			return tree.Node{}, fmt.Errorf("add folder: parent %q is a %s: %w", parentID, parent.Kind, tree.ErrInvalidTarget)
		}
	}

	created, err := g.remote.AddFolder(ctx, sess, parentID, name)
	if err != nil {
		return tree.Node{}, fmt.Errorf("add folder %q: %w", name, err)
	}
	created.Kind = tree.KindFolder
	created.Children = []tree.Node{}
	if created.Label == "" {
		created.Label = name
	}

	stored, err := g.store.Insert(parentID, created)
	if err != nil {
		return tree.Node{}, fmt.Errorf("add folder %q: %w", name, err)
	}
	g.record(ctx, sess, journal.Entry{Op: journal.OpAddFolder, NodeID: stored.ID, Label: stored.Label, ParentID: parentID})
	return stored, nil
}

// AddDocument creates an empty document named name under the folder parentID.
func (g *Gateway) AddDocument(ctx context.Context, sess remote.Session, parentID, name string) (tree.Node, error) {
	name = normalizeName(name)
	if name == "" {
		return tree.Node{}, fmt.Errorf("add document: %w", ErrInvalidName)
	}
	if parentID == "" {
		return tree.Node{}, fmt.Errorf("add document: documents need a parent folder: %w", tree.ErrInvalidTarget)
	}
	parent, ok := g.store.Find(parentID)
	if !ok {
		return tree.Node{}, fmt.Errorf("add document: parent %q: %w: %w", parentID, tree.ErrInvalidTarget, tree.ErrNotFound)
	}
	if parent.Kind != tree.KindFolder {
		return tree.Node{}, fmt.Errorf("add document: parent %q is a %s: %w", parentID, parent.Kind, tree.ErrInvalidTarget)
	}

	created, err := g.remote.AddFile(ctx, sess, parentID, name)
	if err != nil {
		return tree.Node{}, fmt.Errorf("add document %q: %w", name, err)
	}
	created.Kind = tree.KindDocument
	created.Children = nil
	if created.Label == "" {
		created.Label = name
	}

	stored, err := g.store.Insert(parentID, created)
	if err != nil {
		return tree.Node{}, fmt.Errorf("add document %q: %w", name, err)
	}
	g.record(ctx, sess, journal.Entry{Op: journal.OpAddDocument, NodeID: stored.ID, Label: stored.Label, ParentID: parentID})
	return stored, nil
}

// DeleteNode deletes nodeID, or the current selection when nodeID is empty.
// The remote store moves deleted nodes to its trash and the local tree does
// the same. Without a local trash node the whole tree is reloaded instead.
func (g *Gateway) DeleteNode(ctx context.Context, sess remote.Session, nodeID string) (remote.DeleteResult, error) {
	if nodeID == "" {
		nodeID = g.selection.SelectedID()
		if nodeID == "" {
			return remote.DeleteResult{}, fmt.Errorf("delete: %w", ErrNothingSelected)
		}
	}
	n, ok := g.store.Find(nodeID)
	if !ok {
		return remote.DeleteResult{}, fmt.Errorf("delete %q: %w", nodeID, tree.ErrNotFound)
	}
	if g.store.InTrash(nodeID) {
		return remote.DeleteResult{}, fmt.Errorf("delete %q: already in trash: %w", nodeID, tree.ErrForbidden)
	}

	subtree := map[string]bool{}
	n.Walk(func(c tree.Node) bool {
		subtree[c.ID] = true
		return true
	})

	var (
		res remote.DeleteResult
		op  journal.Op
		err error
	)
	if n.Kind == tree.KindFolder {
		op = journal.OpDeleteFolder
		res, err = g.remote.DeleteFolder(ctx, sess, nodeID)
	} else {
		op = journal.OpDeleteFile
		res, err = g.remote.DeleteFile(ctx, sess, nodeID)
	}
	if err != nil {
		return remote.DeleteResult{}, fmt.Errorf("delete %q: %w", nodeID, err)
	}

	if _, hasTrash := g.store.Trash(); hasTrash {
		if _, err := g.store.MoveToTrash(nodeID); err != nil {
			g.logger.WithError(err).WithField("node", nodeID).Warn("Local move to trash failed, reloading tree")
			if err := g.Refresh(ctx, sess); err != nil {
				return res, err
			}
		}
	} else if err := g.Refresh(ctx, sess); err != nil {
		return res, err
	}

	if g.selection.clearIf(func(id string) bool { return subtree[id] }) {
		g.logger.WithField("node", nodeID).Debug("Cleared selection of deleted node")
	}
	g.record(ctx, sess, journal.Entry{Op: op, NodeID: nodeID, Label: n.Label, MovedPath: res.MovedPath})
	return res, nil
}

func (g *Gateway) record(ctx context.Context, sess remote.Session, e journal.Entry) {
	fields := logrus.Fields{"op": e.Op, "node": e.NodeID}
	g.logger.WithFields(fields).Info("Mutation confirmed")
	if g.journal == nil {
		return
	}
	e.User = sess.Username
	if _, err := g.journal.Record(ctx, e); err != nil {
		g.logger.WithError(err).WithFields(fields).Warn("Failed to journal mutation")
	}
}

// normalizeName trims surrounding space and composes the name to NFC so that
// visually identical names compare equal.
func normalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}
