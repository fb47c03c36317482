package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/jana/pkg/content"
	"github.com/grovetools/jana/pkg/remote"
	"github.com/grovetools/jana/pkg/tree"
)

// ContentSync fetches and persists document bodies.
type ContentSync interface {
	Fetch(ctx context.Context, sess remote.Session, documentID string) (content.Content, error)
	Save(ctx context.Context, sess remote.Session, documentID string, c content.Content) error
}

// Selection tracks the single selected node and the content of the selected
// document. It is either idle or holds one node id.
//
// Every transition bumps a generation counter. A fetch started under an older
// generation is dropped when it returns, so a slow response never overwrites
// a newer selection.
type Selection struct {
	store  *tree.Store
	sync   ContentSync
	logger *logrus.Entry

	mu         sync.Mutex
	selected   string
	body       content.Content
	hasContent bool
	generation uint64
}

// NewSelection creates an idle selection over store.
func NewSelection(store *tree.Store, cs ContentSync, logger *logrus.Entry) *Selection {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	return &Selection{store: store, sync: cs, logger: logger.WithField("sub-component", "selection")}
}

// Select makes id the current node. Documents have their content fetched
// once; containers clear the content without a fetch. Selecting the current
// node again does nothing.
func (s *Selection) Select(ctx context.Context, sess remote.Session, id string) error {
	n, ok := s.store.Find(id)
	if !ok {
		return fmt.Errorf("select %q: %w", id, tree.ErrNotFound)
	}

	s.mu.Lock()
	if s.selected == id {
		s.mu.Unlock()
		return nil
	}
	s.generation++
	gen := s.generation
	s.selected = id
	s.body = content.Content{}
	s.hasContent = false
	s.mu.Unlock()

	if n.IsContainer() {
		return nil
	}

	c, err := s.sync.Fetch(ctx, sess, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		s.logger.WithField("document", id).Debug("Discarding superseded fetch")
		return nil
	}
	if err != nil {
		return err
	}
	s.body = c
	s.hasContent = true
	return nil
}

// Clear returns to the idle state.
func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

// SelectedID returns the id of the current node, or "" when idle.
func (s *Selection) SelectedID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Current returns a snapshot of the selected node.
func (s *Selection) Current() (tree.Node, bool) {
	id := s.SelectedID()
	if id == "" {
		return tree.Node{}, false
	}
	return s.store.Find(id)
}

// Content returns the content of the selected document, if it has arrived.
func (s *Selection) Content() (content.Content, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.body, s.hasContent
}

// Save persists c as the body of the selected document and keeps it as the
// current content once the store has confirmed it.
func (s *Selection) Save(ctx context.Context, sess remote.Session, c content.Content) (string, error) {
	s.mu.Lock()
	id, gen := s.selected, s.generation
	s.mu.Unlock()

	if id == "" {
		return "", ErrNothingSelected
	}
	n, ok := s.store.Find(id)
	if !ok {
		return "", fmt.Errorf("save %q: %w", id, tree.ErrNotFound)
	}
	if n.IsContainer() {
		return "", fmt.Errorf("save %q: only documents have content: %w", id, tree.ErrInvalidTarget)
	}
	if err := s.sync.Save(ctx, sess, id, c); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.generation {
		s.body = c
		s.hasContent = true
	}
	return id, nil
}

// clearIf drops the selection when pred holds for the selected id.
func (s *Selection) clearIf(pred func(id string) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == "" || !pred(s.selected) {
		return false
	}
	s.reset()
	return true
}

// reconcile drops a selection whose node vanished from the store.
func (s *Selection) reconcile() {
	s.clearIf(func(id string) bool {
		_, ok := s.store.Find(id)
		return !ok
	})
}

func (s *Selection) reset() {
	s.generation++
	s.selected = ""
	s.body = content.Content{}
	s.hasContent = false
}
