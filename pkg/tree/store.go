package tree

import (
	"fmt"
	"sync"
)

// record is the arena entry behind a Node. Children are kept as ids so that
// lookups, inserts and removals are index operations.
type record struct {
	id       string
	label    string
	kind     Kind
	parent   string   // "" for roots
	children []string // nil for documents
}

// Store owns the canonical in-memory forest. Every read hands out deep copies,
// so a Node obtained earlier is a stable snapshot.
type Store struct {
	mu      sync.RWMutex
	nodes   map[string]*record
	roots   []string
	trashID string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{nodes: map[string]*record{}}
}

// Load replaces the whole forest. The payload is validated before anything is
// swapped in, so a rejected payload leaves the previous forest untouched.
func (s *Store) Load(forest []Node) error {
	nodes := map[string]*record{}
	roots := make([]string, 0, len(forest))

	explicitTrash := false
	for _, root := range forest {
		root.Walk(func(n Node) bool {
			explicitTrash = explicitTrash || n.Kind == KindTrash
			return !explicitTrash
		})
	}

	trashID := ""
	var add func(n Node, parent string, depth int) error
	add = func(n Node, parent string, depth int) error {
		if n.ID == "" {
			return fmt.Errorf("%w: node %q has an empty id", ErrInvalidForest, n.Label)
		}
		if _, dup := nodes[n.ID]; dup {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidForest, n.ID)
		}
		kind := n.Kind
		if kind == "" {
			kind = KindFolder
			if n.Children == nil {
				kind = KindDocument
			}
		}
		if !kind.Valid() {
			return fmt.Errorf("%w: node %q has unknown kind %q", ErrInvalidForest, n.ID, n.Kind)
		}
		// A root folder labelled like the remote trash is the trash when the
		// payload does not mark one explicitly.
		if depth == 0 && !explicitTrash && trashID == "" && kind == KindFolder && n.Label == TrashLabel {
			kind = KindTrash
		}
		if kind == KindTrash {
			if depth != 0 {
				return fmt.Errorf("%w: trash %q must be a root", ErrInvalidForest, n.ID)
			}
			if trashID != "" {
				return fmt.Errorf("%w: more than one trash node", ErrInvalidForest)
			}
			trashID = n.ID
		}
		if kind == KindDocument && len(n.Children) > 0 {
			return fmt.Errorf("%w: %q: %w", ErrInvalidForest, n.ID, ErrDocumentChildren)
		}

		rec := &record{id: n.ID, label: n.Label, kind: kind, parent: parent}
		nodes[n.ID] = rec
		if kind.IsContainer() {
			rec.children = make([]string, 0, len(n.Children))
			for _, child := range n.Children {
				if err := add(child, n.ID, depth+1); err != nil {
					return err
				}
				rec.children = append(rec.children, child.ID)
			}
		}
		return nil
	}

	for _, root := range forest {
		if err := add(root, "", 0); err != nil {
			return err
		}
		roots = append(roots, root.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = nodes
	s.roots = roots
	s.trashID = trashID
	return nil
}

// Find returns a snapshot of the node with the given id. A missing id is not
// an error; callers check the boolean.
func (s *Store) Find(id string) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.nodes[id]; !ok {
		return Node{}, false
	}
	return s.materialize(id), true
}

// Roots returns snapshots of the top-level nodes in order.
func (s *Store) Roots() []Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Node, 0, len(s.roots))
	for _, id := range s.roots {
		out = append(out, s.materialize(id))
	}
	return out
}

// Trash returns the trash node, if the forest has one.
func (s *Store) Trash() (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.trashID == "" {
		return Node{}, false
	}
	return s.materialize(s.trashID), true
}

// Parent returns the parent of id. Roots and unknown ids report false.
func (s *Store) Parent(id string) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.nodes[id]
	if !ok || rec.parent == "" {
		return Node{}, false
	}
	return s.materialize(rec.parent), true
}

// InTrash reports whether id is the trash or lives below it.
func (s *Store) InTrash(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trashID != "" && s.within(id, s.trashID)
}

// Path returns the labels from the root down to id.
func (s *Store) Path(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var labels []string
	for cur := id; cur != ""; {
		rec, ok := s.nodes[cur]
		if !ok {
			return nil
		}
		labels = append([]string{rec.label}, labels...)
		cur = rec.parent
	}
	return labels
}

// Len returns the number of nodes in the forest.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// Insert appends n, with its subtree, under parentID, or as a new root when
// parentID is empty. Ids already in use are suffixed "-1", "-2", ... until free,
// and the node as stored is returned.
func (s *Store) Insert(parentID string, n Node) (Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	depth := 0
	if parentID != "" {
		depth = 1
	}
	if err := s.checkInsertable(n, depth); err != nil {
		return Node{}, err
	}
	if parentID != "" {
		parent, ok := s.nodes[parentID]
		if !ok {
			return Node{}, fmt.Errorf("parent %q: %w", parentID, ErrNotFound)
		}
		if !parent.kind.IsContainer() {
			return Node{}, fmt.Errorf("parent %q is a %s: %w", parentID, parent.kind, ErrInvalidTarget)
		}
	}

	id := s.add(n, parentID)
	if parentID == "" {
		s.roots = appendID(s.roots, id)
	} else {
		parent := s.nodes[parentID]
		parent.children = appendID(parent.children, id)
	}
	if n.Kind == KindTrash {
		s.trashID = id
	}
	return s.materialize(id), nil
}

// Remove detaches the node with id, and its subtree, from the forest and
// returns it.
func (s *Store) Remove(id string) (Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.nodes[id]
	if !ok {
		return Node{}, fmt.Errorf("remove %q: %w", id, ErrNotFound)
	}
	if rec.kind == KindTrash {
		return Node{}, fmt.Errorf("remove %q: trash cannot be removed: %w", id, ErrForbidden)
	}
	removed := s.materialize(id)
	s.detach(rec)
	s.drop(id)
	return removed, nil
}

// MoveToTrash reparents the node under the trash, keeping its id and subtree.
// A node already inside the trash stays where it is.
func (s *Store) MoveToTrash(id string) (Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.nodes[id]
	if !ok {
		return Node{}, fmt.Errorf("move %q to trash: %w", id, ErrNotFound)
	}
	if rec.kind == KindTrash {
		return Node{}, fmt.Errorf("move %q to trash: %w", id, ErrForbidden)
	}
	if s.trashID == "" {
		return Node{}, fmt.Errorf("move %q to trash: %w", id, ErrNoTrash)
	}
	if s.within(id, s.trashID) {
		return s.materialize(id), nil
	}

	s.detach(rec)
	trash := s.nodes[s.trashID]
	trash.children = appendID(trash.children, id)
	rec.parent = s.trashID
	return s.materialize(id), nil
}

func (s *Store) checkInsertable(n Node, depth int) error {
	switch {
	case n.ID == "":
		return fmt.Errorf("insert %q: empty id: %w", n.Label, ErrInvalidTarget)
	case !n.Kind.Valid():
		return fmt.Errorf("insert %q: unknown kind %q: %w", n.ID, n.Kind, ErrInvalidTarget)
	case n.Kind == KindDocument && len(n.Children) > 0:
		return fmt.Errorf("insert %q: %w: %w", n.ID, ErrDocumentChildren, ErrInvalidTarget)
	case n.Kind == KindTrash && (depth > 0 || s.trashID != ""):
		return fmt.Errorf("insert %q: only one root trash is allowed: %w", n.ID, ErrForbidden)
	}
	for _, child := range n.Children {
		if err := s.checkInsertable(child, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// add stores n and its descendants below parent and returns n's final id.
func (s *Store) add(n Node, parent string) string {
	id := s.freeID(n.ID)
	rec := &record{id: id, label: n.Label, kind: n.Kind, parent: parent}
	s.nodes[id] = rec
	if n.Kind.IsContainer() {
		rec.children = make([]string, 0, len(n.Children))
		for _, child := range n.Children {
			rec.children = append(rec.children, s.add(child, id))
		}
	}
	return id
}

// freeID applies the collision policy. Siblings live in the arena too, so
// probing the arena covers the sibling check and keeps ids unique tree-wide.
func (s *Store) freeID(base string) string {
	if _, taken := s.nodes[base]; !taken {
		return base
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d", base, i)
		if _, taken := s.nodes[candidate]; !taken {
			return candidate
		}
	}
}

func (s *Store) detach(rec *record) {
	if rec.parent == "" {
		s.roots = withoutID(s.roots, rec.id)
		return
	}
	parent := s.nodes[rec.parent]
	parent.children = withoutID(parent.children, rec.id)
}

func (s *Store) drop(id string) {
	rec := s.nodes[id]
	for _, child := range rec.children {
		s.drop(child)
	}
	delete(s.nodes, id)
}

func (s *Store) within(id, ancestorID string) bool {
	for cur := id; cur != ""; {
		if cur == ancestorID {
			return true
		}
		rec, ok := s.nodes[cur]
		if !ok {
			return false
		}
		cur = rec.parent
	}
	return false
}

func (s *Store) materialize(id string) Node {
	rec := s.nodes[id]
	n := Node{ID: rec.id, Label: rec.label, Kind: rec.kind}
	if rec.kind.IsContainer() {
		n.Children = make([]Node, 0, len(rec.children))
		for _, child := range rec.children {
			n.Children = append(n.Children, s.materialize(child))
		}
	}
	return n
}

// appendID and withoutID always build a fresh slice so no backing array is
// shared between versions of a child list.
func appendID(ids []string, id string) []string {
	out := make([]string, len(ids), len(ids)+1)
	copy(out, ids)
	return append(out, id)
}

func withoutID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
