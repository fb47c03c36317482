package tree

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind categorizes the different kinds of nodes in the workspace tree.
type Kind string

const (
	KindFolder   Kind = "folder"
	KindDocument Kind = "file"  // A document with lazily fetched content
	KindTrash    Kind = "trash" // The single pseudo-folder receiving deleted nodes
)

// documentAlias is accepted on input for KindDocument.
const documentAlias Kind = "document"

// TrashLabel is the label the remote store gives its trash folder.
const TrashLabel = "Trash"

// IsContainer reports whether nodes of this kind may hold children.
func (k Kind) IsContainer() bool {
	return k == KindFolder || k == KindTrash
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindFolder, KindDocument, KindTrash:
		return true
	}
	return false
}

// Node is a snapshot of a single entry in the workspace tree. Nodes returned by a
// Store are copies; changing them never affects the store.
type Node struct {
	ID       string
	Label    string
	Kind     Kind
	Children []Node // nil for documents
}

// NewFolder returns an empty folder node.
func NewFolder(id, label string, children ...Node) Node {
	return Node{ID: id, Label: label, Kind: KindFolder, Children: append([]Node{}, children...)}
}

// NewDocument returns a document node.
func NewDocument(id, label string) Node {
	return Node{ID: id, Label: label, Kind: KindDocument}
}

// NewTrash returns an empty trash node.
func NewTrash(id string, children ...Node) Node {
	return Node{ID: id, Label: TrashLabel, Kind: KindTrash, Children: append([]Node{}, children...)}
}

// IsContainer reports whether n may hold children.
func (n Node) IsContainer() bool {
	return n.Kind.IsContainer()
}

// Walk visits n and its descendants depth-first. Returning false stops the walk.
func (n Node) Walk(fn func(Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, child := range n.Children {
		if !child.Walk(fn) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of n.
func (n Node) Clone() Node {
	out := Node{ID: n.ID, Label: n.Label, Kind: n.Kind}
	if n.Kind.IsContainer() {
		out.Children = make([]Node, len(n.Children))
		for i, child := range n.Children {
			out.Children[i] = child.Clone()
		}
	}
	return out
}

type wireNode struct {
	ID       string  `json:"id" yaml:"id"`
	Label    string  `json:"label" yaml:"label"`
	Type     Kind    `json:"type,omitempty" yaml:"type,omitempty"`
	Children *[]Node `json:"children,omitempty" yaml:"children,omitempty"`
}

// MarshalJSON writes containers with a children array, possibly empty, and
// documents without one.
func (n Node) MarshalJSON() ([]byte, error) {
	w := wireNode{ID: n.ID, Label: n.Label, Type: n.Kind}
	if n.Kind.IsContainer() {
		children := n.Children
		if children == nil {
			children = []Node{}
		}
		w.Children = &children
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts the remote store's node shape. A missing type is
// inferred from the presence of children, and "document" is read as "file".
func (n *Node) UnmarshalJSON(data []byte) error {
	var w wireNode
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	kind := w.Type
	switch kind {
	case documentAlias:
		kind = KindDocument
	case "":
		if w.Children != nil {
			kind = KindFolder
		} else {
			kind = KindDocument
		}
	}
	if !kind.Valid() {
		return fmt.Errorf("node %q: unknown type %q", w.ID, w.Type)
	}
	if kind == KindDocument && w.Children != nil && len(*w.Children) > 0 {
		return fmt.Errorf("node %q: %w", w.ID, ErrDocumentChildren)
	}
	*n = Node{ID: w.ID, Label: w.Label, Kind: kind}
	if kind.IsContainer() {
		n.Children = []Node{}
		if w.Children != nil {
			n.Children = *w.Children
		}
	}
	return nil
}

// MarshalYAML mirrors MarshalJSON for yaml.v3.
func (n Node) MarshalYAML() (interface{}, error) {
	w := wireNode{ID: n.ID, Label: n.Label, Type: n.Kind}
	if n.Kind.IsContainer() {
		children := n.Children
		if children == nil {
			children = []Node{}
		}
		w.Children = &children
	}
	return w, nil
}

// String renders the node as "label (id)".
func (n Node) String() string {
	var sb strings.Builder
	sb.WriteString(n.Label)
	if n.ID != "" && n.ID != n.Label {
		sb.WriteString(" (")
		sb.WriteString(n.ID)
		sb.WriteString(")")
	}
	return sb.String()
}
