package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/grovetools/jana/pkg/remote"
	"github.com/grovetools/jana/pkg/service"
	"github.com/grovetools/jana/pkg/session"
	"github.com/grovetools/jana/pkg/tree"
)

// requireSession loads the login every remote call needs.
func requireSession(s *service.Service) (remote.Session, error) {
	sess, err := s.Session()
	if errors.Is(err, session.ErrNoSession) {
		return remote.Session{}, fmt.Errorf("%w: run 'jana login' first", err)
	}
	return sess, err
}

// Explain adds the next step to errors the user can act on.
func Explain(err error) error {
	switch {
	case err == nil:
		return nil
	case remote.IsUnauthorized(err):
		return fmt.Errorf("%w\nYour session is missing or expired: run 'jana login'", err)
	case remote.IsNotFound(err):
		return fmt.Errorf("%w\nThe remote store no longer has it: run 'jana tree' to see the current workspace", err)
	}
	return err
}

// kindTitle is the human name of a node kind.
func kindTitle(k tree.Kind) string {
	name := string(k)
	if k == tree.KindDocument {
		name = "document"
	}
	return cases.Title(language.English).String(name)
}

// displayOrder lists the trash after every other root.
func displayOrder(roots []tree.Node) []tree.Node {
	out := make([]tree.Node, 0, len(roots))
	var trash []tree.Node
	for _, n := range roots {
		if n.Kind == tree.KindTrash {
			trash = append(trash, n)
			continue
		}
		out = append(out, n)
	}
	return append(out, trash...)
}

// printTree writes an indented outline of nodes.
func printTree(w io.Writer, nodes []tree.Node, showIDs bool) {
	var walk func(n tree.Node, depth int)
	walk = func(n tree.Node, depth int) {
		label := n.Label
		if n.IsContainer() {
			label += "/"
		}
		line := strings.Repeat("  ", depth) + label
		if showIDs {
			line += "  [" + n.ID + "]"
		}
		fmt.Fprintln(w, line)
		for _, child := range n.Children {
			walk(child, depth+1)
		}
	}
	for _, n := range displayOrder(nodes) {
		walk(n, 0)
	}
}
