package service

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/grovetools/jana/pkg/content"
	"github.com/grovetools/jana/pkg/remote"
	"github.com/grovetools/jana/pkg/tree"
)

// Edit opens the document id in the configured editor. The working copy is
// saved to the remote store every time the editor writes it, and once more
// when the editor exits with unsaved changes. It returns the number of saves.
func (s *Service) Edit(ctx context.Context, sess remote.Session, id string) (int, error) {
	n, err := s.OpenForWrite(ctx, sess, id)
	if err != nil {
		return 0, err
	}
	if n.IsContainer() {
		return 0, fmt.Errorf("edit %q: %w", id, tree.ErrInvalidTarget)
	}
	current, _ := s.Selection.Content()

	workDir := filepath.Join(s.Config.DataDir, "work")
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return 0, fmt.Errorf("create work directory: %w", err)
	}
	workPath := filepath.Join(workDir, workingCopyName(n))
	if err := os.WriteFile(workPath, []byte(current.Display()), 0644); err != nil {
		return 0, fmt.Errorf("write working copy: %w", err)
	}
	defer os.Remove(workPath)

	lastSaved, err := current.Encode()
	if err != nil {
		return 0, fmt.Errorf("encode content: %w", err)
	}

	var (
		mu    sync.Mutex
		saves int
	)
	save := func(c content.Content) error {
		encoded, err := c.Encode()
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		if encoded == lastSaved {
			return nil
		}
		if err := s.Save(ctx, sess, c); err != nil {
			return err
		}
		lastSaved = encoded
		saves++
		return nil
	}

	watcher, err := content.WatchFile(workPath, 0, s.Logger)
	if err != nil {
		return 0, err
	}
	defer watcher.Close()

	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = watcher.Run(watchCtx, save)
	}()

	editErr := s.openInEditor(workPath)
	cancel()
	<-done

	raw, err := os.ReadFile(workPath)
	if err != nil {
		return saves, fmt.Errorf("read working copy: %w", err)
	}
	if err := save(content.Decode(string(raw))); err != nil {
		return saves, err
	}
	if editErr != nil {
		return saves, fmt.Errorf("editor: %w", editErr)
	}
	return saves, nil
}

// openInEditor opens a file in the configured editor
func (s *Service) openInEditor(path string) error {
	editor := s.Config.Editor
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vim" // fallback
	}

	cmd := exec.Command(editor, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}

// workingCopyName keeps the document's extension so editors pick a sensible
// mode, and flattens the id into a single path element.
func workingCopyName(n tree.Node) string {
	name := strings.NewReplacer("/", "_", "\\", "_").Replace(n.ID)
	if filepath.Ext(name) == "" {
		name += ".txt"
	}
	return "jana-" + name
}
