package content

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce is how long a working copy must stay quiet before a change
// is reported.
const DefaultDebounce = 300 * time.Millisecond

// Watcher reports edits to a local working copy of a document. It watches the
// parent directory so editors that save by rename are picked up too.
type Watcher struct {
	path     string
	debounce time.Duration
	fs       *fsnotify.Watcher
	logger   *logrus.Entry
	last     string
}

// WatchFile starts watching path. Events are only delivered once Run is called.
func WatchFile(path string, debounce time.Duration, logger *logrus.Entry) (*Watcher, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	initial, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read working copy: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		if closeErr := fw.Close(); closeErr != nil {
			logger.WithError(closeErr).Warn("Failed to close watcher after add error")
		}
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{
		path:     abs,
		debounce: debounce,
		fs:       fw,
		logger:   logger.WithField("sub-component", "watcher"),
		last:     string(initial),
	}, nil
}

// Run delivers each settled change of the working copy to onChange until ctx
// is done. Unchanged rewrites are skipped. Errors from onChange are logged and
// do not stop the watch.
func (w *Watcher) Run(ctx context.Context, onChange func(Content) error) error {
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Warn("Watcher error")
		case <-timer.C:
			raw, err := os.ReadFile(w.path)
			if err != nil {
				w.logger.WithError(err).Warn("Failed to read working copy")
				continue
			}
			if string(raw) == w.last {
				continue
			}
			w.last = string(raw)
			if err := onChange(Decode(string(raw))); err != nil {
				w.logger.WithError(err).Error("Failed to handle working copy change")
			}
		}
	}
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
