package manifest

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 300 * time.Millisecond

// Watcher drops changed manifest files from a loader's cache. Changes are
// batched: OnReload sees every path touched within one debounce window.
type Watcher struct {
	loader   *Loader
	fs       *fsnotify.Watcher
	debounce time.Duration
	cancel   context.CancelFunc
	done     chan struct{}

	// OnReload, if set, runs on the watch goroutine after each batch has
	// been invalidated. Calls never overlap.
	OnReload func(paths []string)
}

// NewWatcher creates a watcher for loader's directory. A debounce of zero
// picks a default.
func NewWatcher(loader *Loader, debounce time.Duration) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{loader: loader, fs: fs, debounce: debounce}, nil
}

// Start watches <dir> and each <dir>/<Tool> until ctx ends or Stop is
// called.
func (w *Watcher) Start(ctx context.Context) error {
	root := w.loader.Dir()
	if err := w.fs.Add(root); err != nil {
		return err
	}
	tools, err := os.ReadDir(root)
	if err != nil {
		return err
	}
	for _, t := range tools {
		if t.IsDir() && !strings.HasPrefix(t.Name(), ".") {
			w.add(filepath.Join(root, t.Name()))
		}
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.loop(ctx)
	log.Debug("watching %s", root)
	return nil
}

// Stop ends the watch and waits for a running OnReload to return.
func (w *Watcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
		<-w.done
	}
	return w.fs.Close()
}

func (w *Watcher) add(dir string) {
	if err := w.fs.Add(dir); err != nil {
		log.Warn("cannot watch %s: %v", dir, err)
	}
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if path, ok := w.relevant(ev); ok {
				pending[path] = true
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log.Warn("watch: %v", err)
		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			paths := make([]string, 0, len(pending))
			for p := range pending {
				w.loader.Invalidate(p)
				paths = append(paths, p)
			}
			clear(pending)
			sort.Strings(paths)
			log.Info("%d manifest(s) changed", len(paths))
			if w.OnReload != nil {
				w.OnReload(paths)
			}
		}
	}
}

// relevant reports whether ev touches a manifest file. A newly created tool
// directory is added to the watch instead.
func (w *Watcher) relevant(ev fsnotify.Event) (string, bool) {
	if ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			w.add(ev.Name)
			return "", false
		}
	}
	if filepath.Ext(ev.Name) != ".yaml" {
		return "", false
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return "", false
	}
	return filepath.Clean(ev.Name), true
}
