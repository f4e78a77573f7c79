package schema

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher re-parses a schema document whenever the file changes and swaps
// the replacement registry into a Versioned reference. A document that
// fails to parse or validate is logged and discarded; the previous
// registry stays in place.
type Watcher struct {
	path string
	v    *Versioned
	fw   *fsnotify.Watcher
	log  *slog.Logger
	done chan struct{}
}

// Watch parses the schema document at path into v and starts watching it
// for changes. Close releases the watch.
func Watch(path string, v *Versioned, log *slog.Logger) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	reg, err := FromYAMLFile(path)
	if err != nil {
		return nil, err
	}
	v.Swap(reg)
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("schema: start watcher: %w", err)
	}
	// Watch the directory, not the file: editors replace files on save,
	// which drops a direct file watch.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("schema: watch %s: %w", path, err)
	}
	w := &Watcher{path: path, v: v, fw: fw, log: log, done: make(chan struct{})}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			reg, err := FromYAMLFile(w.path)
			if err != nil {
				w.log.Error("schema reload failed, keeping previous registry",
					"path", w.path, "error", err)
				continue
			}
			w.v.Swap(reg)
			w.log.Info("schema reloaded", "path", w.path, "entities", len(reg.Entities()))
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Error("schema watcher error", "path", w.path, "error", err)
		}
	}
}

// Close stops watching and waits for the watch loop to exit.
func (w *Watcher) Close() error {
	err := w.fw.Close()
	<-w.done
	return err
}
