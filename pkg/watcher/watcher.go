// Package watcher reports edits to the corpus data file and the config file
// so a running server can reload without a restart.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/evnp/graph-of-thrones/pkg/logging"
)

// ChangeType says which watched file changed.
type ChangeType int

const (
	ChangeTypeData ChangeType = iota
	ChangeTypeConfig
)

func (t ChangeType) String() string {
	switch t {
	case ChangeTypeData:
		return "data"
	case ChangeTypeConfig:
		return "config"
	}
	return fmt.Sprintf("ChangeType(%d)", int(t))
}

// ChangeEvent is a batch of changes to files of one type.
type ChangeEvent struct {
	Type      ChangeType
	Paths     []string
	Timestamp time.Time
}

// batchWindow groups the several fsnotify events an editor save produces.
const batchWindow = 100 * time.Millisecond

// FileWatcher watches individual files. It watches their parent
// directories, since editors often save by writing a temp file and
// renaming it over the original.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	files   map[string]ChangeType
	events  chan ChangeEvent
}

// NewFileWatcher creates a watcher with no files.
func NewFileWatcher() (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &FileWatcher{
		watcher: w,
		files:   make(map[string]ChangeType),
		events:  make(chan ChangeEvent, 16),
	}, nil
}

// Add watches path, reporting its changes as typ. Call before Start.
func (fw *FileWatcher) Add(path string, typ ChangeType) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	if err := fw.watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	fw.files[abs] = typ
	logging.Info("watching file", "path", abs, "type", typ.String())
	return nil
}

// Start processes events until ctx is done, then closes Events.
func (fw *FileWatcher) Start(ctx context.Context) {
	go fw.processEvents(ctx)
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	defer close(fw.events)
	defer fw.watcher.Close()

	pending := make(map[ChangeType][]string)
	flushTimer := time.NewTimer(batchWindow)
	flushTimer.Stop()

	flush := func() {
		for _, typ := range []ChangeType{ChangeTypeConfig, ChangeTypeData} {
			if paths := pending[typ]; len(paths) > 0 {
				select {
				case fw.events <- ChangeEvent{Type: typ, Paths: paths, Timestamp: time.Now()}:
				case <-ctx.Done():
				}
			}
		}
		pending = make(map[ChangeType][]string)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			typ, watched := fw.files[filepath.Clean(event.Name)]
			if !watched {
				continue
			}
			logging.Trace("file event", "path", event.Name, "op", event.Op.String())
			pending[typ] = appendUnique(pending[typ], event.Name)
			flushTimer.Reset(batchWindow)

		case <-flushTimer.C:
			flush()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

func appendUnique(paths []string, p string) []string {
	for _, existing := range paths {
		if existing == p {
			return paths
		}
	}
	return append(paths, p)
}

// Events returns batched change events.
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}
