package ingest

import (
	"context"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/tessera-search/tessera/internal/config"
)

// Policy decides which files are admitted into the queue.
type Policy struct {
	include  []string
	exclude  []string
	maxBytes int64
}

// NewPolicy builds an admission policy from watch configuration.
func NewPolicy(cfg config.WatchConfig) *Policy {
	return &Policy{
		include:  cfg.Include,
		exclude:  cfg.Exclude,
		maxBytes: cfg.MaxFileSizeMB << 20,
	}
}

// Admit reports whether the file passes the extension/size policy, and
// if not, why.
func (p *Policy) Admit(path string, size int64) (bool, string) {
	rel := filepath.ToSlash(path)
	for _, pattern := range p.exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false, "excluded by pattern"
		}
	}

	included := len(p.include) == 0
	for _, pattern := range p.include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			included = true
			break
		}
	}
	if !included {
		return false, "extension not watched"
	}

	if p.maxBytes > 0 && size > p.maxBytes {
		return false, "file too large"
	}
	return true, ""
}

// EnqueueFunc receives admitted filesystem changes.
type EnqueueFunc func(path string, change ChangeKind, priority Priority)

// Watcher turns fsnotify events on the configured directories into
// enqueue calls. Directories are watched recursively; new
// subdirectories are picked up as they appear.
type Watcher struct {
	dirs    []string
	policy  *Policy
	fsw     *fsnotify.Watcher
	enqueue EnqueueFunc
}

// NewWatcher creates a watcher over the configured directories.
func NewWatcher(cfg config.WatchConfig, enqueue EnqueueFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		dirs:    cfg.Dirs,
		policy:  NewPolicy(cfg),
		fsw:     fsw,
		enqueue: enqueue,
	}, nil
}

// Run performs the initial discovery scan, then blocks handling
// filesystem events until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	for _, dir := range w.dirs {
		w.scan(dir)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Printf("watcher: %v", err)
		}
	}
}

// scan walks dir, enqueues existing admitted files as added, and
// registers every subdirectory with fsnotify. Unreadable directories
// are logged and skipped; discovery continues.
func (w *Watcher) scan(dir string) {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			log.Printf("watcher: skipping %s: %v", path, walkErr)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if err := w.fsw.Add(path); err != nil {
				log.Printf("watcher: cannot watch %s: %v", path, err)
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if ok, _ := w.policy.Admit(path, info.Size()); ok {
			w.enqueue(path, ChangeAdded, PriorityMedium)
		}
		return nil
	})
	if err != nil {
		log.Printf("watcher: scanning %s: %v", dir, err)
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	switch {
	case event.Op.Has(fsnotify.Create):
		info, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			// New directory: watch it and pick up anything already inside.
			w.scan(event.Name)
			return
		}
		if ok, _ := w.policy.Admit(event.Name, info.Size()); ok {
			w.enqueue(event.Name, ChangeAdded, PriorityMedium)
		}

	case event.Op.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil || info.IsDir() {
			return
		}
		if ok, _ := w.policy.Admit(event.Name, info.Size()); ok {
			w.enqueue(event.Name, ChangeChanged, PriorityMedium)
		}

	case event.Op.Has(fsnotify.Rename):
		// The old path is gone; the new path arrives as a Create. Treat
		// renames of tracked files as moves so stale fingerprints clear.
		w.enqueue(event.Name, ChangeMoved, PriorityLow)
	}
}

// Policy exposes the admission policy for manual enqueues.
func (w *Watcher) Policy() *Policy { return w.policy }
