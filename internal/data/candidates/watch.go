package candidates

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yungbote/graphrag-core/internal/platform/logger"
)

const defaultReloadDelay = 200 * time.Millisecond

// Watcher reloads a Static source whenever its snapshot file changes on disk.
// A snapshot that fails to parse is logged and the previous one stays in place.
type Watcher struct {
	log      *logger.Logger
	path     string
	target   *Static
	onReload func(Snapshot)
	delay    time.Duration
	fsw      *fsnotify.Watcher
}

// NewWatcher watches the directory holding path, so editors that save by rename are
// picked up too. onReload, if set, runs after each successful swap.
func NewWatcher(log *logger.Logger, path string, target *Static, onReload func(Snapshot)) (*Watcher, error) {
	if target == nil {
		return nil, errors.New("candidates: watcher needs a static source")
	}
	if log == nil {
		log = logger.Nop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return &Watcher{
		log:      log.With("component", "SnapshotWatcher", "path", abs),
		path:     abs,
		target:   target,
		onReload: onReload,
		delay:    defaultReloadDelay,
		fsw:      fsw,
	}, nil
}

// Run blocks until ctx is done or the watcher is closed. Bursts of events within the
// reload delay collapse into one reload.
func (w *Watcher) Run(ctx context.Context) {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.delay)
			} else {
				timer.Reset(w.delay)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("snapshot watch error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	snap, err := ReadSnapshot(w.path)
	if err != nil {
		w.log.Warn("snapshot reload failed; keeping previous", "error", err)
		return
	}
	w.target.Replace(snap)
	if w.onReload != nil {
		w.onReload(snap)
	}
	w.log.Info("snapshot reloaded",
		"documents", len(snap.Documents),
		"entities", len(snap.Entities),
		"relations", len(snap.Relations),
	)
}

func (w *Watcher) Close() error {
	if w == nil || w.fsw == nil {
		return nil
	}
	return w.fsw.Close()
}
