// Package watcher monitors a SQLite database for changes using fsnotify
// with a polling fallback for filesystems where inotify is unreliable.
// The watch covers the -wal and -journal sidecars as well as the main
// file: in WAL mode a commit only touches the -wal file until a
// checkpoint runs.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval is the default polling interval for fallback mode.
const DefaultPollInterval = 2 * time.Second

// sidecarSuffixes are the companion files SQLite writes next to the main
// database file.
var sidecarSuffixes = []string{"-wal", "-journal"}

// Common errors.
var (
	ErrFileRemoved    = errors.New("watched database was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDuration sets the debounce duration.
func WithDebounceDuration(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDuration = d
	}
}

// WithPollInterval sets the polling interval for fallback mode.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.pollInterval = d
	}
}

// WithOnChange sets the callback invoked when the database changes.
func WithOnChange(fn func()) WatcherOption {
	return func(w *Watcher) {
		w.onChange = fn
	}
}

// WithOnError sets the callback invoked on errors.
func WithOnError(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// WithForcePoll forces polling mode even if fsnotify is available.
func WithForcePoll(force bool) WatcherOption {
	return func(w *Watcher) {
		w.forcePoll = force
	}
}

// pollState is the stat fingerprint used to detect writes in polling mode.
type pollState struct {
	mtime time.Time
	size  int64
}

// Watcher monitors a database file and its sidecars for changes.
type Watcher struct {
	path             string
	debounceDuration time.Duration
	pollInterval     time.Duration
	onChange         func()
	onError          func(error)
	forcePoll        bool
	forcePollEnv     bool
	fsType           FilesystemType

	fsWatcher   *fsnotify.Watcher
	debouncer   *Debouncer
	useFallback bool
	lastSeen    map[string]pollState
	seenMain    bool

	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	mu       sync.RWMutex
	changeCh chan struct{}
}

// NewWatcher creates a new watcher for the given database path.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:             absPath,
		debounceDuration: DefaultDebounceDuration,
		pollInterval:     DefaultPollInterval,
		onChange:         func() {},
		onError:          func(error) {},
		changeCh:         make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(w)
	}

	w.debouncer = NewDebouncer(w.debounceDuration)

	return w, nil
}

// watchTargets returns the main database path plus its sidecars.
func (w *Watcher) watchTargets() []string {
	targets := make([]string, 0, len(sidecarSuffixes)+1)
	targets = append(targets, w.path)
	for _, s := range sidecarSuffixes {
		targets = append(targets, w.path+s)
	}
	return targets
}

// snapshot stats every watch target that currently exists.
func (w *Watcher) snapshot() map[string]pollState {
	states := make(map[string]pollState, len(sidecarSuffixes)+1)
	for _, p := range w.watchTargets() {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		states[p] = pollState{mtime: info.ModTime(), size: info.Size()}
	}
	return states
}

// Start begins watching the database for changes.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}

	w.ctx, w.cancel = context.WithCancel(context.Background())

	// Reset per-start state.
	w.useFallback = false
	w.forcePollEnv = false
	w.fsType = FSTypeUnknown

	if envBool("BURROW_FORCE_POLLING") {
		w.forcePollEnv = true
	}

	w.fsType = detectFilesystemTypeFunc(w.path)
	if isRemoteFilesystem(w.fsType) {
		w.useFallback = true
	}

	if w.forcePoll || w.forcePollEnv {
		w.useFallback = true
	}

	// A missing database is fine, the watch picks it up on creation.
	if _, err := os.Stat(w.path); err != nil && os.IsPermission(err) {
		return ErrPermission
	}
	w.lastSeen = w.snapshot()
	_, w.seenMain = w.lastSeen[w.path]

	if !w.useFallback {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			// Watch the directory rather than the file itself so atomic
			// replaces and sidecar creation stay visible.
			dir := filepath.Dir(w.path)
			if err := fsw.Add(dir); err != nil {
				fsw.Close()
				w.useFallback = true
			} else {
				w.fsWatcher = fsw
				go w.watchFsnotify()
			}
		} else {
			w.useFallback = true
		}
	}

	if w.useFallback {
		go w.watchPolling()
	}

	w.started = true
	return nil
}

// Stop stops watching the database.
// The changeCh channel is intentionally NOT closed here. Closing it would
// race with notifyChange() and make consumers blocked on Changed() receive
// immediately and loop. Stop() is only called at program exit, so the
// goroutine blocked on Changed() is cleaned up by process termination.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return
	}

	if w.cancel != nil {
		w.cancel()
	}

	if w.fsWatcher != nil {
		w.fsWatcher.Close()
		w.fsWatcher = nil
	}

	w.debouncer.Cancel()
	w.started = false
}

// IsPolling returns true if the watcher is using polling mode.
func (w *Watcher) IsPolling() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.useFallback
}

// IsStarted returns true if the watcher is running.
func (w *Watcher) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started
}

// Changed returns a channel that receives when the database changes.
// This is an alternative to using the OnChange callback.
func (w *Watcher) Changed() <-chan struct{} {
	return w.changeCh
}

// Path returns the watched database path.
func (w *Watcher) Path() string {
	return w.path
}

// FilesystemType returns the best-effort filesystem classification for
// the watched path.
func (w *Watcher) FilesystemType() FilesystemType {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.fsType
}

// PollInterval returns the polling interval used when polling mode is active.
func (w *Watcher) PollInterval() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.pollInterval
}

func envBool(name string) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return false
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// watchFsnotify consumes directory events, keeping only those for the
// database and its sidecars.
func (w *Watcher) watchFsnotify() {
	names := make(map[string]bool, len(sidecarSuffixes)+1)
	for _, p := range w.watchTargets() {
		names[filepath.Base(p)] = true
	}
	mainName := filepath.Base(w.path)

	// Capture channel references to avoid a race with Stop() setting
	// fsWatcher to nil.
	w.mu.RLock()
	if w.fsWatcher == nil {
		w.mu.RUnlock()
		return
	}
	events := w.fsWatcher.Events
	errs := w.fsWatcher.Errors
	w.mu.RUnlock()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}

			name := filepath.Base(event.Name)
			if !names[name] {
				continue
			}

			switch {
			case event.Op&fsnotify.Remove != 0:
				if name == mainName {
					w.onError(ErrFileRemoved)
					continue
				}
				// A disappearing -wal or -journal means a checkpoint or
				// rollback folded writes into the main file.
				w.debouncer.Trigger(w.notifyChange)

			case event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0:
				w.debouncer.Trigger(w.notifyChange)
			}

		case err, ok := <-errs:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

// watchPolling compares stat fingerprints across the database and its
// sidecars on every tick.
func (w *Watcher) watchPolling() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			if _, err := os.Stat(w.path); err != nil {
				switch {
				case os.IsNotExist(err):
					w.mu.RLock()
					hadMain := w.seenMain
					w.mu.RUnlock()
					if hadMain {
						w.onError(ErrFileRemoved)
					}
				case os.IsPermission(err):
					w.onError(ErrPermission)
				default:
					w.onError(err)
				}
				continue
			}

			current := w.snapshot()

			w.mu.Lock()
			changed := len(current) != len(w.lastSeen)
			if !changed {
				for p, st := range current {
					prev, ok := w.lastSeen[p]
					if !ok || st.mtime.After(prev.mtime) || st.size != prev.size {
						changed = true
						break
					}
				}
			}
			if changed {
				w.lastSeen = current
			}
			w.seenMain = true
			w.mu.Unlock()

			if changed {
				w.debouncer.Trigger(w.notifyChange)
			}
		}
	}
}

// notifyChange invokes the onChange callback and signals the change channel.
func (w *Watcher) notifyChange() {
	w.mu.RLock()
	started := w.started
	w.mu.RUnlock()

	// Best-effort guard against callbacks firing after Stop(). There is
	// a small race window, but callbacks are idempotent.
	if !started {
		return
	}

	w.onChange()

	// Non-blocking send to change channel.
	select {
	case w.changeCh <- struct{}{}:
	default:
	}
}
