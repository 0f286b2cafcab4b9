package rules

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"noesis/internal/logging"
)

// Watcher watches a rule directory for changes and hot-reloads the engine's
// rule set. Rapid successive saves are debounced trailing-edge: each event
// records a pending timestamp and a ticker reloads once the burst has
// settled past the window, so the last save always wins.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	engine      *Engine
	ruleDir     string
	debounceDur time.Duration
	pending     map[string]time.Time
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool

	// Stats for tests and debugging
	reloads int
	errors  int
}

// NewWatcher creates a watcher for the given rule directory.
func NewWatcher(ruleDir string, engine *Engine) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		watcher:     fsw,
		engine:      engine,
		ruleDir:     ruleDir,
		debounceDur: 300 * time.Millisecond,
		pending:     make(map[string]time.Time),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the watch loop runs in a goroutine
// until Stop is called or the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.ruleDir); err != nil {
		return err
	}

	logging.Rules("Watcher: watching %s", w.ruleDir)

	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.doneCh)

	// Ticker fires well inside the debounce window so settled bursts are
	// picked up promptly.
	ticker := time.NewTicker(w.debounceDur / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.mu.Lock()
			w.errors++
			w.mu.Unlock()
			logging.Get(logging.CategoryRules).Error("Watcher: %v", err)
		case <-ticker.C:
			w.processPending()
		}
	}
}

// handleEvent records the change; the reload happens from processPending once
// the file has settled past the debounce window.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	ext := filepath.Ext(event.Name)
	if ext != ".yaml" && ext != ".yml" {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	logging.RulesDebug("Watcher: %s %s pending", event.Op, filepath.Base(event.Name))
	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

// processPending reloads once when any pending changes have settled past the
// debounce window. One reload covers the whole directory, so a settled burst
// collapses into a single reload.
func (w *Watcher) processPending() {
	w.mu.Lock()
	now := time.Now()
	settled := 0
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounceDur {
			delete(w.pending, path)
			settled++
		}
	}
	w.mu.Unlock()

	if settled == 0 {
		return
	}
	logging.Rules("Watcher: %d settled changes, reloading rules", settled)
	w.reload()
}

func (w *Watcher) reload() {
	ruleSet, err := LoadRuleDir(w.ruleDir)
	if err != nil {
		w.mu.Lock()
		w.errors++
		w.mu.Unlock()
		logging.Get(logging.CategoryRules).Error("Watcher: reload failed, keeping current rules: %v", err)
		return
	}

	w.engine.ReplaceRules(ruleSet)
	w.mu.Lock()
	w.reloads++
	w.mu.Unlock()
}

// Reloads returns how many successful reloads have happened.
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

// Stop halts the watch loop and releases the fsnotify watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	w.watcher.Close()
}
