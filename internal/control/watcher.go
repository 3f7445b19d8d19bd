package control

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Trigger file names recognized inside the control directory. Touching a file
// fires the matching action; the file is removed afterwards so the next touch
// fires again.
const (
	TriggerWake  = "wake"
	TriggerReset = "reset"
	TriggerEnd   = "end"
)

// Actions are the pipeline operations a trigger file can fire.
type Actions struct {
	OnWake  func()
	OnReset func()
	OnEnd   func()
}

// Watcher exposes a file-based control surface: external tools (hotkey
// daemons, shell scripts) touch well-known files in a directory instead of
// speaking a protocol. This mirrors classic /tmp trigger-file setups while
// keeping the pipeline process the only long-lived component.
type Watcher struct {
	dir     string
	actions Actions
	logger  *slog.Logger

	watcher *fsnotify.Watcher
	stop    chan struct{}
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewWatcher creates a control watcher over the given directory, creating the
// directory if needed.
func NewWatcher(dir string, actions Actions, logger *slog.Logger) (*Watcher, error) {
	if dir == "" {
		return nil, fmt.Errorf("control directory cannot be empty")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create control directory %s: %w", dir, err)
	}

	return &Watcher{
		dir:     dir,
		actions: actions,
		logger:  logger,
	}, nil
}

// Start begins watching the control directory.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	if err := fsWatcher.Add(w.dir); err != nil {
		fsWatcher.Close()
		return fmt.Errorf("failed to watch control directory %s: %w", w.dir, err)
	}

	w.watcher = fsWatcher
	w.running = true
	w.stop = make(chan struct{})

	w.wg.Add(1)
	go w.watchLoop()

	w.logger.Info("Control watcher started", slog.String("dir", w.dir))
	return nil
}

// Stop stops watching.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stop)
	w.mu.Unlock()

	err := w.watcher.Close()
	w.wg.Wait()

	w.logger.Info("Control watcher stopped")
	return err
}

func (w *Watcher) watchLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stop:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.handleTrigger(event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Control watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handleTrigger(path string) {
	name := filepath.Base(path)

	var action func()
	switch name {
	case TriggerWake:
		action = w.actions.OnWake
	case TriggerReset:
		action = w.actions.OnReset
	case TriggerEnd:
		action = w.actions.OnEnd
	default:
		return
	}

	// Consume the trigger so the next touch is a fresh event.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		w.logger.Warn("Failed to remove trigger file",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}

	w.logger.Info("Control trigger fired", slog.String("trigger", name))

	if action != nil {
		action()
	}
}
