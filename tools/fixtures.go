package tools

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FixtureStore serves JSON documents from a directory, keyed by file name
// without the .json extension. Watch reloads files as they change so fixture
// data can be edited without a restart.
type FixtureStore struct {
	mu     sync.RWMutex
	dir    string
	data   map[string]json.RawMessage
	logger *slog.Logger
}

// NewFixtureStore loads every .json file under dir.
func NewFixtureStore(dir string, logger *slog.Logger) (*FixtureStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fs := &FixtureStore{
		dir:    dir,
		data:   make(map[string]json.RawMessage),
		logger: logger,
	}
	if err := fs.loadAll(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FixtureStore) loadAll() error {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return fmt.Errorf("read fixture dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if err := fs.loadFile(filepath.Join(fs.dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (fs *FixtureStore) loadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read fixture %s: %w", path, err)
	}
	if !json.Valid(raw) {
		return fmt.Errorf("fixture %s is not valid JSON", path)
	}
	name := strings.TrimSuffix(filepath.Base(path), ".json")

	fs.mu.Lock()
	fs.data[name] = json.RawMessage(raw)
	fs.mu.Unlock()
	return nil
}

// Get returns the raw document for name, or an error when absent.
func (fs *FixtureStore) Get(name string) (json.RawMessage, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	raw, ok := fs.data[name]
	if !ok {
		return nil, fmt.Errorf("no fixture named %s", name)
	}
	return raw, nil
}

// Unmarshal decodes the named fixture into out.
func (fs *FixtureStore) Unmarshal(name string, out any) error {
	raw, err := fs.Get(name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode fixture %s: %w", name, err)
	}
	return nil
}

// Watch reloads fixtures on filesystem changes until done is closed.
// Invalid edits are logged and skipped; the previous document stays live.
func (fs *FixtureStore) Watch(done <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fixture watcher: %w", err)
	}
	if err := watcher.Add(fs.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch fixture dir: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if !strings.HasSuffix(event.Name, ".json") {
					continue
				}
				if err := fs.loadFile(event.Name); err != nil {
					fs.logger.Warn("Fixture reload failed", "file", event.Name, "error", err)
					continue
				}
				fs.logger.Info("Fixture reloaded", "file", event.Name)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				fs.logger.Warn("Fixture watcher error", "error", err)
			}
		}
	}()

	return nil
}
