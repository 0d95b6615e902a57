package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"

	"portal/pkg/logging"
)

// DefaultDebounceInterval is how long Watch waits after the last change
// before notifying.
const DefaultDebounceInterval = 250 * time.Millisecond

// FileStore keeps all entries in one JSON object on disk.
//
// Every operation takes an advisory lock on "<path>.lock" so that several
// processes can share the file. Writes go to a temp file in the same
// directory which is then renamed over the original.
type FileStore struct {
	mu   sync.Mutex
	path string
	lock *flock.Flock
}

// NewFileStore creates a FileStore backed by path. The parent directory is
// created with 0700 permissions if needed.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

// Path returns the location of the backing file.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get(ctx context.Context, key string) (string, bool, error) {
	var (
		value string
		ok    bool
	)
	err := s.withLock(ctx, func() error {
		all, err := s.readLocked()
		if err != nil {
			return err
		}
		value, ok = all[key]
		return nil
	})
	return value, ok, err
}

func (s *FileStore) Set(ctx context.Context, key, value string) error {
	return s.withLock(ctx, func() error {
		all, err := s.readLocked()
		if err != nil {
			return err
		}
		all[key] = value
		return s.writeLocked(all)
	})
}

func (s *FileStore) Remove(ctx context.Context, key string) error {
	return s.withLock(ctx, func() error {
		all, err := s.readLocked()
		if err != nil {
			return err
		}
		if _, ok := all[key]; !ok {
			return nil
		}
		delete(all, key)
		return s.writeLocked(all)
	})
}

func (s *FileStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.withLock(ctx, func() error {
		all, err := s.readLocked()
		if err != nil {
			return err
		}
		keys = make([]string, 0, len(all))
		for k := range all {
			keys = append(keys, k)
		}
		return nil
	})
	sort.Strings(keys)
	return keys, err
}

// withLock runs fn while holding both the in-process mutex and the file lock.
// The flock handle is shared by all goroutines of this process and does not
// serialize them by itself.
func (s *FileStore) withLock(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	locked, err := s.lock.TryLockContext(ctx, 20*time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to lock store: %w", err)
	}
	if !locked {
		return fmt.Errorf("failed to lock store %s", s.path)
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			logging.Warn("KVStore", "Failed to release lock on %s: %v", s.path, err)
		}
	}()

	return fn()
}

func (s *FileStore) readLocked() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("failed to read store: %w", err)
	}
	if len(data) == 0 {
		return make(map[string]string), nil
	}

	all := make(map[string]string)
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("failed to parse store %s: %w", s.path, err)
	}
	return all, nil
}

func (s *FileStore) writeLocked(all map[string]string) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmpFile, err := os.CreateTemp(dir, filepath.Base(s.path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Chmod(0600); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	// Windows refuses to rename over an existing file.
	if err := os.Rename(tmpPath, s.path); err != nil {
		if runtime.GOOS == "windows" {
			_ = os.Remove(s.path)
			return os.Rename(tmpPath, s.path)
		}
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace store: %w", err)
	}
	return nil
}

// Watch notifies onChange when the backing file is written, created or
// replaced. Notifications are debounced by DefaultDebounceInterval.
func (s *FileStore) Watch(onChange func()) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory: atomic renames replace the inode, which would
	// silently end a watch on the file itself.
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	stopCh := make(chan struct{})
	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	trigger := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(DefaultDebounceInterval, func() {
			select {
			case <-stopCh:
			default:
				onChange()
			}
		})
	}

	target := filepath.Base(s.path)
	go func() {
		for {
			select {
			case <-stopCh:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
					continue
				}
				logging.Debug("KVStore", "Store file changed: %s (%s)", event.Name, event.Op)
				trigger()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Error("KVStore", err, "fsnotify error")
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(stopCh)
			timerMu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timerMu.Unlock()
			watcher.Close()
		})
	}

	logging.Debug("KVStore", "Watching %s for changes", s.path)
	return stop, nil
}
