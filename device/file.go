package device

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/tailored-agentic-units/shellpilot/remote"
)

const reloadDebounce = 100 * time.Millisecond

type fileDocument struct {
	Devices map[string]Device `yaml:"devices"`
}

// FileRegistry reads devices from a YAML document:
//
//	devices:
//	  pi-kitchen:
//	    host: 192.168.1.20
//	    username: pi
//	    password: raspberry
//
// Watch keeps the catalog in sync with edits made on disk. A document that
// fails to parse leaves the previous catalog in place.
type FileRegistry struct {
	path string

	mu      sync.RWMutex
	devices map[string]Device

	watcher *fsnotify.Watcher
	done    chan struct{}
	onError func(error)
	reloads chan struct{}
}

// FileOption configures a FileRegistry.
type FileOption func(*FileRegistry)

// WithReloadErrorHandler receives reload failures from the watcher.
func WithReloadErrorHandler(fn func(error)) FileOption {
	return func(r *FileRegistry) { r.onError = fn }
}

// OpenFile loads the document at path. A missing file is an empty catalog.
func OpenFile(path string, opts ...FileOption) (*FileRegistry, error) {
	r := &FileRegistry{
		path:    path,
		devices: make(map[string]Device),
		onError: func(error) {},
		reloads: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads the document.
func (r *FileRegistry) Reload() error {
	devices, err := readDocument(r.path)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.devices = devices
	r.mu.Unlock()

	select {
	case r.reloads <- struct{}{}:
	default:
	}
	return nil
}

// Reloaded signals after each successful reload. Only the latest signal is
// kept.
func (r *FileRegistry) Reloaded() <-chan struct{} {
	return r.reloads
}

// Watch starts reloading when the document changes. The parent directory is
// watched so editors that replace the file by rename are seen.
func (r *FileRegistry) Watch() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to create device directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	r.watcher = watcher
	r.done = make(chan struct{})
	go r.watch(watcher, r.done)
	return nil
}

func (r *FileRegistry) watch(watcher *fsnotify.Watcher, done chan struct{}) {
	target := filepath.Clean(r.path)
	var debounce <-chan time.Time

	for {
		select {
		case <-done:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				debounce = time.After(reloadDebounce)
			}
		case <-debounce:
			debounce = nil
			if err := r.Reload(); err != nil {
				r.onError(err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.onError(err)
		}
	}
}

func (r *FileRegistry) Lookup(_ context.Context, id string) (remote.Target, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return remote.Target{}, notFound(id)
	}
	return d.Target, nil
}

func (r *FileRegistry) List(_ context.Context) ([]Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedDevices(r.devices), nil
}

// Put adds or replaces a device and rewrites the document.
func (r *FileRegistry) Put(_ context.Context, d Device) error {
	if err := d.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]Device, len(r.devices)+1)
	for id, existing := range r.devices {
		next[id] = existing
	}
	next[d.ID] = d

	if err := writeDocument(r.path, next); err != nil {
		return err
	}
	r.devices = next
	return nil
}

// Remove deletes a device and rewrites the document.
func (r *FileRegistry) Remove(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.devices[id]; !ok {
		return notFound(id)
	}

	next := make(map[string]Device, len(r.devices))
	for key, existing := range r.devices {
		if key != id {
			next[key] = existing
		}
	}

	if err := writeDocument(r.path, next); err != nil {
		return err
	}
	r.devices = next
	return nil
}

// Close stops the watcher.
func (r *FileRegistry) Close() error {
	r.mu.Lock()
	watcher, done := r.watcher, r.done
	r.watcher, r.done = nil, nil
	r.mu.Unlock()

	if watcher == nil {
		return nil
	}
	close(done)
	return watcher.Close()
}

func readDocument(path string) (map[string]Device, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]Device), nil
		}
		return nil, fmt.Errorf("read device file: %w", err)
	}

	var doc fileDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse device file: %w", err)
	}

	devices := make(map[string]Device, len(doc.Devices))
	for id, d := range doc.Devices {
		d.ID = id
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("parse device file: %w", err)
		}
		devices[id] = d
	}
	return devices, nil
}

func writeDocument(path string, devices map[string]Device) error {
	data, err := yaml.Marshal(fileDocument{Devices: devices})
	if err != nil {
		return fmt.Errorf("encode device file: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("write device file: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".devices-*")
	if err != nil {
		return fmt.Errorf("write device file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write device file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write device file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write device file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write device file: %w", err)
	}
	return nil
}
