package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Overlay holds settings that may change while the process runs.
type Overlay struct {
	Jar struct {
		Title string `yaml:"title"`
		ID    string `yaml:"id"`
	} `yaml:"jar"`
}

// Loader reads the YAML overlay file and watches it for changes.
type Loader struct {
	path   string
	logger zerolog.Logger

	mu       sync.RWMutex
	current  Overlay
	onChange []func(Overlay)
}

// NewLoader performs the initial load. A missing file is an error; callers
// skip the loader entirely when no file is configured.
func NewLoader(path string, logger zerolog.Logger) (*Loader, error) {
	l := &Loader{path: path, logger: logger.With().Str("component", "config").Logger()}
	cfg, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = cfg
	return l, nil
}

func (l *Loader) Overlay() Overlay {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// OnChange registers fn to run after every successful reload.
func (l *Loader) OnChange(fn func(Overlay)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch reloads the overlay whenever the file is written or replaced. The
// parent directory is watched so editors that rename over the file are seen.
func (l *Loader) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(l.path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("config watcher add %s: %w", l.path, err)
	}
	target := filepath.Clean(l.path)

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					if _, err := l.Reload(); err != nil {
						l.logger.Warn().Err(err).Msg("config: reload failed, keeping previous overlay")
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				l.logger.Warn().Err(err).Msg("config: watcher error")
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }, nil
}

// Reload re-reads the file and notifies subscribers.
func (l *Loader) Reload() (Overlay, error) {
	cfg, err := l.load()
	if err != nil {
		return Overlay{}, err
	}
	l.mu.Lock()
	l.current = cfg
	callbacks := make([]func(Overlay), len(l.onChange))
	copy(callbacks, l.onChange)
	l.mu.Unlock()

	l.logger.Info().Str("jar_title", cfg.Jar.Title).Str("jar_id", cfg.Jar.ID).Msg("config: overlay reloaded")
	for _, fn := range callbacks {
		fn(cfg)
	}
	return cfg, nil
}

func (l *Loader) load() (Overlay, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return Overlay{}, fmt.Errorf("read config %s: %w", l.path, err)
	}
	var cfg Overlay
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Overlay{}, fmt.Errorf("parse config %s: %w", l.path, err)
	}
	cfg.Jar.Title = strings.TrimSpace(cfg.Jar.Title)
	cfg.Jar.ID = strings.TrimSpace(cfg.Jar.ID)
	return cfg, nil
}
