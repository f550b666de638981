package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/danielpatrickdp/playstore-mlops/go-controller/internal/store"
)

// ErrNoModel is returned by Reload when no version has been registered yet.
var ErrNoModel = errors.New("no model available")

// Source is where the registry looks up the model to serve.
type Source interface {
	GetActive(env store.Environment) (store.ModelVersion, error)
	LatestCandidate() (store.ModelVersion, error)
}

// Origin tells which pointer a loaded model came from.
type Origin string

const (
	OriginProduction Origin = "production"
	OriginCandidate  Origin = "candidate"
)

// ModelInfo is the model currently held by the registry.
type ModelInfo struct {
	Version  store.ModelVersion `json:"version"`
	Origin   Origin             `json:"origin"`
	LoadedAt time.Time          `json:"loaded_at"`
}

// Registry owns the single reference to the model being served.
type Registry struct {
	source Source
	logger *zerolog.Logger

	// Debounce groups bursts of file events into one reload.
	Debounce time.Duration

	mu      sync.RWMutex
	current *ModelInfo
	hooks   []func(ModelInfo, error)
}

func New(source Source, logger *zerolog.Logger) *Registry {
	return &Registry{
		source:   source,
		logger:   logger,
		Debounce: 250 * time.Millisecond,
	}
}

// OnReload registers fn to run after every reload attempt. On failure fn receives
// the model still being served (zero if none) and the error.
func (r *Registry) OnReload(fn func(ModelInfo, error)) {
	r.mu.Lock()
	r.hooks = append(r.hooks, fn)
	r.mu.Unlock()
}

// Current returns the loaded model, if any.
func (r *Registry) Current() (ModelInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == nil {
		return ModelInfo{}, false
	}
	return *r.current, true
}

// Reload resolves the production model, falling back to the latest candidate.
// On failure the previously loaded model stays in place.
func (r *Registry) Reload() (ModelInfo, error) {
	info, err := r.resolve()

	r.mu.Lock()
	if err == nil {
		r.current = &info
	} else if r.current != nil {
		info = *r.current
	} else {
		info = ModelInfo{}
	}
	hooks := append([]func(ModelInfo, error){}, r.hooks...)
	r.mu.Unlock()

	if err != nil {
		r.logger.Warn().Err(err).Msg("model reload failed")
	} else {
		r.logger.Info().
			Str("version", info.Version.VersionID).
			Str("origin", string(info.Origin)).
			Float64("accuracy", info.Version.Metrics.Accuracy).
			Msg("model loaded")
	}
	for _, fn := range hooks {
		fn(info, err)
	}
	return info, err
}

func (r *Registry) resolve() (ModelInfo, error) {
	origin := OriginProduction
	v, err := r.source.GetActive(store.EnvProduction)
	if errors.Is(err, store.ErrNoActive) {
		origin = OriginCandidate
		v, err = r.source.LatestCandidate()
		if errors.Is(err, store.ErrNotFound) {
			return ModelInfo{}, ErrNoModel
		}
	}
	if err != nil {
		return ModelInfo{}, fmt.Errorf("resolve model: %w", err)
	}

	info, err := os.Stat(v.ArtifactPath)
	if err != nil {
		return ModelInfo{}, fmt.Errorf("load artifact %s: %w", v.ArtifactPath, err)
	}
	if info.IsDir() {
		return ModelInfo{}, fmt.Errorf("load artifact %s: is a directory", v.ArtifactPath)
	}
	return ModelInfo{Version: v, Origin: origin, LoadedAt: time.Now().UTC()}, nil
}

// Watch reloads whenever one of paths changes, until ctx is done.
func (r *Registry) Watch(ctx context.Context, paths ...string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	for _, p := range paths {
		if err := w.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
	}

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			r.logger.Debug().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("watched path changed")
			pending = time.After(r.Debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Warn().Err(err).Msg("watcher error")
		case <-pending:
			pending = nil
			r.Reload()
		}
	}
}
