package speech

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/unalkalkan/VoiceReader/internal/storage"
	"github.com/unalkalkan/VoiceReader/pkg/types"
)

// Registry manages engine instances by name
type Registry struct {
	engines map[string]Engine
	mu      sync.RWMutex
}

// NewRegistry creates a new engine registry
func NewRegistry() *Registry {
	return &Registry{
		engines: make(map[string]Engine),
	}
}

// Register adds an engine; names must be unique
func (r *Registry) Register(engine Engine) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := engine.Name()
	if _, exists := r.engines[name]; exists {
		return fmt.Errorf("speech engine already registered: %s", name)
	}

	r.engines[name] = engine
	return nil
}

// Get retrieves an engine by name
func (r *Registry) Get(name string) (Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	engine, exists := r.engines[name]
	if !exists {
		return nil, fmt.Errorf("speech engine not found: %s", name)
	}

	return engine, nil
}

// List returns all registered engine names in sorted order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes all registered engines
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, engine := range r.engines {
		if err := engine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close speech engine %s: %w", name, err))
		}
	}

	return errors.Join(errs...)
}

// InitializeEngines creates engine instances from configuration. audio
// receives synthesized audio from HTTP engines.
func (r *Registry) InitializeEngines(cfg types.SpeechConfig, audio storage.Adapter) error {
	for _, engineCfg := range cfg.Engines {
		if !engineCfg.Enabled {
			continue
		}

		var engine Engine
		var err error
		switch engineCfg.Type {
		case "openai":
			engine, err = NewHTTPEngine(engineCfg, audio)
		case "stub", "":
			engine, err = NewStubEngine(engineCfg)
		default:
			err = fmt.Errorf("unknown engine type %q", engineCfg.Type)
		}
		if err != nil {
			return fmt.Errorf("failed to create speech engine %s: %w", engineCfg.Name, err)
		}

		if err := r.Register(engine); err != nil {
			return err
		}
	}

	return nil
}

// Default returns the configured default engine, or the only registered
// engine when no default is named
func (r *Registry) Default(cfg types.SpeechConfig) (Engine, error) {
	if cfg.DefaultEngine != "" {
		return r.Get(cfg.DefaultEngine)
	}

	names := r.List()
	if len(names) == 0 {
		return nil, fmt.Errorf("no speech engines registered")
	}
	return r.Get(names[0])
}
