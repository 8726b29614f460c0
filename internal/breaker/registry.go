package breaker

import (
	"sync"

	"github.com/nyuchitech/mukoko-weather/internal/metrics"
	"go.uber.org/zap"
)

// Registry lazily creates and holds one Breaker per provider name, mirroring
// the original service's module-level singleton breakers.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
	logger   *zap.Logger
	metrics  *metrics.Collector
}

// NewRegistry creates an empty breaker registry. metrics may be nil, in
// which case state transitions are not exported.
func NewRegistry(logger *zap.Logger, m *metrics.Collector) *Registry {
	return &Registry{
		breakers: make(map[string]*Breaker),
		logger:   logger,
		metrics:  m,
	}
}

// Get returns the breaker for provider, creating it with its
// ProviderConfigs default (or the package default if unknown) on first use.
func (r *Registry) Get(provider string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[provider]; ok {
		return b
	}

	cfg, ok := ProviderConfigs[provider]
	if !ok {
		cfg = defaultConfig
	}

	b := New(provider, cfg, r.logger, r.onStateChange)
	r.breakers[provider] = b
	return b
}

func (r *Registry) onStateChange(provider string, from, to State) {
	if r.metrics != nil {
		r.metrics.RecordBreakerTransition(provider, from.String(), to.String(), to.Value())
	}
}

// Snapshot returns the current state of every breaker created so far, keyed
// by provider name. Useful for a /status endpoint.
func (r *Registry) Snapshot() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]string, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.State().String()
	}
	return out
}
