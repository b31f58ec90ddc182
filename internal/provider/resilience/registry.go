package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// SourceHealth is the reported health of one registered source.
type SourceHealth struct {
	Name          string
	CircuitState  gobreaker.State
	Counts        gobreaker.Counts
	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string
}

// Healthy reports whether the source's circuit is closed.
func (h *SourceHealth) Healthy() bool {
	return h.CircuitState == gobreaker.StateClosed
}

// Registry tracks the clients for every configured source so the ops
// surface can report per-retailer health.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]*registeredSource
}

type registeredSource struct {
	client        *Client
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates an empty source registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]*registeredSource)}
}

// Register adds a source client under its name.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[name] = &registeredSource{client: client}
}

// RecordSuccess notes a successful fetch for a source.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sources[name]; ok {
		now := time.Now()
		s.lastSuccessAt = &now
	}
}

// RecordFailure notes a failed fetch for a source.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sources[name]; ok {
		now := time.Now()
		s.lastFailureAt = &now
		if err != nil {
			s.lastError = err.Error()
		}
	}
}

// Health returns the health of every registered source, sorted by name
// for stable ops output.
func (r *Registry) Health() []*SourceHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	health := make([]*SourceHealth, 0, len(r.sources))
	for name, s := range r.sources {
		health = append(health, &SourceHealth{
			Name:          name,
			CircuitState:  s.client.State(),
			Counts:        s.client.Counts(),
			LastSuccessAt: s.lastSuccessAt,
			LastFailureAt: s.lastFailureAt,
			LastError:     s.lastError,
		})
	}
	sort.Slice(health, func(i, j int) bool { return health[i].Name < health[j].Name })
	return health
}
