package source

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yomihub/yomihub-server/internal/errors"
)

// Status is one adapter's connectivity probe result.
type Status struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Online    bool   `json:"online"`
	LatencyMS int64  `json:"latencyMs"`
	Error     string `json:"error,omitzero"`
}

// Registry holds the configured adapters. Registration happens once at
// startup; reads after that are lock-free in practice but guarded anyway
// so tests can build registries on the fly.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	order    []string
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds an adapter. A second adapter with the same ID replaces
// the first.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := a.Info().ID
	if _, exists := r.adapters[id]; !exists {
		r.order = append(r.order, id)
	}
	r.adapters[id] = a
}

// Get returns the adapter with the given ID.
func (r *Registry) Get(id string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[id]
	if !ok {
		return nil, errors.NotFoundf("unknown source %q", id)
	}
	return a, nil
}

// Available lists adapter descriptions in registration order. Adult
// sources are omitted unless includeAdult is set.
func (r *Registry) Available(includeAdult bool) []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.order))
	for _, id := range r.order {
		info := r.adapters[id].Info()
		if info.Adult && !includeAdult {
			continue
		}
		infos = append(infos, info)
	}
	return infos
}

// IDs returns all registered adapter IDs, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, len(r.order))
	copy(ids, r.order)
	sort.Strings(ids)
	return ids
}

// CheckAll probes every adapter concurrently and reports per-source
// status. A failing probe never fails the call; the error lands in the
// source's Status entry.
func (r *Registry) CheckAll(ctx context.Context, timeout time.Duration) []Status {
	r.mu.RLock()
	adapters := make([]Adapter, 0, len(r.order))
	for _, id := range r.order {
		adapters = append(adapters, r.adapters[id])
	}
	r.mu.RUnlock()

	statuses := make([]Status, len(adapters))
	g, ctx := errgroup.WithContext(ctx)
	for i, a := range adapters {
		g.Go(func() error {
			info := a.Info()
			probeCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			err := a.CheckConnectivity(probeCtx)
			status := Status{
				ID:        info.ID,
				Name:      info.Name,
				Online:    err == nil,
				LatencyMS: time.Since(start).Milliseconds(),
			}
			if err != nil {
				status.Error = err.Error()
			}
			statuses[i] = status
			return nil
		})
	}
	g.Wait() //nolint:errcheck // goroutines never return errors
	return statuses
}
