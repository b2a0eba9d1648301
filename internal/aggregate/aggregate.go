// Package aggregate fans one catalog request out over several source
// adapters and merges the results. Each source runs behind its own error
// boundary; the whole batch races a global deadline, and sources that
// miss it contribute nothing.
package aggregate

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yomihub/yomihub-server/internal/domain"
	"github.com/yomihub/yomihub-server/internal/source"
	"github.com/yomihub/yomihub-server/internal/source/routing"
)

const defaultTimeout = 20 * time.Second

// Mode selects which listing operation fans out.
type Mode string

const (
	ModeSearch  Mode = "search"
	ModePopular Mode = "popular"
	ModeLatest  Mode = "latest"
)

// Request describes one aggregation call.
type Request struct {
	Mode  Mode
	Query string

	// Sources pins the target set explicitly. When empty, Category is
	// resolved through the routing table; when that also misses, all
	// available sources are used, honoring the adult policy.
	Sources  []string
	Category string

	Page         int
	Limit        int
	Language     string
	IncludeAdult bool

	IncludeTags   []string
	ExcludeTags   []string
	StatusFilter  string
	Sort          source.Sort
}

// Result is the merged outcome. Sources and SourceResultCounts always
// name every source actually queried, including those that returned
// nothing or failed.
type Result struct {
	Series             []domain.Series
	Sources            []string
	SourceResultCounts map[string]int
}

// Orchestrator coordinates fan-out over the registry.
type Orchestrator struct {
	registry *source.Registry
	routes   *routing.Table
	logger   *slog.Logger
	timeout  time.Duration
}

func NewOrchestrator(registry *source.Registry, routes *routing.Table, logger *slog.Logger, timeout time.Duration) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Orchestrator{
		registry: registry,
		routes:   routes,
		logger:   logger,
		timeout:  timeout,
	}
}

// selectTargets resolves the adapters to query for a request.
func (o *Orchestrator) selectTargets(req Request) []source.Adapter {
	var ids []string
	switch {
	case len(req.Sources) > 0:
		ids = req.Sources
	case req.Category != "":
		if routed, adult, ok := o.routes.Resolve(req.Category); ok {
			if adult && !req.IncludeAdult {
				return nil
			}
			ids = routed
		}
	}

	if len(ids) == 0 {
		var adapters []source.Adapter
		for _, info := range o.registry.Available(req.IncludeAdult) {
			if a, err := o.registry.Get(info.ID); err == nil {
				adapters = append(adapters, a)
			}
		}
		return adapters
	}

	adapters := make([]source.Adapter, 0, len(ids))
	for _, id := range ids {
		a, err := o.registry.Get(id)
		if err != nil {
			o.logger.Warn("unknown source in target set", "source", id)
			continue
		}
		if a.Info().Adult && !req.IncludeAdult {
			continue
		}
		adapters = append(adapters, a)
	}
	return adapters
}

// Run executes the fan-out and merge.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	adapters := o.selectTargets(req)

	result := &Result{
		Series:             []domain.Series{},
		Sources:            make([]string, 0, len(adapters)),
		SourceResultCounts: make(map[string]int, len(adapters)),
	}
	for _, a := range adapters {
		id := a.Info().ID
		result.Sources = append(result.Sources, id)
		result.SourceResultCounts[id] = 0
	}
	if len(adapters) == 0 {
		return result, nil
	}

	opts := source.Options{
		Page:         req.Page,
		Limit:        req.Limit,
		Language:     req.Language,
		Category:     req.Category,
		Sort:         req.Sort,
		IncludeAdult: req.IncludeAdult,
		IncludeTags:  req.IncludeTags,
		ExcludeTags:  req.ExcludeTags,
	}

	// The deadline is a hard ceiling: a source that has not answered by
	// then is recorded with zero results and its response discarded.
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	var mu sync.Mutex
	perSource := make(map[string][]domain.Series, len(adapters))

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range adapters {
		g.Go(func() error {
			id := a.Info().ID
			series, err := o.query(gctx, a, req.Mode, req.Query, opts)
			if err != nil {
				o.logger.Warn("source query failed", "source", id, "mode", req.Mode, "error", err)
				return nil
			}
			mu.Lock()
			perSource[id] = series
			mu.Unlock()
			return nil
		})
	}
	g.Wait() //nolint:errcheck // per-source failures are absorbed above

	// Merge in registration order so output is stable regardless of
	// which source answered first.
	seen := make(map[string]bool)
	for _, id := range result.Sources {
		series := perSource[id]
		result.SourceResultCounts[id] = len(series)
		for _, s := range series {
			if seen[s.ID] {
				continue
			}
			seen[s.ID] = true
			result.Series = append(result.Series, s)
		}
	}

	result.Series = filterSeries(result.Series, req)
	sortSeries(result.Series, req.Sort)

	if limit := req.Limit; limit > 0 && len(result.Series) > limit {
		result.Series = result.Series[:limit]
	}
	return result, nil
}

func (o *Orchestrator) query(ctx context.Context, a source.Adapter, mode Mode, query string, opts source.Options) ([]domain.Series, error) {
	switch mode {
	case ModePopular:
		return a.Popular(ctx, opts)
	case ModeLatest:
		return a.Latest(ctx, opts)
	default:
		if query == "" {
			return a.Popular(ctx, opts)
		}
		return a.Search(ctx, query, opts)
	}
}

// filterSeries applies tag and status filters post-merge. Tag matching
// is case-insensitive set membership; status is a substring match.
func filterSeries(series []domain.Series, req Request) []domain.Series {
	if len(req.IncludeTags) == 0 && len(req.ExcludeTags) == 0 && req.StatusFilter == "" {
		return series
	}

	statusFilter := strings.ToLower(req.StatusFilter)
	out := series[:0]
	for _, s := range series {
		if !matchesTags(s, req.IncludeTags, req.ExcludeTags) {
			continue
		}
		if statusFilter != "" && !strings.Contains(string(s.Status), statusFilter) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func matchesTags(s domain.Series, include, exclude []string) bool {
	for _, tag := range include {
		if !s.HasTag(tag) {
			return false
		}
	}
	for _, tag := range exclude {
		if s.HasTag(tag) {
			return false
		}
	}
	return true
}

// sortSeries orders the merged set. Arrival order is preserved unless a
// sort key says otherwise.
func sortSeries(series []domain.Series, key source.Sort) {
	switch key {
	case source.SortRating:
		sort.SliceStable(series, func(i, j int) bool {
			return series[i].Rating > series[j].Rating
		})
	case source.SortLatest:
		sort.SliceStable(series, func(i, j int) bool {
			return series[i].UpdatedAt.After(series[j].UpdatedAt)
		})
	}
}
