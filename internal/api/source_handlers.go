package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/yomihub/yomihub-server/internal/source"
)

const probeTimeout = 5 * time.Second

func (s *Server) registerSourceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-sources",
		Method:      http.MethodGet,
		Path:        "/api/v1/sources",
		Summary:     "List sources",
		Tags:        []string{"Sources"},
	}, s.handleListSources)

	huma.Register(s.api, huma.Operation{
		OperationID: "sources-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/sources/status",
		Summary:     "Source connectivity",
		Description: "Probes every source concurrently and reports reachability and latency",
		Tags:        []string{"Sources"},
	}, s.handleSourcesStatus)

	huma.Register(s.api, huma.Operation{
		OperationID: "source-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/sources/{id}/status",
		Summary:     "Probe one source",
		Tags:        []string{"Sources"},
	}, s.handleSourceStatus)
}

// === DTOs ===

// SourceEntry describes one configured source.
type SourceEntry struct {
	ID           string   `json:"id" doc:"Source ID"`
	Name         string   `json:"name" doc:"Display name"`
	BaseURL      string   `json:"baseUrl" doc:"Upstream base URL"`
	Language     string   `json:"language" doc:"Primary language"`
	Adult        bool     `json:"adult" doc:"Whether the source carries adult content"`
	Capabilities []string `json:"capabilities" doc:"Supported operations"`
}

// SourceListInput parameterizes the source listing.
type SourceListInput struct {
	IncludeAdult bool `query:"adult" doc:"Include adult sources"`
}

// SourceListOutput wraps the source listing.
type SourceListOutput struct {
	Body struct {
		Sources []SourceEntry `json:"sources"`
	}
}

// SourceStatusOutput wraps the connectivity report.
type SourceStatusOutput struct {
	Body struct {
		Sources []source.Status `json:"sources"`
	}
}

// SingleStatusOutput wraps one source's probe result.
type SingleStatusOutput struct {
	Body source.Status
}

// === Handlers ===

func (s *Server) handleListSources(_ context.Context, input *SourceListInput) (*SourceListOutput, error) {
	infos := s.deps.Registry.Available(input.IncludeAdult || s.deps.IncludeAdultDefault)

	out := &SourceListOutput{}
	out.Body.Sources = make([]SourceEntry, 0, len(infos))
	for _, info := range infos {
		out.Body.Sources = append(out.Body.Sources, SourceEntry{
			ID:           info.ID,
			Name:         info.Name,
			BaseURL:      info.BaseURL,
			Language:     info.Language,
			Adult:        info.Adult,
			Capabilities: info.Caps.Names(),
		})
	}
	return out, nil
}

func (s *Server) handleSourcesStatus(ctx context.Context, _ *struct{}) (*SourceStatusOutput, error) {
	out := &SourceStatusOutput{}
	out.Body.Sources = s.deps.Registry.CheckAll(ctx, probeTimeout)
	return out, nil
}

func (s *Server) handleSourceStatus(ctx context.Context, input *IDInput) (*SingleStatusOutput, error) {
	adapter, err := s.deps.Registry.Get(input.ID)
	if err != nil {
		return nil, err
	}
	info := adapter.Info()

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	probeErr := adapter.CheckConnectivity(probeCtx)

	status := source.Status{
		ID:        info.ID,
		Name:      info.Name,
		Online:    probeErr == nil,
		LatencyMS: time.Since(start).Milliseconds(),
	}
	if probeErr != nil {
		status.Error = probeErr.Error()
	}
	return &SingleStatusOutput{Body: status}, nil
}
