package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"System"},
	}, s.handleHealth)
}

// HealthOutput reports server liveness.
type HealthOutput struct {
	Body struct {
		Status  string `json:"status" doc:"Always healthy when reachable"`
		Version string `json:"version" doc:"Server version"`
		Sources int    `json:"sources" doc:"Configured source count"`
	}
}

func (s *Server) handleHealth(_ context.Context, _ *struct{}) (*HealthOutput, error) {
	out := &HealthOutput{}
	out.Body.Status = "healthy"
	out.Body.Version = Version
	out.Body.Sources = len(s.deps.Registry.IDs())
	return out, nil
}
