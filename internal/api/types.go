package api

import (
	"github.com/castlab/enginerelay/internal/engine"
)

// AnalyseRequest is the body of POST /api/external-engine/{id}/analyse.
type AnalyseRequest struct {
	ClientSecret engine.ClientSecret `json:"clientSecret"`
	Work         engine.Work         `json:"work"`
}

// AcquireRequest is the body of POST /api/external-engine/work.
type AcquireRequest struct {
	ProviderSecret engine.ProviderSecret `json:"providerSecret"`
}

// AcquireResponse hands a dispatched job to a provider.
type AcquireResponse struct {
	ID     engine.JobID  `json:"id"`
	Work   engine.Work   `json:"work"`
	Engine engine.Engine `json:"engine"`
}

// RegisterResponse is the one response that ever carries the client secret.
type RegisterResponse struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	ClientSecret engine.ClientSecret `json:"clientSecret"`
	MaxThreads   int                 `json:"maxThreads"`
	MaxHash      int                 `json:"maxHash"`
	Variants     []engine.Variant    `json:"variants"`
}

// HealthzResponse reports liveness and broker depth.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	JobsQueued    int    `json:"jobs_queued"`
	JobsInFlight  int    `json:"jobs_in_flight"`
	Engines       int    `json:"engines"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
