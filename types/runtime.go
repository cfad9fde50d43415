// Package types defines core domain types for the tether client.
package types

import (
	"fmt"
	"strings"
)

// Variant selects the hardware class of a remote runtime.
type Variant string

const (
	// VariantGPU requests a GPU-accelerated runtime.
	VariantGPU Variant = "gpu"
	// VariantTPU requests a TPU-accelerated runtime.
	VariantTPU Variant = "tpu"
	// VariantDefault requests a CPU-only runtime.
	VariantDefault Variant = "default"
)

// ParseVariant parses a variant string from flags or config.
// Empty input resolves to VariantDefault.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gpu":
		return VariantGPU, nil
	case "tpu":
		return VariantTPU, nil
	case "", "cpu", "default":
		return VariantDefault, nil
	default:
		return "", fmt.Errorf("invalid variant %q: must be gpu, tpu, or cpu", s)
	}
}

// RuntimePhase is the provider-reported lifecycle phase of a runtime.
type RuntimePhase string

const (
	PhaseProvisioning  RuntimePhase = "provisioning"
	PhaseQueued        RuntimePhase = "queued"
	PhaseReady         RuntimePhase = "ready"
	PhaseFailed        RuntimePhase = "failed"
	PhaseQuotaExceeded RuntimePhase = "quota_exceeded"
	PhaseTerminated    RuntimePhase = "terminated"
)

// IsTerminalFailure returns true for phases the acquisition poll loop
// must fail fast on without further polling.
func (p RuntimePhase) IsTerminalFailure() bool {
	return p == PhaseFailed || p == PhaseQuotaExceeded || p == PhaseTerminated
}

// ProxyEndpoint addresses one runtime's terminal subsystem.
type ProxyEndpoint struct {
	// URL is the base proxy URL (https://... for provisioned runtimes).
	URL string `json:"url" yaml:"url"`
	// Token is the opaque proxy access token paired with the URL.
	Token string `json:"token" yaml:"token"`
}

// Validate checks that the endpoint is connectable.
func (p *ProxyEndpoint) Validate() error {
	if p.URL == "" {
		return fmt.Errorf("proxy endpoint missing URL")
	}
	if p.Token == "" {
		return fmt.Errorf("proxy endpoint missing token")
	}
	return nil
}

// RuntimeInfo is the provider's view of a runtime, as returned by the
// list and status APIs. Phase and proxy fields change across polls.
type RuntimeInfo struct {
	ID      string        `json:"id"`
	Label   string        `json:"label"`
	Variant Variant       `json:"variant"`
	Phase   RuntimePhase  `json:"phase"`
	Proxy   ProxyEndpoint `json:"proxy"`
}

// Connectable reports whether the runtime is ready with a usable
// proxy endpoint. A ready phase alone is not sufficient: the provider
// reports ready slightly before the proxy URL is published.
func (r *RuntimeInfo) Connectable() bool {
	return r.Phase == PhaseReady && r.Proxy.URL != ""
}

// AssignedRuntime is the result of runtime acquisition. Immutable once
// returned; owned exclusively by the caller for one channel session.
type AssignedRuntime struct {
	ID      string        `json:"id"`
	Label   string        `json:"label"`
	Variant Variant       `json:"variant"`
	Proxy   ProxyEndpoint `json:"proxy"`
}

// Assigned converts a connectable RuntimeInfo into an AssignedRuntime.
// Returns an error if the runtime is not connectable.
func (r *RuntimeInfo) Assigned() (*AssignedRuntime, error) {
	if !r.Connectable() {
		return nil, fmt.Errorf("runtime %s is not connectable (phase=%s)", r.ID, r.Phase)
	}
	if err := r.Proxy.Validate(); err != nil {
		return nil, fmt.Errorf("runtime %s: %w", r.ID, err)
	}
	return &AssignedRuntime{
		ID:      r.ID,
		Label:   r.Label,
		Variant: r.Variant,
		Proxy:   r.Proxy,
	}, nil
}
