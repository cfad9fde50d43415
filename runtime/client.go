package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/justapithecus/tether/auth"
	"github.com/justapithecus/tether/iox"
	"github.com/justapithecus/tether/types"
)

// ClientAgent identifies this client to the provider and the terminal
// proxy. Both check it.
const ClientAgent = "tether/" + types.Version

// defaultHTTPTimeout bounds individual provider API calls. The overall
// acquisition deadline is enforced separately by the Manager.
const defaultHTTPTimeout = 30 * time.Second

// StatusClient is the provider API surface the Manager depends on.
// Satisfied by *APIClient; tests supply fakes.
type StatusClient interface {
	// ListRuntimes returns all runtimes owned by the caller.
	ListRuntimes(ctx context.Context) ([]types.RuntimeInfo, error)
	// CreateRuntime requests provisioning of a new runtime.
	CreateRuntime(ctx context.Context, variant types.Variant) (*types.RuntimeInfo, error)
	// GetRuntime returns the current status of one runtime.
	GetRuntime(ctx context.Context, id string) (*types.RuntimeInfo, error)
}

// APIClient talks to the runtime provider's HTTP API.
type APIClient struct {
	baseURL string
	tokens  auth.TokenSource
	http    *http.Client
}

// NewAPIClient creates a provider API client.
func NewAPIClient(baseURL string, tokens auth.TokenSource) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		tokens:  tokens,
		http:    &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// runtimeListResponse is the provider's list payload.
type runtimeListResponse struct {
	Runtimes []types.RuntimeInfo `json:"runtimes"`
}

// ListRuntimes implements StatusClient.
func (c *APIClient) ListRuntimes(ctx context.Context) ([]types.RuntimeInfo, error) {
	var resp runtimeListResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/runtimes", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Runtimes, nil
}

// createRuntimeRequest is the provider's creation payload.
type createRuntimeRequest struct {
	Variant types.Variant `json:"variant"`
}

// CreateRuntime implements StatusClient.
func (c *APIClient) CreateRuntime(ctx context.Context, variant types.Variant) (*types.RuntimeInfo, error) {
	var info types.RuntimeInfo
	if err := c.do(ctx, http.MethodPost, "/api/v1/runtimes", createRuntimeRequest{Variant: variant}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetRuntime implements StatusClient.
func (c *APIClient) GetRuntime(ctx context.Context, id string) (*types.RuntimeInfo, error) {
	var info types.RuntimeInfo
	if err := c.do(ctx, http.MethodGet, "/api/v1/runtimes/"+id, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// do performs one authenticated provider API call and decodes the
// JSON response into result. Non-2xx statuses are classified into the
// acquisition error taxonomy.
func (c *APIClient) do(ctx context.Context, method, path string, body, result any) error {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return &AcquisitionError{
			Kind: AcquisitionAuth,
			Msg:  "token provider failed",
			Err:  err,
		}
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Client-Agent", ClientAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &AcquisitionError{
			Kind: AcquisitionUnavailable,
			Msg:  fmt.Sprintf("%s %s failed", method, path),
			Err:  err,
		}
	}
	defer iox.DiscardClose(resp.Body)

	if err := classifyStatus(resp, method, path); err != nil {
		return err
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode %s %s response: %w", method, path, err)
		}
	}
	return nil
}

// classifyStatus maps non-2xx provider responses onto the acquisition
// error taxonomy.
func classifyStatus(resp *http.Response, method, path string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := fmt.Sprintf("%s %s returned %s: %s", method, path, resp.Status, bytes.TrimSpace(snippet))

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AcquisitionError{Kind: AcquisitionAuth, Msg: msg}
	case http.StatusTooManyRequests, http.StatusPaymentRequired:
		return &AcquisitionError{Kind: AcquisitionQuota, Msg: msg}
	default:
		return &AcquisitionError{Kind: AcquisitionUnavailable, Msg: msg}
	}
}
