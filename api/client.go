package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/ruteri/context-factory/interfaces"
)

// Client calls a running context factory over HTTP.
type Client struct {
	baseURL    string
	caller     interfaces.ContextName
	httpClient *http.Client
}

// NewClient creates a factory API client. caller is sent as the caller
// identity on every request that needs one.
func NewClient(baseURL string, caller interfaces.ContextName) *Client {
	return &Client{
		baseURL:    baseURL,
		caller:     caller,
		httpClient: &http.Client{},
	}
}

// ReplacePayload uploads a new payload. The payload travels as the raw,
// unstructured request body - callers must not wrap the bytes in any
// envelope.
func (c *Client) ReplacePayload(ctx context.Context, payload []byte) (PayloadInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/admin/payload", bytes.NewReader(payload))
	if err != nil {
		return PayloadInfo{}, err
	}
	req.Header.Set(CallerIdentityHeader, c.caller.String())
	req.Header.Set("Content-Type", "application/octet-stream")

	var info PayloadInfo
	if err := c.do(req, &info); err != nil {
		return PayloadInfo{}, err
	}
	return info, nil
}

// ReadPayload fetches the current payload bytes.
func (c *Client) ReadPayload(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/public/payload", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp)
	}
	return io.ReadAll(resp.Body)
}

// Provision asks the factory to create a child named shortName under its
// own identity.
func (c *Client) Provision(ctx context.Context, shortName string, provReq ProvisionRequest) (ProvisionResponse, error) {
	body, err := json.Marshal(provReq)
	if err != nil {
		return ProvisionResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/public/provision/"+shortName, bytes.NewReader(body))
	if err != nil {
		return ProvisionResponse{}, err
	}
	req.Header.Set(CallerIdentityHeader, c.caller.String())
	req.Header.Set("Content-Type", "application/json")

	var provResp ProvisionResponse
	if err := c.do(req, &provResp); err != nil {
		return ProvisionResponse{}, err
	}
	return provResp, nil
}

// Info fetches the factory's public parameters.
func (c *Client) Info(ctx context.Context) (InfoResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/public/info", nil)
	if err != nil {
		return InfoResponse{}, err
	}

	var info InfoResponse
	if err := c.do(req, &info); err != nil {
		return InfoResponse{}, err
	}
	return info, nil
}

// do executes the request and decodes a JSON response into out.
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return c.statusError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// statusError converts a non-success response into an error, preserving the
// computed deposit requirement when the server reported one.
func (c *Client) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var errResp ErrorResponse
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		if errResp.Required != nil {
			return fmt.Errorf("%s (status %d, required %s)", errResp.Error, resp.StatusCode, errResp.Required)
		}
		return fmt.Errorf("%s (status %d)", errResp.Error, resp.StatusCode)
	}
	return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
}
