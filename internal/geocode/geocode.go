// Package geocode defines the boundary to the external address-validation
// service. The contract is deliberately total: verification never raises,
// every failure degrades to an unverified result echoing the input.
package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// Result is the outcome of validating one address.
type Result struct {
	Verified          bool
	NormalizedAddress string
}

// Geocoder validates a free-text address against an authoritative source.
type Geocoder interface {
	Verify(ctx context.Context, address string) Result
}

// HTTPClient calls a maps-style address validation endpoint.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPClient builds a geocoder client against baseURL.
func NewHTTPClient(baseURL, apiKey string, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger.Named("geocode"),
	}
}

type validateResponse struct {
	Verified          bool   `json:"verified"`
	NormalizedAddress string `json:"normalized_address"`
}

// Verify validates the address. On quota exhaustion, denial, no results, or
// any transport failure it returns verified=false with the input unchanged.
func (c *HTTPClient) Verify(ctx context.Context, address string) Result {
	unverified := Result{Verified: false, NormalizedAddress: address}

	endpoint := c.baseURL + "/v1/validate?" + url.Values{
		"address": {address},
		"key":     {c.apiKey},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.logger.Warn("geocode request build failed", zap.Error(err))
		return unverified
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("geocode call failed", zap.Error(err))
		return unverified
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Warn("geocode returned non-ok status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return unverified
	}

	var validated validateResponse
	if err := json.NewDecoder(resp.Body).Decode(&validated); err != nil {
		c.logger.Warn("geocode response decode failed", zap.Error(err))
		return unverified
	}

	if !validated.Verified || validated.NormalizedAddress == "" {
		return unverified
	}
	return Result{Verified: true, NormalizedAddress: validated.NormalizedAddress}
}
