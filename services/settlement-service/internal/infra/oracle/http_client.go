// services/settlement-service/internal/infra/oracle/http_client.go
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/ports/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// HTTPClient talks to the threshold-ECDSA oracle gateway.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type publicKeyRequest struct {
	DerivationPath []hexutil.Bytes `json:"derivationPath"`
}

type publicKeyResponse struct {
	PublicKey hexutil.Bytes `json:"publicKey"`
}

type signRequest struct {
	DerivationPath []hexutil.Bytes `json:"derivationPath"`
	MessageHash    common.Hash     `json:"messageHash"`
}

type signResponse struct {
	Signature hexutil.Bytes `json:"signature"`
}

func encodePath(path chain.DerivationPath) []hexutil.Bytes {
	out := make([]hexutil.Bytes, len(path))
	for i, p := range path {
		out[i] = p
	}
	return out
}

func (c *HTTPClient) PublicKey(ctx context.Context, path chain.DerivationPath) ([]byte, error) {
	var resp publicKeyResponse
	if err := c.post(ctx, "/v1/public-key", publicKeyRequest{DerivationPath: encodePath(path)}, &resp); err != nil {
		return nil, err
	}
	return resp.PublicKey, nil
}

func (c *HTTPClient) SignHash(ctx context.Context, path chain.DerivationPath, hash common.Hash) ([]byte, error) {
	var resp signResponse
	if err := c.post(ctx, "/v1/sign", signRequest{DerivationPath: encodePath(path), MessageHash: hash}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Signature) != 64 {
		return nil, fmt.Errorf("oracle returned %d-byte signature", len(resp.Signature))
	}
	return resp.Signature, nil
}

func (c *HTTPClient) post(ctx context.Context, endpoint string, body, out interface{}) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal oracle request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewBuffer(reqBody))
	if err != nil {
		return fmt.Errorf("failed to create oracle request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("oracle %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("oracle %s: status %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode oracle response: %w", err)
	}
	return nil
}
