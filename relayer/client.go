// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
	"go.uber.org/zap"

	"github.com/luxfi/planetbounce"
)

// Client is the typed HTTP client the encryption and decryption flows use to
// reach the coprocessor service, normally via a bridge base URL such as
// "http://host/api/relayer". It never retries: ledger-level and
// authorization-level failures must surface to the caller unchanged.
type Client struct {
	log     *zap.Logger
	baseURL string
	http    *http.Client
}

func NewClient(log *zap.Logger, baseURL string) *Client {
	return &Client{
		log:     log,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: defaultUpstreamTimeout},
	}
}

// KeyURL fetches service readiness and signing metadata.
func (c *Client) KeyURL(ctx context.Context) (*KeyURLResponse, error) {
	var out KeyURLResponse
	if err := c.get(ctx, KeyURLPath, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EncryptInput asks the service for a fresh encrypted input bound to
// (contract, user).
func (c *Client) EncryptInput(ctx context.Context, contract, user common.Address, value uint64) (*planetbounce.EncryptedInput, error) {
	var out InputResponse
	err := c.post(ctx, InputPath, InputRequest{
		ContractAddress: contract.Hex(),
		UserAddress:     user.Hex(),
		Value:           value,
	}, &out)
	if err != nil {
		return nil, err
	}

	handle, err := planetbounce.ParseHandle(out.Handle)
	if err != nil {
		return nil, fmt.Errorf("%w: service returned malformed handle: %s", planetbounce.ErrEncryptionFailed, err)
	}
	proof, err := hexutil.Decode(out.InputProof)
	if err != nil {
		return nil, fmt.Errorf("%w: service returned malformed proof: %s", planetbounce.ErrEncryptionFailed, err)
	}
	return planetbounce.NewEncryptedInput(handle, proof)
}

// UserDecrypt submits a decryption authorization credential and returns the
// decrypted value map.
func (c *Client) UserDecrypt(ctx context.Context, req *UserDecryptRequest) (map[string]uint64, error) {
	var out UserDecryptResponse
	if err := c.post(ctx, UserDecryptPath, req, &out); err != nil {
		return nil, err
	}
	return out.Values, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", planetbounce.ErrRelayerUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s", planetbounce.ErrRelayerUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return classifyServiceError(resp.StatusCode, payload)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("could not decode service response: %w", err)
	}
	return nil
}

// classifyServiceError maps an error response onto the protocol taxonomy so
// callers can distinguish authorization failures from outages.
func classifyServiceError(statusCode int, payload []byte) error {
	msg := strings.TrimSpace(string(payload))
	var errResp ErrorResponse
	if err := json.Unmarshal(payload, &errResp); err == nil && errResp.Error != "" {
		msg = errResp.Error
	}

	switch {
	case statusCode == http.StatusForbidden || statusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", planetbounce.ErrNotAuthorized, msg)
	case statusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", planetbounce.ErrResultNotReady, msg)
	case statusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: service returned %d: %s", planetbounce.ErrRelayerUnavailable, statusCode, msg)
	default:
		return fmt.Errorf("service returned %d: %s", statusCode, msg)
	}
}
