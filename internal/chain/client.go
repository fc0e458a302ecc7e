package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/lumera-social/lumera-backend/pkg/config"
	"github.com/lumera-social/lumera-backend/pkg/errors"
)

// Client is a JSON-RPC client for the settlement network node.
type Client struct {
	rpcURL        string
	tokenContract string
	decimals      int32
	httpClient    *http.Client
}

var _ Gateway = (*Client)(nil)

// NewClient builds a settlement network client from config.
func NewClient(cfg config.ChainConfig) (*Client, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("chain rpc url is required")
	}
	if cfg.TokenContract == "" {
		return nil, fmt.Errorf("token contract address is required")
	}
	return &Client{
		rpcURL:        cfg.RPCURL,
		tokenContract: cfg.TokenContract,
		decimals:      int32(cfg.TokenDecimals),
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
	}, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int    `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// BalanceOf reports the token balance of an address in whole tokens.
func (c *Client) BalanceOf(ctx context.Context, address string) (decimal.Decimal, error) {
	result, err := c.call(ctx, "token_balanceOf", c.tokenContract, address)
	if err != nil {
		return decimal.Zero, err
	}

	var raw string
	if err := json.Unmarshal(result, &raw); err != nil {
		return decimal.Zero, errors.Wrap(errors.CodeSettlementFailed, err, "settlement network returned malformed balance")
	}
	units, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.Wrap(errors.CodeSettlementFailed, err, "settlement network returned malformed balance")
	}

	return units.Shift(-c.decimals), nil
}

// Transfer submits a signed token transfer and returns the settlement
// reference assigned by the network.
func (c *Client) Transfer(ctx context.Context, req TransferRequest) (string, error) {
	if req.Amount <= 0 {
		return "", errors.New(errors.CodeValidation, "transfer amount must be positive")
	}

	units := decimal.NewFromInt(req.Amount).Shift(c.decimals)
	params := map[string]string{
		"contract":   c.tokenContract,
		"from":       req.FromAddress,
		"to":         req.ToAddress,
		"amount":     units.String(),
		"credential": req.Credential,
	}

	result, err := c.call(ctx, "token_transfer", params)
	if err != nil {
		return "", err
	}

	var ref string
	if err := json.Unmarshal(result, &ref); err != nil {
		return "", errors.Wrap(errors.CodeSettlementFailed, err, "settlement network returned malformed transfer reference")
	}
	if ref == "" {
		return "", errors.New(errors.CodeSettlementFailed, "settlement network returned empty transfer reference")
	}
	return ref, nil
}

func (c *Client) call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}

	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal rpc request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rpc request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(errors.CodeSettlementFailed, err, "settlement network unreachable")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(errors.CodeSettlementFailed, err, "settlement network unreachable")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.CodeSettlementFailed, fmt.Sprintf("settlement network returned status %d", resp.StatusCode))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, errors.Wrap(errors.CodeSettlementFailed, err, "settlement network returned malformed response")
	}
	if rpcResp.Error != nil {
		return nil, errors.Wrap(errors.CodeSettlementFailed, rpcResp.Error, "settlement network rejected the request")
	}

	return rpcResp.Result, nil
}
