package discovery

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"owp.world/internal/registry"
)

// RPCClient scans the registry through a hosted ledger RPC node using
// getProgramAccounts with base64 account data.
type RPCClient struct {
	url string
	hc  *http.Client
}

func NewRPCClient(url string) *RPCClient {
	return &RPCClient{
		url: url,
		hc:  &http.Client{Timeout: 15 * time.Second},
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result []rpcProgramAccount `json:"result"`
	Error  *rpcError           `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcProgramAccount struct {
	Pubkey  string `json:"pubkey"`
	Account struct {
		Data [2]string `json:"data"` // [payload, encoding]
	} `json:"account"`
}

func (c *RPCClient) ProgramAccounts(ctx context.Context, programID registry.Pubkey) ([]Account, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getProgramAccounts",
		Params: []any{
			programID.String(),
			map[string]string{"encoding": "base64"},
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("content-type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("rpc status: %s", resp.Status)
	}

	var parsed rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("rpc parse: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}

	out := make([]Account, 0, len(parsed.Result))
	for _, acc := range parsed.Result {
		addr, err := registry.ParsePubkey(acc.Pubkey)
		if err != nil {
			continue
		}
		data, err := base64.StdEncoding.DecodeString(acc.Account.Data[0])
		if err != nil {
			return nil, fmt.Errorf("decode account %s: %w", acc.Pubkey, err)
		}
		out = append(out, Account{Address: addr, Data: data})
	}
	return out, nil
}
