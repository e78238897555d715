package discovery

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"owp.world/internal/registry"
)

func TestRPCClient_ProgramAccounts(t *testing.T) {
	programID := registry.Pubkey{0x50}
	addr := registry.Pubkey{0x0A}
	payload := []byte{1, 2, 3, 4}

	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.JSONRPC != "2.0" || req.Method != "getProgramAccounts" {
			t.Errorf("unexpected request: %+v", req)
		}
		if len(req.Params) != 2 || req.Params[0] != programID.String() {
			t.Errorf("params: %+v", req.Params)
		}

		fmt.Fprintf(rw, `{"jsonrpc":"2.0","id":1,"result":[
		  {"pubkey":%q,"account":{"data":[%q,"base64"]}},
		  {"pubkey":"not-valid-base58-0OIl","account":{"data":["","base64"]}}
		]}`, addr.String(), base64.StdEncoding.EncodeToString(payload))
	}))
	defer srv.Close()

	accs, err := NewRPCClient(srv.URL).ProgramAccounts(context.Background(), programID)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	// Accounts with unparseable addresses are skipped, not fatal.
	if len(accs) != 1 {
		t.Fatalf("accounts: %d", len(accs))
	}
	if accs[0].Address != addr || string(accs[0].Data) != string(payload) {
		t.Fatalf("account: %+v", accs[0])
	}
}

func TestRPCClient_SurfacesRPCErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		fmt.Fprint(rw, `{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"invalid params"}}`)
	}))
	defer srv.Close()

	if _, err := NewRPCClient(srv.URL).ProgramAccounts(context.Background(), registry.Pubkey{1}); err == nil {
		t.Fatalf("expected rpc error")
	}
}
