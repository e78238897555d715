package mcp

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"owp.world/internal/protocol"
	"owp.world/internal/storage"
)

func newTestMCP(t *testing.T, secret string) (http.Handler, *storage.Store) {
	t.Helper()
	store, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	srv, err := NewServer(Config{Store: store, HMACSecret: secret})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv.Handler(), store
}

func callRPC(t *testing.T, h http.Handler, body string, headers map[string]string) (*httptest.ResponseRecorder, rpcResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader([]byte(body)))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp rpcResponse
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode rpc response: %v (%s)", err, rec.Body.String())
		}
	}
	return rec, resp
}

func TestMCP_Initialize(t *testing.T) {
	h, _ := newTestMCP(t, "")
	rec, resp := callRPC(t, h, `{"jsonrpc":"2.0","id":1,"method":"initialize"}`, nil)
	if rec.Code != http.StatusOK || resp.Error != nil {
		t.Fatalf("initialize: %d %+v", rec.Code, resp.Error)
	}
	result := resp.Result.(map[string]any)
	if result["protocolVersion"] != "2024-11-05" {
		t.Fatalf("protocol version: %v", result)
	}
}

func TestMCP_ListTools(t *testing.T) {
	h, _ := newTestMCP(t, "")
	_, resp := callRPC(t, h, `{"jsonrpc":"2.0","id":2,"method":"list_tools"}`, nil)
	if resp.Error != nil {
		t.Fatalf("list_tools: %+v", resp.Error)
	}
	tools := resp.Result.(map[string]any)["tools"].([]any)
	names := map[string]bool{}
	for _, tool := range tools {
		names[tool.(map[string]any)["name"].(string)] = true
	}
	for _, want := range []string{"list_worlds", "get_world", "registry_directory", "chat"} {
		if !names[want] {
			t.Fatalf("missing tool %s in %v", want, names)
		}
	}
}

func TestMCP_WorldTools(t *testing.T) {
	h, store := newTestMCP(t, "")
	m, err := store.CreateWorld("Emberfall", 7777)
	if err != nil {
		t.Fatalf("create world: %v", err)
	}

	_, resp := callRPC(t, h, `{"jsonrpc":"2.0","id":3,"method":"call_tool","params":{"name":"list_worlds","arguments":{}}}`, nil)
	if resp.Error != nil {
		t.Fatalf("list_worlds: %+v", resp.Error)
	}
	worlds := resp.Result.(map[string]any)["worlds"].([]any)
	if len(worlds) != 1 {
		t.Fatalf("worlds: %v", worlds)
	}

	_, resp = callRPC(t, h, `{"jsonrpc":"2.0","id":4,"method":"call_tool","params":{"name":"get_world","arguments":{"world_id":"`+m.WorldID.String()+`"}}}`, nil)
	if resp.Error != nil {
		t.Fatalf("get_world: %+v", resp.Error)
	}
	raw, _ := json.Marshal(resp.Result.(map[string]any)["manifest"])
	var got protocol.WorldManifestV1
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("manifest: %v", err)
	}
	if got.WorldID != m.WorldID || got.Name != "Emberfall" {
		t.Fatalf("manifest: %+v", got)
	}

	_, resp = callRPC(t, h, `{"jsonrpc":"2.0","id":5,"method":"call_tool","params":{"name":"get_world","arguments":{"world_id":"not-a-uuid"}}}`, nil)
	if resp.Error == nil {
		t.Fatalf("expected bad world_id to fail")
	}
}

func TestMCP_UnknownToolAndMethod(t *testing.T) {
	h, _ := newTestMCP(t, "")

	_, resp := callRPC(t, h, `{"jsonrpc":"2.0","id":6,"method":"call_tool","params":{"name":"destroy_world","arguments":{}}}`, nil)
	if resp.Error == nil || resp.Error.Code != -32601 {
		t.Fatalf("unknown tool: %+v", resp.Error)
	}

	_, resp = callRPC(t, h, `{"jsonrpc":"2.0","id":7,"method":"shutdown"}`, nil)
	if resp.Error == nil || resp.Error.Code != -32601 {
		t.Fatalf("unknown method: %+v", resp.Error)
	}
}

func TestMCP_RegistryDirectoryWithoutCache(t *testing.T) {
	h, _ := newTestMCP(t, "")
	_, resp := callRPC(t, h, `{"jsonrpc":"2.0","id":8,"method":"call_tool","params":{"name":"registry_directory","arguments":{}}}`, nil)
	if resp.Error == nil || resp.Error.Code != -32000 {
		t.Fatalf("expected tool failure without cache: %+v", resp.Error)
	}
}

func TestMCP_RejectsNonPostAndBadBody(t *testing.T) {
	h, _ := newTestMCP(t, "")

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET: %d", rec.Code)
	}

	rec, _ = callRPC(t, h, "not json", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad body: %d", rec.Code)
	}
}

func TestMCP_HMACRequiredWhenConfigured(t *testing.T) {
	const secret = "top-secret"
	h, _ := newTestMCP(t, secret)
	body := `{"jsonrpc":"2.0","id":9,"method":"list_tools"}`

	rec, _ := callRPC(t, h, body, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unsigned request: %d", rec.Code)
	}

	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	sig := signHMAC([]byte(secret), canonicalString(ts, "POST", "/mcp", "agent-1", "n1", []byte(body)))
	headers := map[string]string{
		headerAgentID:   "agent-1",
		headerTS:        ts,
		headerNonce:     "n1",
		headerSignature: sig,
	}
	rec, resp := callRPC(t, h, body, headers)
	if rec.Code != http.StatusOK || resp.Error != nil {
		t.Fatalf("signed request: %d %+v", rec.Code, resp.Error)
	}

	// The same signature cannot be replayed.
	rec, _ = callRPC(t, h, body, headers)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("replayed request: %d", rec.Code)
	}
}

func TestMCP_Healthz(t *testing.T) {
	h, _ := newTestMCP(t, "")
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body.String())
	}
}
