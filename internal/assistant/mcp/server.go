// Package mcp exposes the local world directory and the assistant as MCP
// tools over JSON-RPC 2.0, so agent frontends can drive the server.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"owp.world/internal/assistant"
	"owp.world/internal/discovery"
	"owp.world/internal/storage"
)

type Config struct {
	Store      *storage.Store
	Cache      *discovery.Cache // optional; registry_directory fails without it
	HMACSecret string
}

type Server struct {
	store      *storage.Store
	cache      *discovery.Cache
	hmacSecret []byte
	replay     *replayGuard
	now        func() time.Time
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("nil store")
	}
	s := &Server{
		store: cfg.Store,
		cache: cfg.Cache,
		now:   time.Now,
	}
	if strings.TrimSpace(cfg.HMACSecret) != "" {
		s.hmacSecret = []byte(cfg.HMACSecret)
		s.replay = newReplayGuard(10 * time.Minute)
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/mcp", s.handleMCP)
	return mux
}

func (s *Server) handleMCP(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 4<<20))
	if err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		_, _ = rw.Write([]byte("bad body"))
		return
	}
	_ = r.Body.Close()

	// Optional HMAC auth.
	sessionKey := strings.TrimSpace(r.Header.Get(headerAgentID))
	if len(s.hmacSecret) > 0 {
		vr := verifyHMAC(r, body, s.hmacSecret, s.now())
		if vr.HTTPStatus != 0 {
			rw.WriteHeader(vr.HTTPStatus)
			_, _ = rw.Write([]byte(vr.Message))
			return
		}
		if !s.replay.allow(vr.SessionKey, vr.Signature, s.now()) {
			rw.WriteHeader(http.StatusUnauthorized)
			_, _ = rw.Write([]byte("replayed signature"))
			return
		}
		sessionKey = vr.SessionKey
	}
	if sessionKey == "" {
		sessionKey = "default"
	}

	req, err := parseRPCRequest(body)
	if err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		_, _ = rw.Write([]byte("bad jsonrpc request"))
		return
	}

	resp := s.dispatch(r.Context(), sessionKey, req)
	rw.Header().Set("content-type", "application/json")
	_ = json.NewEncoder(rw).Encode(resp)
}

func (s *Server) dispatch(ctx context.Context, sessionKey string, req rpcRequest) rpcResponse {
	switch req.Method {
	case "initialize":
		return rpcOK(req.ID, map[string]any{
			"protocolVersion": "2024-11-05",
			"capabilities": map[string]any{
				"tools": map[string]any{"listChanged": false},
			},
		})

	case "list_tools":
		return rpcOK(req.ID, map[string]any{"tools": toolsList()})

	case "call_tool":
		var p struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if len(req.Params) == 0 {
			return rpcErr(req.ID, -32602, "missing params", nil)
		}
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return rpcErr(req.ID, -32602, "bad params", err.Error())
		}
		if p.Name == "" {
			return rpcErr(req.ID, -32602, "missing tool name", nil)
		}
		out, err := s.callTool(ctx, sessionKey, p.Name, p.Arguments)
		if err != nil {
			if err == errUnknownTool {
				return rpcErr(req.ID, -32601, "tool not found", map[string]any{"name": p.Name})
			}
			return rpcErr(req.ID, -32000, err.Error(), nil)
		}
		return rpcOK(req.ID, out)

	default:
		return rpcErr(req.ID, -32601, "method not found", nil)
	}
}

var errUnknownTool = fmt.Errorf("unknown tool")

func toolsList() []map[string]any {
	return []map[string]any{
		{
			"name":        "list_worlds",
			"description": "List local worlds and their manifests.",
			"inputSchema": map[string]any{"type": "object", "properties": map[string]any{}},
		},
		{
			"name":        "get_world",
			"description": "Fetch one local world manifest by world id.",
			"inputSchema": map[string]any{
				"type":       "object",
				"required":   []string{"world_id"},
				"properties": map[string]any{"world_id": map[string]any{"type": "string"}},
			},
		},
		{
			"name":        "registry_directory",
			"description": "Read the cached public world directory from the registry.",
			"inputSchema": map[string]any{"type": "object", "properties": map[string]any{}},
		},
		{
			"name":        "chat",
			"description": "Talk to the world companion assistant.",
			"inputSchema": map[string]any{
				"type":       "object",
				"required":   []string{"message"},
				"properties": map[string]any{"message": map[string]any{"type": "string"}},
			},
		},
	}
}

func (s *Server) callTool(ctx context.Context, sessionKey, name string, args json.RawMessage) (any, error) {
	switch name {
	case "list_worlds":
		worlds, err := s.store.ListWorlds()
		if err != nil {
			return nil, err
		}
		return map[string]any{"worlds": worlds}, nil

	case "get_world":
		var p struct {
			WorldID string `json:"world_id"`
		}
		if err := json.Unmarshal(args, &p); err != nil {
			return nil, fmt.Errorf("bad arguments: %w", err)
		}
		id, err := uuid.Parse(p.WorldID)
		if err != nil {
			return nil, fmt.Errorf("bad world_id: %w", err)
		}
		m, err := storage.ReadManifest(s.store.WorldDir(id))
		if err != nil {
			return nil, err
		}
		return map[string]any{"manifest": m}, nil

	case "registry_directory":
		if s.cache == nil {
			return nil, fmt.Errorf("registry directory not configured")
		}
		entries, fetchedAt, err := s.cache.List()
		if err != nil {
			return nil, err
		}
		return map[string]any{"worlds": entries, "fetched_at": fetchedAt}, nil

	case "chat":
		var p struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(args, &p); err != nil {
			return nil, fmt.Errorf("bad arguments: %w", err)
		}
		cfg, err := assistant.LoadConfig(s.store)
		if err != nil {
			return nil, err
		}
		out, err := assistant.Chat(ctx, s.store, cfg, sessionKey, p.Message)
		if err != nil {
			return nil, err
		}
		return map[string]any{"reply": out.Reply}, nil
	}
	return nil, errUnknownTool
}
