// Package admin is the host-only HTTP API: world lifecycle, registry
// discovery reads, and assistant management. It binds to loopback by
// default and is gated by a bearer token.
package admin

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"owp.world/internal/assistant"
	"owp.world/internal/discovery"
	"owp.world/internal/protocol"
	"owp.world/internal/registry"
	"owp.world/internal/storage"
)

// Discovery wires the admin API to the public registry. Scanner and
// ProgramID may be unset; directory refresh then fails with 503.
type Discovery struct {
	Scanner   discovery.Scanner
	Cache     *discovery.Cache
	ProgramID registry.Pubkey
}

type Server struct {
	store *storage.Store
	// Empty token disables auth entirely (not recommended).
	token     string
	discovery Discovery
	log       *log.Logger
}

func NewServer(store *storage.Store, token string, d Discovery, logger *log.Logger) *Server {
	return &Server{store: store, token: token, discovery: d, log: logger}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/v1/health", s.handleHealth)
	mux.HandleFunc("GET /admin/v1/worlds", s.auth(s.handleListWorlds))
	mux.HandleFunc("POST /admin/v1/worlds", s.auth(s.handleCreateWorld))
	mux.HandleFunc("GET /admin/v1/worlds/{id}/manifest", s.auth(s.handleGetManifest))
	mux.HandleFunc("POST /admin/v1/worlds/{id}/publish_result", s.auth(s.handlePublishResult))
	mux.HandleFunc("POST /admin/v1/worlds/{id}/plan", s.auth(s.handleGeneratePlan))
	mux.HandleFunc("GET /admin/v1/registry/worlds", s.auth(s.handleRegistryWorlds))
	mux.HandleFunc("GET /admin/v1/assistant/config", s.auth(s.handleGetAssistantConfig))
	mux.HandleFunc("PUT /admin/v1/assistant/config", s.auth(s.handleSetAssistantConfig))
	mux.HandleFunc("GET /admin/v1/assistant/status", s.auth(s.handleAssistantStatus))
	mux.HandleFunc("POST /admin/v1/assistant/chat", s.auth(s.handleAssistantChat))
	return mux
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if s.token != "" {
			value := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(value, "Bearer ")
			if !ok {
				rw.WriteHeader(http.StatusUnauthorized)
				return
			}
			if token != s.token {
				rw.WriteHeader(http.StatusForbidden)
				return
			}
		}
		next(rw, r)
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("content-type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func (s *Server) handleHealth(rw http.ResponseWriter, r *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "version": protocol.Version})
}

func (s *Server) handleListWorlds(rw http.ResponseWriter, r *http.Request) {
	manifests, err := s.store.ListWorlds()
	if err != nil {
		s.log.Printf("list worlds: %v", err)
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}
	out := make([]protocol.WorldDirectoryEntry, 0, len(manifests))
	for _, m := range manifests {
		e := protocol.WorldDirectoryEntry{
			WorldID:     m.WorldID,
			Name:        m.Name,
			Endpoint:    "127.0.0.1",
			Port:        m.Ports.GamePort,
			WorldPubkey: m.WorldAuthorityPubkey,
		}
		if m.Token != nil {
			e.TokenMint = &m.Token.Mint
			e.DbcPool = m.Token.DbcPool
		}
		out = append(out, e)
	}
	writeJSON(rw, http.StatusOK, out)
}

type createWorldRequest struct {
	Name     string `json:"name"`
	GamePort uint16 `json:"game_port"`
}

func (s *Server) handleCreateWorld(rw http.ResponseWriter, r *http.Request) {
	var req createWorldRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		rw.WriteHeader(http.StatusBadRequest)
		return
	}
	if req.GamePort == 0 {
		req.GamePort = 7777
	}
	manifest, err := s.store.CreateWorld(req.Name, req.GamePort)
	if err != nil {
		s.log.Printf("create world: %v", err)
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(rw, http.StatusOK, manifest)
}

func (s *Server) worldID(rw http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		return uuid.UUID{}, false
	}
	return id, true
}

func (s *Server) handleGetManifest(rw http.ResponseWriter, r *http.Request) {
	id, ok := s.worldID(rw, r)
	if !ok {
		return
	}
	m, err := storage.ReadManifest(s.store.WorldDir(id))
	if err != nil {
		rw.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(rw, http.StatusOK, m)
}

type publishResultRequest struct {
	Network      string   `json:"network"`
	Mint         string   `json:"mint"`
	DbcPool      *string  `json:"dbc_pool"`
	TxSignatures []string `json:"tx_signatures"`
}

func (s *Server) handlePublishResult(rw http.ResponseWriter, r *http.Request) {
	id, ok := s.worldID(rw, r)
	if !ok {
		return
	}
	var req publishResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		return
	}
	m, err := s.store.SetTokenInfo(id, protocol.WorldTokenInfo{
		Network:      req.Network,
		Mint:         req.Mint,
		DbcPool:      req.DbcPool,
		TxSignatures: req.TxSignatures,
	})
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			rw.WriteHeader(http.StatusNotFound)
		} else {
			s.log.Printf("publish result: %v", err)
			rw.WriteHeader(http.StatusInternalServerError)
		}
		return
	}
	writeJSON(rw, http.StatusOK, m)
}

// handleRegistryWorlds serves the cached public directory; ?refresh=1
// rescans the registry first.
func (s *Server) handleRegistryWorlds(rw http.ResponseWriter, r *http.Request) {
	if s.discovery.Cache == nil {
		rw.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	if r.URL.Query().Get("refresh") == "1" {
		if s.discovery.Scanner == nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		entries, err := discovery.Directory(r.Context(), s.discovery.Scanner, s.discovery.ProgramID)
		if err != nil {
			s.log.Printf("registry scan: %v", err)
			rw.WriteHeader(http.StatusBadGateway)
			return
		}
		if err := s.discovery.Cache.Replace(entries, time.Now()); err != nil {
			s.log.Printf("registry cache replace: %v", err)
			rw.WriteHeader(http.StatusInternalServerError)
			return
		}
	}
	entries, fetchedAt, err := s.discovery.Cache.List()
	if err != nil {
		s.log.Printf("registry cache list: %v", err)
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{
		"worlds":     entries,
		"fetched_at": fetchedAt,
	})
}

func (s *Server) handleGetAssistantConfig(rw http.ResponseWriter, r *http.Request) {
	cfg, err := assistant.LoadConfig(s.store)
	if err != nil {
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(rw, http.StatusOK, cfg)
}

type setAssistantConfigRequest struct {
	Provider             *string `json:"provider"`
	CodexModel           *string `json:"codex_model"`
	CodexReasoningEffort *string `json:"codex_reasoning_effort"`
	ClaudeModel          *string `json:"claude_model"`
}

func (s *Server) handleSetAssistantConfig(rw http.ResponseWriter, r *http.Request) {
	var req setAssistantConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.WriteHeader(http.StatusBadRequest)
		return
	}
	cfg, err := assistant.LoadConfig(s.store)
	if err != nil {
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}

	if req.Provider != nil {
		p := normalizeOptional(*req.Provider)
		if p != "" && !assistant.ValidProvider(p) {
			rw.WriteHeader(http.StatusBadRequest)
			return
		}
		cfg.Provider = p
	}
	if req.CodexModel != nil {
		cfg.CodexModel = normalizeOptional(*req.CodexModel)
	}
	if req.CodexReasoningEffort != nil {
		effort, err := assistant.NormalizeEffort(normalizeOptional(*req.CodexReasoningEffort))
		if err != nil {
			rw.WriteHeader(http.StatusBadRequest)
			return
		}
		cfg.CodexReasoningEffort = effort
	}
	if req.ClaudeModel != nil {
		cfg.ClaudeModel = normalizeOptional(*req.ClaudeModel)
	}

	if err := assistant.SaveConfig(s.store, cfg); err != nil {
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(rw, http.StatusOK, cfg)
}

// normalizeOptional maps "" and "default" to the unset value.
func normalizeOptional(v string) string {
	t := strings.TrimSpace(v)
	if t == "default" {
		return ""
	}
	return t
}

func (s *Server) handleAssistantStatus(rw http.ResponseWriter, r *http.Request) {
	cfg, err := assistant.LoadConfig(s.store)
	if err != nil {
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(rw, http.StatusOK, assistant.ProbeStatus(r.Context(), cfg))
}

type assistantChatRequest struct {
	Message   string `json:"message"`
	ProfileID string `json:"profile_id"`
}

func (s *Server) handleAssistantChat(rw http.ResponseWriter, r *http.Request) {
	var req assistantChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		rw.WriteHeader(http.StatusBadRequest)
		return
	}
	cfg, err := assistant.LoadConfig(s.store)
	if err != nil {
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}
	if cfg.Provider == "" {
		rw.WriteHeader(http.StatusPreconditionFailed)
		return
	}
	profileID := req.ProfileID
	if profileID == "" {
		profileID = "local"
	}
	out, err := assistant.Chat(r.Context(), s.store, cfg, profileID, req.Message)
	if err != nil {
		s.log.Printf("assistant chat failed: %v", err)
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(rw, http.StatusOK, out)
}

type generatePlanRequest struct {
	Prompt string `json:"prompt"`
}

func (s *Server) handleGeneratePlan(rw http.ResponseWriter, r *http.Request) {
	id, ok := s.worldID(rw, r)
	if !ok {
		return
	}
	var req generatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		rw.WriteHeader(http.StatusBadRequest)
		return
	}
	cfg, err := assistant.LoadConfig(s.store)
	if err != nil {
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}
	if cfg.Provider == "" {
		rw.WriteHeader(http.StatusPreconditionFailed)
		return
	}
	plan, err := assistant.GeneratePlan(r.Context(), s.store, cfg, id, req.Prompt)
	if err != nil {
		s.log.Printf("generate plan failed: %v", err)
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"plan": plan})
}
