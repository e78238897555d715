package mcp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	headerAgentID   = "x-agent-id"
	headerTS        = "x-ts"
	headerSignature = "x-signature"
	headerNonce     = "x-nonce"

	tsSkewMS = 300_000 // +-5 min
)

func canonicalString(ts, method, pathname, agentID, nonce string, rawBody []byte) string {
	return ts + "\n" + strings.ToUpper(method) + "\n" + pathname + "\n" +
		strings.TrimSpace(agentID) + "\n" + strings.TrimSpace(nonce) + "\n" + string(rawBody)
}

func signHMAC(secret []byte, canonical string) string {
	h := hmac.New(sha256.New, secret)
	_, _ = h.Write([]byte(canonical))
	return hex.EncodeToString(h.Sum(nil))
}

type hmacVerifyResult struct {
	SessionKey string
	Signature  string
	HTTPStatus int
	Message    string
}

func verifyHMAC(r *http.Request, rawBody []byte, secret []byte, now time.Time) hmacVerifyResult {
	agentID := strings.TrimSpace(r.Header.Get(headerAgentID))
	if agentID == "" {
		return hmacVerifyResult{HTTPStatus: http.StatusUnauthorized, Message: "missing x-agent-id"}
	}
	tsStr := strings.TrimSpace(r.Header.Get(headerTS))
	if tsStr == "" {
		return hmacVerifyResult{HTTPStatus: http.StatusUnauthorized, Message: "missing x-ts"}
	}
	sig := strings.ToLower(strings.TrimSpace(r.Header.Get(headerSignature)))
	if sig == "" {
		return hmacVerifyResult{HTTPStatus: http.StatusUnauthorized, Message: "missing x-signature"}
	}
	nonce := strings.TrimSpace(r.Header.Get(headerNonce))
	if nonce == "" {
		return hmacVerifyResult{HTTPStatus: http.StatusUnauthorized, Message: "missing x-nonce"}
	}

	tsMS, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return hmacVerifyResult{HTTPStatus: http.StatusUnauthorized, Message: "bad x-ts"}
	}
	if d := now.UnixMilli() - tsMS; d > tsSkewMS || d < -tsSkewMS {
		return hmacVerifyResult{HTTPStatus: http.StatusUnauthorized, Message: "x-ts outside window"}
	}

	expected := signHMAC(secret, canonicalString(tsStr, r.Method, r.URL.Path, agentID, nonce, rawBody))
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return hmacVerifyResult{HTTPStatus: http.StatusUnauthorized, Message: "bad signature"}
	}
	return hmacVerifyResult{SessionKey: agentID, Signature: sig}
}

// replayGuard rejects reuse of a (session, signature) pair inside the
// timestamp window.
type replayGuard struct {
	mu        sync.Mutex
	seen      map[string]int64
	ttl       time.Duration
	lastPrune int64
}

func newReplayGuard(ttl time.Duration) *replayGuard {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &replayGuard{
		seen: map[string]int64{},
		ttl:  ttl,
	}
}

func (g *replayGuard) allow(sessionKey, signature string, now time.Time) bool {
	if g == nil || signature == "" {
		return true
	}
	key := sessionKey + "|" + signature
	nowMS := now.UnixMilli()
	expiresAt := nowMS + g.ttl.Milliseconds()

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.shouldPruneLocked(nowMS) {
		g.pruneLocked(nowMS)
	}
	if exp, ok := g.seen[key]; ok && exp > nowMS {
		return false
	}
	g.seen[key] = expiresAt
	if len(g.seen) > 65536 {
		// Hard cap in case of unexpectedly high-cardinality traffic.
		g.seen = map[string]int64{key: expiresAt}
		g.lastPrune = nowMS
	}
	return true
}

func (g *replayGuard) shouldPruneLocked(nowMS int64) bool {
	if len(g.seen) == 0 {
		return false
	}
	if len(g.seen) > 4096 {
		return true
	}
	return nowMS-g.lastPrune > g.ttl.Milliseconds()/2
}

func (g *replayGuard) pruneLocked(nowMS int64) {
	for k, exp := range g.seen {
		if exp <= nowMS {
			delete(g.seen, k)
		}
	}
	g.lastPrune = nowMS
}
