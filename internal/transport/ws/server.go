// Package ws exposes the same handshake as the TCP endpoint over a
// WebSocket, one JSON message per text frame (no length prefix).
package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"owp.world/internal/protocol"
	"owp.world/internal/storage"
)

type Server struct {
	store   *storage.Store
	worldID uuid.UUID
	log     *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(store *storage.Store, worldID uuid.UUID, logger *log.Logger) *Server {
	return &Server{
		store:   store,
		worldID: worldID,
		log:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		base, err := protocol.DecodeBase(msg)
		if err != nil || base.Type != protocol.TypeHello {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"),
				time.Now().Add(time.Second))
			return
		}
		var hello protocol.HelloMsg
		if err := json.Unmarshal(msg, &hello); err != nil {
			return
		}

		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		_ = conn.WriteJSON(s.reply(hello, r.RemoteAddr))
	}
}

func (s *Server) reply(hello protocol.HelloMsg, peer string) any {
	if hello.ProtocolVersion != protocol.Version {
		return protocol.ErrorMsg{
			Type:            protocol.TypeError,
			ProtocolVersion: protocol.Version,
			Code:            protocol.ErrProtoVersion,
			Message:         "unsupported protocol version",
		}
	}
	if hello.WorldID != nil && *hello.WorldID != s.worldID {
		s.log.Printf("ws world_id mismatch from %s: requested=%s served=%s", peer, hello.WorldID, s.worldID)
		return protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			RequestID:       hello.RequestID,
			WorldID:         s.worldID,
			MOTD:            "World id mismatch",
			Capabilities:    []string{},
		}
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		RequestID:       hello.RequestID,
		WorldID:         s.worldID,
		MOTD:            "Welcome to OWP (handshake-only server)",
		Capabilities:    []string{"handshake"},
	}
	if manifest, err := storage.ReadManifest(s.store.WorldDir(s.worldID)); err == nil && manifest.Token != nil {
		welcome.TokenMint = &manifest.Token.Mint
	}
	return welcome
}
