// Package game serves the world's TCP handshake endpoint: one HELLO frame
// in, one WELCOME (or ERROR) frame out.
package game

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/google/uuid"

	"owp.world/internal/protocol"
	"owp.world/internal/storage"
)

const handshakeTimeout = 5 * time.Second

type Server struct {
	store   *storage.Store
	worldID uuid.UUID
	log     *log.Logger
	conns   *storage.ConnLogger
}

func NewServer(store *storage.Store, worldID uuid.UUID, logger *log.Logger) *Server {
	return &Server{
		store:   store,
		worldID: worldID,
		log:     logger,
		conns:   storage.NewConnLogger(store.WorldDir(worldID)),
	}
}

// Serve accepts connections until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listen string) error {
	if _, err := storage.ReadManifest(s.store.WorldDir(s.worldID)); err != nil {
		return fmt.Errorf("world not found: %s: %w", s.worldID, err)
	}

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("bind %s: %w", listen, err)
	}
	defer ln.Close()
	defer s.conns.Close()
	s.log.Printf("game server listening on tcp://%s (world_id=%s)", ln.Addr(), s.worldID)

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go func() {
			defer conn.Close()
			if err := s.handleConn(conn); err != nil {
				s.log.Printf("connection error from %s: %v", conn.RemoteAddr(), err)
			}
		}()
	}
}

func (s *Server) handleConn(conn net.Conn) error {
	_ = conn.SetDeadline(time.Now().Add(handshakeTimeout))

	payload, base, err := protocol.ReadMessage(conn)
	if err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	if base.Type != protocol.TypeHello {
		s.logConn(conn, storage.ConnEvent{Result: "rejected", Detail: "unexpected first message " + base.Type})
		return protocol.WriteMessage(conn, errorMsg(protocol.ErrProtoBadRequest, "expected HELLO"))
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(payload, &hello); err != nil {
		return protocol.WriteMessage(conn, errorMsg(protocol.ErrProtoBadRequest, "malformed HELLO"))
	}
	if hello.ProtocolVersion != protocol.Version {
		s.logConn(conn, storage.ConnEvent{Result: "rejected", Detail: "protocol version " + hello.ProtocolVersion})
		return protocol.WriteMessage(conn, errorMsg(protocol.ErrProtoVersion, "unsupported protocol version"))
	}

	if hello.WorldID != nil && *hello.WorldID != s.worldID {
		s.log.Printf("world_id mismatch from %s: requested=%s served=%s", conn.RemoteAddr(), hello.WorldID, s.worldID)
		s.logConn(conn, storage.ConnEvent{
			RequestID:  hello.RequestID.String(),
			ClientName: hello.ClientName,
			Result:     "mismatch",
		})
		return protocol.WriteMessage(conn, protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			RequestID:       hello.RequestID,
			WorldID:         s.worldID,
			MOTD:            "World id mismatch",
			Capabilities:    []string{},
		})
	}

	manifest, err := storage.ReadManifest(s.store.WorldDir(s.worldID))
	if err != nil {
		_ = protocol.WriteMessage(conn, errorMsg(protocol.ErrInternal, "manifest unavailable"))
		return err
	}
	var tokenMint *string
	if manifest.Token != nil {
		tokenMint = &manifest.Token.Mint
	}

	s.logConn(conn, storage.ConnEvent{
		RequestID:  hello.RequestID.String(),
		ClientName: hello.ClientName,
		Result:     "welcome",
	})
	return protocol.WriteMessage(conn, protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		RequestID:       hello.RequestID,
		WorldID:         s.worldID,
		TokenMint:       tokenMint,
		MOTD:            "Welcome to OWP (handshake-only server)",
		Capabilities:    []string{"handshake"},
	})
}

func (s *Server) logConn(conn net.Conn, ev storage.ConnEvent) {
	ev.Time = time.Now().UTC()
	ev.Peer = conn.RemoteAddr().String()
	ev.WorldID = s.worldID.String()
	if err := s.conns.WriteConn(ev); err != nil {
		s.log.Printf("write conn log: %v", err)
	}
}

func errorMsg(code, msg string) protocol.ErrorMsg {
	return protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Code:            code,
		Message:         msg,
	}
}
