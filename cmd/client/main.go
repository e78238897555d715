package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"owp.world/internal/protocol"
)

func main() {
	connect := flag.String("connect", "", "connect string, e.g. owp://host:7777?world=<uuid>")
	addr := flag.String("addr", "", "host:port (alternative to -connect)")
	worldStr := flag.String("world", "", "world id to request (alternative to -connect)")
	name := flag.String("name", "owp-client", "client name sent in HELLO")
	timeout := flag.Duration("timeout", 5*time.Second, "dial/read timeout")
	flag.Parse()

	target, worldID, err := resolveTarget(*connect, *addr, *worldStr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	conn, err := net.DialTimeout("tcp", target, *timeout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dial:", err)
		os.Exit(1)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(*timeout))

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		RequestID:       uuid.New(),
		WorldID:         worldID,
		ClientName:      *name,
	}
	if err := protocol.WriteMessage(conn, hello); err != nil {
		fmt.Fprintln(os.Stderr, "send hello:", err)
		os.Exit(1)
	}

	raw, base, err := protocol.ReadMessage(conn)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read reply:", err)
		os.Exit(1)
	}

	var pretty json.RawMessage = raw
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "bad reply:", err)
		os.Exit(1)
	}
	fmt.Println(string(out))

	if base.Type == protocol.TypeError {
		os.Exit(1)
	}
}

// resolveTarget accepts either an owp:// connect string or a bare addr plus
// an optional world id.
func resolveTarget(connect, addr, worldStr string) (string, *uuid.UUID, error) {
	if connect != "" {
		return parseConnectString(connect)
	}
	if addr == "" {
		return "", nil, fmt.Errorf("missing -connect or -addr")
	}
	var worldID *uuid.UUID
	if s := strings.TrimSpace(worldStr); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			return "", nil, fmt.Errorf("invalid -world: %w", err)
		}
		worldID = &id
	}
	return addr, worldID, nil
}

func parseConnectString(s string) (string, *uuid.UUID, error) {
	u, err := url.Parse(s)
	if err != nil {
		return "", nil, fmt.Errorf("invalid connect string: %w", err)
	}
	if u.Scheme != "owp" {
		return "", nil, fmt.Errorf("connect string must use owp:// scheme, got %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return "", nil, fmt.Errorf("connect string missing host")
	}
	port := u.Port()
	if port == "" {
		port = "7777"
	}
	var worldID *uuid.UUID
	if w := u.Query().Get("world"); w != "" {
		id, err := uuid.Parse(w)
		if err != nil {
			return "", nil, fmt.Errorf("invalid world id in connect string: %w", err)
		}
		worldID = &id
	}
	return net.JoinHostPort(u.Hostname(), port), worldID, nil
}
