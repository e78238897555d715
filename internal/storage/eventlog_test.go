package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
)

func TestConnLogger_WritesReadableJSONL(t *testing.T) {
	worldDir := t.TempDir()
	logger := NewConnLogger(worldDir)

	events := []ConnEvent{
		{Time: time.Now().UTC(), Peer: "127.0.0.1:50000", WorldID: "w1", Result: "welcome"},
		{Time: time.Now().UTC(), Peer: "127.0.0.1:50001", WorldID: "w1", Result: "error", Detail: "E_PROTO_VERSION"},
	}
	for _, ev := range events {
		if err := logger.WriteConn(ev); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(worldDir, "logs", "connections-*.jsonl.zst"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("log files: %v %v", matches, err)
	}

	f, err := os.Open(matches[0])
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer dec.Close()

	var got []ConnEvent
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var ev ConnEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("parse line: %v", err)
		}
		got = append(got, ev)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != len(events) {
		t.Fatalf("events: have %d want %d", len(got), len(events))
	}
	if got[1].Detail != "E_PROTO_VERSION" {
		t.Fatalf("second event: %+v", got[1])
	}
}
