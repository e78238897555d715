// Package storage keeps the server's local state: per-world workspaces with
// JSON manifests, the admin bearer token, and assistant data.
package storage

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"owp.world/internal/protocol"
)

type Store struct {
	root string
}

// New roots a store at dir (created if missing) with a worlds/ subtree.
func New(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("empty store dir")
	}
	if err := os.MkdirAll(filepath.Join(dir, "worlds"), 0o755); err != nil {
		return nil, fmt.Errorf("create store dirs: %w", err)
	}
	return &Store{root: dir}, nil
}

func (s *Store) Root() string       { return s.root }
func (s *Store) WorldsRoot() string { return filepath.Join(s.root, "worlds") }

func (s *Store) WorldDir(worldID uuid.UUID) string {
	return filepath.Join(s.WorldsRoot(), worldID.String())
}

func ManifestPath(worldDir string) string {
	return filepath.Join(worldDir, "manifest", "world.manifest.json")
}

// AssistantConfigPath is where the assistant provider settings live.
func (s *Store) AssistantConfigPath() string {
	return filepath.Join(s.root, "assistant.json")
}

func (s *Store) ProfilesRoot() string {
	return filepath.Join(s.root, "profiles")
}

func (s *Store) AdminTokenPath() string {
	return filepath.Join(s.root, "admin-token")
}

const adminTokenLen = 48

// LoadOrCreateAdminToken returns the saved admin token, generating and
// persisting one on first use.
func (s *Store) LoadOrCreateAdminToken() (string, error) {
	path := s.AdminTokenPath()
	if b, err := os.ReadFile(path); err == nil {
		return strings.TrimSpace(string(b)), nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("read admin token: %w", err)
	}

	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	raw := make([]byte, adminTokenLen)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate admin token: %w", err)
	}
	for i, b := range raw {
		raw[i] = alphabet[int(b)%len(alphabet)]
	}
	token := string(raw)
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("write admin token: %w", err)
	}
	return token, nil
}

// CreateWorld allocates a fresh world workspace and writes its manifest.
func (s *Store) CreateWorld(name string, gamePort uint16) (protocol.WorldManifestV1, error) {
	worldID := uuid.New()
	dir := s.WorldDir(worldID)
	for _, sub := range []string{"manifest", "assets", "snapshots", "logs"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return protocol.WorldManifestV1{}, fmt.Errorf("create %s dir: %w", sub, err)
		}
	}

	manifest := protocol.WorldManifestV1{
		ProtocolVersion: protocol.Version,
		WorldID:         worldID,
		Name:            name,
		CreatedAt:       time.Now().UTC(),
		Ports:           protocol.WorldPorts{GamePort: gamePort},
	}
	if err := WriteManifest(dir, &manifest); err != nil {
		return protocol.WorldManifestV1{}, err
	}
	return manifest, nil
}

// ListWorlds returns every world with a readable manifest; broken
// directories are skipped.
func (s *Store) ListWorlds() ([]protocol.WorldManifestV1, error) {
	entries, err := os.ReadDir(s.WorldsRoot())
	if err != nil {
		return nil, fmt.Errorf("read worlds dir: %w", err)
	}
	var out []protocol.WorldManifestV1
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m, err := ReadManifest(filepath.Join(s.WorldsRoot(), e.Name()))
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func ReadManifest(worldDir string) (protocol.WorldManifestV1, error) {
	path := ManifestPath(worldDir)
	b, err := os.ReadFile(path)
	if err != nil {
		return protocol.WorldManifestV1{}, fmt.Errorf("read %s: %w", path, err)
	}
	var m protocol.WorldManifestV1
	if err := json.Unmarshal(b, &m); err != nil {
		return protocol.WorldManifestV1{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return m, nil
}

func WriteManifest(worldDir string, m *protocol.WorldManifestV1) error {
	path := ManifestPath(worldDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize manifest: %w", err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// SetTokenInfo records the result of publishing a world's token.
func (s *Store) SetTokenInfo(worldID uuid.UUID, info protocol.WorldTokenInfo) (protocol.WorldManifestV1, error) {
	dir := s.WorldDir(worldID)
	if _, err := os.Stat(dir); err != nil {
		return protocol.WorldManifestV1{}, fmt.Errorf("world not found: %s", worldID)
	}
	m, err := ReadManifest(dir)
	if err != nil {
		return protocol.WorldManifestV1{}, err
	}
	m.Token = &info
	if err := WriteManifest(dir, &m); err != nil {
		return protocol.WorldManifestV1{}, err
	}
	return m, nil
}
