// Package assistant shells out to locally installed AI CLI tools (codex,
// claude) for companion chat and world plan generation. The tools are
// external collaborators; this package only builds prompts, runs them with
// a schema, and validates what comes back.
package assistant

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"owp.world/internal/storage"
)

const (
	ProviderCodex  = "codex"
	ProviderClaude = "claude"
)

type Config struct {
	// Empty provider means "not configured"; chat endpoints refuse to run.
	Provider string `json:"provider,omitempty"`
	// Optional codex model override (e.g. "gpt-4.1"). Empty uses the CLI default.
	CodexModel string `json:"codex_model,omitempty"`
	// One of: low, medium, high, xhigh. Empty uses the CLI default.
	CodexReasoningEffort string `json:"codex_reasoning_effort,omitempty"`
	// Optional claude model override (e.g. "haiku", "sonnet", "opus").
	ClaudeModel string `json:"claude_model,omitempty"`
}

func ValidProvider(p string) bool {
	return p == ProviderCodex || p == ProviderClaude
}

// NormalizeEffort maps accepted effort spellings to what the codex CLI
// takes ("very_high" is spelled "xhigh" there). Empty stays empty.
func NormalizeEffort(effort string) (string, error) {
	switch strings.TrimSpace(effort) {
	case "":
		return "", nil
	case "low", "medium", "high", "xhigh":
		return strings.TrimSpace(effort), nil
	case "very_high":
		return "xhigh", nil
	}
	return "", fmt.Errorf("invalid reasoning effort %q", effort)
}

func LoadConfig(store *storage.Store) (Config, error) {
	path := store.AssistantConfigPath()
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse assistant config: %w", err)
	}
	return cfg, nil
}

func SaveConfig(store *storage.Store, cfg Config) error {
	path := store.AssistantConfigPath()
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize assistant config: %w", err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
