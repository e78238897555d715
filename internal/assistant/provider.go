package assistant

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	probeTimeout = 2 * time.Second
	runTimeout   = 120 * time.Second
)

type ProviderStatus struct {
	ID        string `json:"id"`
	Installed bool   `json:"installed"`
	Note      string `json:"note,omitempty"`
}

type Status struct {
	Provider  string           `json:"provider,omitempty"`
	Providers []ProviderStatus `json:"providers"`
}

// ProbeStatus reports which provider CLIs are installed alongside the
// configured provider.
func ProbeStatus(ctx context.Context, cfg Config) Status {
	return Status{
		Provider: cfg.Provider,
		Providers: []ProviderStatus{
			{ID: ProviderCodex, Installed: programExists(ctx, ProviderCodex)},
			{ID: ProviderClaude, Installed: programExists(ctx, ProviderClaude)},
		},
	}
}

func programExists(ctx context.Context, program string) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return exec.CommandContext(ctx, program, "--version").Run() == nil
}

// RunCodexStructured runs `codex exec` with an output schema; codex writes
// its last message to outputPath.
func RunCodexStructured(ctx context.Context, prompt, schemaPath, outputPath, cwd, model, effort string) error {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	args := []string{"exec"}
	if m := strings.TrimSpace(model); m != "" {
		args = append(args, "--model", m)
	}
	if e := strings.TrimSpace(effort); e != "" {
		// Codex takes config overrides as `-c key=value`, value parsed as TOML.
		args = append(args, "-c", fmt.Sprintf("model_reasoning_effort=%q", e))
	}
	args = append(args,
		"--sandbox", "read-only",
		"--skip-git-repo-check",
		"--output-schema", schemaPath,
		"--output-last-message", outputPath,
	)
	if cwd != "" {
		args = append(args, "-C", cwd)
	}
	args = append(args, "-")

	cmd := exec.CommandContext(ctx, "codex", args...)
	cmd.Stdin = strings.NewReader(prompt)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("codex timeout: %w", ctx.Err())
		}
		return fmt.Errorf("codex failed: %s: %w", strings.TrimSpace(stderr.String()), err)
	}
	return nil
}

// RunClaudeStructured runs `claude --print` with a JSON schema and returns
// its stdout.
func RunClaudeStructured(ctx context.Context, prompt, schema, model string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	args := []string{"--print", "--output-format", "json", "--json-schema", schema}
	if m := strings.TrimSpace(model); m != "" {
		args = append(args, "--model", m)
	}
	args = append(args, prompt)

	cmd := exec.CommandContext(ctx, "claude", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("claude timeout: %w", ctx.Err())
		}
		return "", fmt.Errorf("claude failed: %s: %w", strings.TrimSpace(stderr.String()), err)
	}
	return stdout.String(), nil
}
