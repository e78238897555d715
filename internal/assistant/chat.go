package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"owp.world/internal/storage"
)

const maxHistoryTurns = 80

type Turn struct {
	Role    string `json:"role"` // "user" | "assistant"
	Content string `json:"content"`
}

type ChatResponse struct {
	Reply string `json:"reply"`
}

const chatSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "required": ["reply"],
  "properties": {
    "reply": { "type": "string", "minLength": 1, "maxLength": 600 }
  }
}`

// Chat runs one companion turn against the configured provider, keeping a
// short per-profile history on disk.
func Chat(ctx context.Context, store *storage.Store, cfg Config, profileID, message string) (ChatResponse, error) {
	if !ValidProvider(cfg.Provider) {
		return ChatResponse{}, fmt.Errorf("assistant provider not configured")
	}

	history, _ := loadHistory(store, profileID)
	prompt := buildChatPrompt(history, message)

	raw, err := runStructured(ctx, cfg, prompt, chatSchemaJSON)
	if err != nil {
		return ChatResponse{}, err
	}

	obj, err := ExtractJSONObject(raw)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("parse assistant reply: %w", err)
	}
	var out ChatResponse
	if err := json.Unmarshal([]byte(obj), &out); err != nil {
		return ChatResponse{}, fmt.Errorf("parse assistant reply: %w", err)
	}
	if strings.TrimSpace(out.Reply) == "" {
		return ChatResponse{}, fmt.Errorf("assistant returned an empty reply")
	}

	history = append(history,
		Turn{Role: "user", Content: strings.TrimSpace(message)},
		Turn{Role: "assistant", Content: out.Reply},
	)
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	// History is best effort; the reply still stands if the write fails.
	_ = saveHistory(store, profileID, history)
	return out, nil
}

func buildChatPrompt(history []Turn, message string) string {
	var b strings.Builder
	b.WriteString("You are the world companion for a local OWP world server. ")
	b.WriteString("Answer the player in at most a short paragraph. ")
	b.WriteString("Respond with a single JSON object matching the provided schema.\n\n")
	for _, t := range history {
		fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
	}
	fmt.Fprintf(&b, "user: %s\n", strings.TrimSpace(message))
	return b.String()
}

// runStructured dispatches to the configured provider CLI and returns the
// raw text that should contain the JSON object.
func runStructured(ctx context.Context, cfg Config, prompt, schema string) (string, error) {
	switch cfg.Provider {
	case ProviderClaude:
		out, err := RunClaudeStructured(ctx, prompt, schema, cfg.ClaudeModel)
		if err != nil {
			return "", err
		}
		return claudeResultText(out), nil

	case ProviderCodex:
		tmp, err := os.MkdirTemp("", "owp-assistant-*")
		if err != nil {
			return "", err
		}
		defer os.RemoveAll(tmp)
		schemaPath := filepath.Join(tmp, "schema.json")
		outputPath := filepath.Join(tmp, "output.txt")
		if err := os.WriteFile(schemaPath, []byte(schema), 0o644); err != nil {
			return "", err
		}
		if err := RunCodexStructured(ctx, prompt, schemaPath, outputPath, "", cfg.CodexModel, cfg.CodexReasoningEffort); err != nil {
			return "", err
		}
		b, err := os.ReadFile(outputPath)
		if err != nil {
			return "", fmt.Errorf("read codex output: %w", err)
		}
		return string(b), nil
	}
	return "", fmt.Errorf("unknown provider %q", cfg.Provider)
}

// claudeResultText unwraps the `--output-format json` envelope; when the
// output isn't the expected envelope it is returned as-is.
func claudeResultText(stdout string) string {
	var envelope struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal([]byte(stdout), &envelope); err == nil && envelope.Result != "" {
		return envelope.Result
	}
	return stdout
}

// ExtractJSONObject returns the first balanced JSON object embedded in
// text; provider CLIs often wrap the object in prose.
func ExtractJSONObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", fmt.Errorf("no json object found")
	}

	depth := 0
	inString := false
	escape := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escape:
				escape = false
			case c == '\\':
				escape = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unterminated json object")
}

func historyPath(store *storage.Store, profileID string) string {
	return filepath.Join(store.ProfilesRoot(), profileID, "companion_history.json")
}

func loadHistory(store *storage.Store, profileID string) ([]Turn, error) {
	b, err := os.ReadFile(historyPath(store, profileID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var turns []Turn
	if err := json.Unmarshal(b, &turns); err != nil {
		return nil, err
	}
	return turns, nil
}

func saveHistory(store *storage.Store, profileID string, turns []Turn) error {
	path := historyPath(store, profileID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(turns, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}
