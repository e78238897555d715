package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"owp.world/internal/storage"
)

// PlanSchemaJSON constrains generated world plans. Codex output schemas are
// strict: every key in properties must be listed in required.
const PlanSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "required": ["version","name","seed","biome_tags","ground","sky","fog","objects"],
  "properties": {
    "version": { "type": "string", "enum": ["v1"] },
    "name": { "type": "string", "minLength": 1, "maxLength": 48 },
    "seed": { "type": "integer", "minimum": 0, "maximum": 2147483647 },
    "biome_tags": { "type": "array", "items": { "type": "string" }, "maxItems": 16 },
    "ground": {
      "type": "object",
      "additionalProperties": false,
      "required": ["size","grid","height_scale","noise_scale","color"],
      "properties": {
        "size": { "type": "number", "minimum": 20.0, "maximum": 400.0 },
        "grid": { "type": "integer", "minimum": 16, "maximum": 256 },
        "height_scale": { "type": "number", "minimum": 0.0, "maximum": 40.0 },
        "noise_scale": { "type": "number", "minimum": 0.5, "maximum": 40.0 },
        "color": { "type": "string", "pattern": "^#[0-9A-Fa-f]{6}$" }
      }
    },
    "sky": {
      "type": "object",
      "additionalProperties": false,
      "required": ["sky_tint","ground_color","atmosphere_thickness","sun_size"],
      "properties": {
        "sky_tint": { "type": "string", "pattern": "^#[0-9A-Fa-f]{6}$" },
        "ground_color": { "type": "string", "pattern": "^#[0-9A-Fa-f]{6}$" },
        "atmosphere_thickness": { "type": "number", "minimum": 0.5, "maximum": 4.0 },
        "sun_size": { "type": "number", "minimum": 0.01, "maximum": 1.0 }
      }
    },
    "fog": {
      "type": "object",
      "additionalProperties": false,
      "required": ["enabled","color","density"],
      "properties": {
        "enabled": { "type": "boolean" },
        "color": { "type": "string", "pattern": "^#[0-9A-Fa-f]{6}$" },
        "density": { "type": "number", "minimum": 0.0, "maximum": 0.05 }
      }
    },
    "objects": {
      "type": "array",
      "maxItems": 400,
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["id","prefab","position","rotation","scale","color"],
        "properties": {
          "id": { "type": "string", "minLength": 1, "maxLength": 48 },
          "prefab": { "type": "string", "enum": ["tower","tree","rock","crystal","camp","portal","ruins","house","lamp"] },
          "position": { "type": "array", "items": { "type": "number" }, "minItems": 3, "maxItems": 3 },
          "rotation": { "type": "array", "items": { "type": "number" }, "minItems": 3, "maxItems": 3 },
          "scale": { "type": "array", "items": { "type": "number" }, "minItems": 3, "maxItems": 3 },
          "color": { "type": "string", "pattern": "^#[0-9A-Fa-f]{6}$" }
        }
      }
    }
  }
}`

type WorldPlanV1 struct {
	Version   string        `json:"version"`
	Name      string        `json:"name"`
	Seed      int64         `json:"seed"`
	BiomeTags []string      `json:"biome_tags"`
	Ground    WorldGroundV1 `json:"ground"`
	Sky       WorldSkyV1    `json:"sky"`
	Fog       WorldFogV1    `json:"fog"`
	Objects   []WorldObjV1  `json:"objects"`
}

type WorldGroundV1 struct {
	Size        float64 `json:"size"`
	Grid        int     `json:"grid"`
	HeightScale float64 `json:"height_scale"`
	NoiseScale  float64 `json:"noise_scale"`
	Color       string  `json:"color"`
}

type WorldSkyV1 struct {
	SkyTint             string  `json:"sky_tint"`
	GroundColor         string  `json:"ground_color"`
	AtmosphereThickness float64 `json:"atmosphere_thickness"`
	SunSize             float64 `json:"sun_size"`
}

type WorldFogV1 struct {
	Enabled bool    `json:"enabled"`
	Color   string  `json:"color"`
	Density float64 `json:"density"`
}

type WorldObjV1 struct {
	ID       string     `json:"id"`
	Prefab   string     `json:"prefab"`
	Position [3]float64 `json:"position"`
	Rotation [3]float64 `json:"rotation"`
	Scale    [3]float64 `json:"scale"`
	Color    string     `json:"color"`
}

func planPath(store *storage.Store, worldID uuid.UUID) string {
	return filepath.Join(store.WorldDir(worldID), "manifest", "world.plan.json")
}

// GeneratePlan asks the configured provider for a world plan, validates it
// against the plan schema, and stores it next to the manifest.
func GeneratePlan(ctx context.Context, store *storage.Store, cfg Config, worldID uuid.UUID, prompt string) (WorldPlanV1, error) {
	if !ValidProvider(cfg.Provider) {
		return WorldPlanV1{}, fmt.Errorf("assistant provider not configured")
	}
	if _, err := storage.ReadManifest(store.WorldDir(worldID)); err != nil {
		return WorldPlanV1{}, err
	}

	full := "Design a small explorable world for the prompt below. " +
		"Respond with a single JSON object matching the provided schema.\n\n" +
		strings.TrimSpace(prompt)

	raw, err := runStructured(ctx, cfg, full, PlanSchemaJSON)
	if err != nil {
		return WorldPlanV1{}, err
	}
	obj, err := ExtractJSONObject(raw)
	if err != nil {
		return WorldPlanV1{}, fmt.Errorf("parse world plan: %w", err)
	}
	if err := validatePlan(obj); err != nil {
		return WorldPlanV1{}, fmt.Errorf("invalid world plan: %w", err)
	}

	var plan WorldPlanV1
	if err := json.Unmarshal([]byte(obj), &plan); err != nil {
		return WorldPlanV1{}, fmt.Errorf("parse world plan: %w", err)
	}

	path := planPath(store, worldID)
	if err := os.WriteFile(path, []byte(obj+"\n"), 0o644); err != nil {
		return WorldPlanV1{}, fmt.Errorf("write %s: %w", path, err)
	}
	return plan, nil
}

func validatePlan(obj string) error {
	schema, err := jsonschema.CompileString("world_plan.schema.json", PlanSchemaJSON)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal([]byte(obj), &v); err != nil {
		return err
	}
	return schema.Validate(v)
}
