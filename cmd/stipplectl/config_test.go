package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stipple/internal/evo"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFileConfigOverridesOnlySetKeys(t *testing.T) {
	path := writeConfig(t, `
image = "target.png"
max_generations = 40
seed = 9

[evolution]
max_shapes = 12
survivors = 5
generation_size = 25
sort = "alpha_asc"
`)
	fc, err := loadFileConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	settings := runSettings{Workers: 3, Config: evo.DefaultConfig()}
	fc.apply(&settings)

	if settings.Image != "target.png" || settings.MaxGenerations != 40 || settings.Seed != 9 {
		t.Fatalf("unexpected top-level settings: %+v", settings)
	}
	if settings.Workers != 3 {
		t.Fatalf("expected unset workers to keep 3, got %d", settings.Workers)
	}
	c := settings.Config
	if c.MaxShapes != 12 || c.Survivors != 5 || c.GenerationSize != 25 || c.SortKey != evo.SortAlphaAsc {
		t.Fatalf("unexpected evolution settings: %+v", c)
	}
	if c.CalculationWidth != 100 || c.MinAlpha != 0.2 {
		t.Fatalf("expected defaults for unset evolution keys, got %+v", c)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected valid config: %v", err)
	}
}

func TestLoadFileConfigRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "generations = 3\n")
	_, err := loadFileConfig(path)
	if err == nil || !strings.Contains(err.Error(), "generations") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoadFileConfigRejectsBadSyntax(t *testing.T) {
	path := writeConfig(t, "max_generations = \n")
	if _, err := loadFileConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}
