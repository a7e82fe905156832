package tuning

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"voxelstream.ai/internal/sim/world/terrain/gen"
)

func repoConfig(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("runtime.Caller failed")
	}
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "configs", "tuning.yaml")
}

func TestLoad_RepoConfig(t *testing.T) {
	tu, err := Load(repoConfig(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.RenderDistance != 4 || tu.LoadInterval() != 10*time.Millisecond {
		t.Fatalf("render_distance=%d interval=%v", tu.RenderDistance, tu.LoadInterval())
	}
	if tu.NoiseConfig() != gen.DefaultNoiseConfig() {
		t.Fatalf("noise=%+v want defaults", tu.NoiseConfig())
	}
	if !tu.Cache.Enabled || tu.Cache.Dir != "chunks" {
		t.Fatalf("cache=%+v", tu.Cache)
	}
}

func TestLoad_PartialOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("render_distance: 2\nnoise:\n  seed: 42\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tu, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.RenderDistance != 2 || tu.Noise.Seed != 42 {
		t.Fatalf("overrides not applied: %+v", tu)
	}
	if tu.Noise.Type != gen.NoiseOpenSimplex || tu.LoadIntervalMs != 10 {
		t.Fatalf("defaults lost: %+v", tu)
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	tu := Defaults()
	tu.RenderDistance = 0
	tu.LoadIntervalMs = -1
	tu.Noise.Type = "perlin"
	err := tu.Validate()
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, want := range []string{"render_distance", "load_interval_ms", "perlin"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("render_distance: [1,2"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
