package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "story.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadStoryConfig(t *testing.T) {
	path := writeConfig(t, `
version: 1
story:
  id: cave
  title: The Mysterious Cave
  seed:
    label: The Journey Begins
    body: You stand at the mouth of a dark cave.
economy:
  starting_gold: 50
  xp_per_level: 100
  level_bonus_gold: 25
  victory_bonus_gold: 100
network:
  api_port: 9090
`)

	cfg, err := LoadStoryConfig(path)
	if err != nil {
		t.Fatalf("LoadStoryConfig failed: %v", err)
	}

	if cfg.Story.ID != "cave" {
		t.Errorf("expected story id cave, got %s", cfg.Story.ID)
	}
	if cfg.Economy.StartingGold != 50 {
		t.Errorf("expected starting gold 50, got %d", cfg.Economy.StartingGold)
	}
	if cfg.APIPort() != 9090 {
		t.Errorf("expected api port 9090, got %d", cfg.APIPort())
	}
}

func TestLoadStoryConfigRejectsUnknownVersion(t *testing.T) {
	path := writeConfig(t, "version: 2\n")
	if _, err := LoadStoryConfig(path); err == nil {
		t.Errorf("expected unsupported version to be rejected")
	}
}

func TestAPIPortDefault(t *testing.T) {
	var cfg StoryConfig
	if cfg.APIPort() != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.APIPort())
	}
}

func TestResolveSecretFileConvention(t *testing.T) {
	secretFile := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(secretFile, []byte("hunter2\n"), 0o600); err != nil {
		t.Fatalf("failed to write secret file: %v", err)
	}

	t.Setenv("STORYFORGE_TEST_SECRET", "direct")
	t.Setenv("STORYFORGE_TEST_SECRET_FILE", secretFile)

	// *_FILE takes precedence and the value is trimmed.
	got, err := ResolveSecret("STORYFORGE_TEST_SECRET")
	if err != nil {
		t.Fatalf("ResolveSecret failed: %v", err)
	}
	if got != "hunter2" {
		t.Errorf("expected hunter2, got %q", got)
	}

	t.Setenv("STORYFORGE_TEST_SECRET_FILE", "")
	got, err = ResolveSecret("STORYFORGE_TEST_SECRET")
	if err != nil {
		t.Fatalf("ResolveSecret failed: %v", err)
	}
	if got != "direct" {
		t.Errorf("expected direct env value, got %q", got)
	}
}
