package config

import (
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsEmptyConfig(t *testing.T) {
	m := &Manager{configDir: t.TempDir()}

	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultProvider != "" || len(cfg.Providers) != 0 {
		t.Errorf("expected empty config, got %+v", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m := &Manager{configDir: filepath.Join(t.TempDir(), "autopatch")}

	in := &Config{
		DefaultProvider: "anthropic",
		Providers: map[string]ProviderConfig{
			"anthropic": {APIKey: "sk-test", Model: "claude-3-5-sonnet-20241022"},
		},
		RateLimit: 50,
		RunTests:  true,
		Repo:      RepoConfig{Owner: "acme", Name: "widgets"},
	}
	if err := m.Save(in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !m.Exists() {
		t.Fatal("Exists should report true after Save")
	}

	out, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if out.DefaultProvider != "anthropic" {
		t.Errorf("DefaultProvider = %s", out.DefaultProvider)
	}
	if out.Provider("anthropic").Model != "claude-3-5-sonnet-20241022" {
		t.Errorf("model = %s", out.Provider("anthropic").Model)
	}
	if out.Repo.Owner != "acme" || out.Repo.Name != "widgets" {
		t.Errorf("repo = %+v", out.Repo)
	}
}

func TestApplyEnvOverridesFile(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-env")
	t.Setenv("AUTOPATCH_PROVIDER", "openai")
	t.Setenv("GITHUB_TOKEN", "ghp-env")
	t.Setenv("AUTOPATCH_TIMEOUT_SECS", "90")

	cfg := &Config{
		DefaultProvider: "anthropic",
		Providers: map[string]ProviderConfig{
			"anthropic": {APIKey: "sk-file", Model: "claude-3-5-haiku-20241022"},
		},
	}
	cfg.ApplyEnv()

	if got := cfg.Provider("anthropic").APIKey; got != "sk-env" {
		t.Errorf("APIKey = %s, want env value", got)
	}
	if got := cfg.Provider("anthropic").Model; got != "claude-3-5-haiku-20241022" {
		t.Errorf("Model = %s, file value must survive", got)
	}
	if cfg.DefaultProvider != "openai" {
		t.Errorf("DefaultProvider = %s", cfg.DefaultProvider)
	}
	if cfg.Repo.Token != "ghp-env" {
		t.Errorf("Token = %s", cfg.Repo.Token)
	}
	if cfg.TimeoutSecs != 90 {
		t.Errorf("TimeoutSecs = %d", cfg.TimeoutSecs)
	}
}
