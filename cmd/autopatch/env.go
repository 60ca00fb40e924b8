package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"autopatch/internal/agent"
	"autopatch/internal/audit"
	"autopatch/internal/config"
	"autopatch/internal/gateway"
	"autopatch/internal/orchestrator"
	"autopatch/internal/providers"
	"autopatch/internal/sandbox"
	"autopatch/internal/scm"
	"autopatch/internal/verify"
)

// runtimeEnv is the fully wired engine: one gateway, one ledger, one agent
// per process, shared by every task it runs.
type runtimeEnv struct {
	Orchestrator *orchestrator.Orchestrator
	Ledger       *audit.Ledger

	usage *gateway.UsageStore
}

func (r *runtimeEnv) Close() {
	if r.usage != nil {
		if err := r.usage.Close(); err != nil {
			log.Printf("WARNING: failed to close usage store: %v", err)
		}
	}
	if r.Ledger != nil {
		if err := r.Ledger.Close(); err != nil {
			log.Printf("WARNING: failed to close ledger: %v", err)
		}
	}
}

func prepareRuntimeEnv(ctx context.Context) (*runtimeEnv, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	dir, err := dataDir()
	if err != nil {
		return nil, err
	}

	gw, usage, err := buildGateway(ctx, cfg, dir)
	if err != nil {
		return nil, err
	}

	ledger, err := buildLedger(cfg, dir)
	if err != nil {
		usage.Close()
		return nil, err
	}

	verifier := buildVerifier(ctx, cfg)

	a, err := agent.New(agent.Options{
		Completer: gw,
		Verifier:  verifier,
		Ledger:    ledger,
		Timeout:   cfg.Timeout(),
	})
	if err != nil {
		usage.Close()
		ledger.Close()
		return nil, err
	}

	return &runtimeEnv{
		Orchestrator: orchestrator.New(a, buildExecutor(cfg), ledger),
		Ledger:       ledger,
		usage:        usage,
	}, nil
}

func loadConfig() (*config.Config, error) {
	manager, err := config.NewManager()
	if err != nil {
		log.Printf("WARNING: failed to initialize config manager: %v", err)
		cfg := &config.Config{}
		cfg.ApplyEnv()
		return cfg, nil
	}

	cfg, err := manager.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if manager.Exists() {
		log.Printf("Config loaded from: %s", manager.GetConfigPath())
	}

	cfg.ApplyEnv()
	return cfg, nil
}

func dataDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config dir: %w", err)
	}

	dir := filepath.Join(configDir, "autopatch")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data dir: %w", err)
	}
	return dir, nil
}

func buildGateway(ctx context.Context, cfg *config.Config, dataDir string) (*gateway.Gateway, *gateway.UsageStore, error) {
	var specs []providers.Spec
	for _, name := range []string{"anthropic", "openai", "local"} {
		p := cfg.Provider(name)
		if p.APIKey == "" && p.BaseURL == "" && name != "local" {
			continue
		}
		specs = append(specs, providers.Spec{
			Name:    name,
			APIKey:  p.APIKey,
			Model:   p.Model,
			BaseURL: p.BaseURL,
		})
	}

	built, err := providers.Build(ctx, specs)
	if err != nil {
		return nil, nil, err
	}

	defaultProvider := cfg.DefaultProvider
	if defaultProvider == "" {
		for _, name := range []string{"anthropic", "openai", "local"} {
			if _, ok := built[name]; ok {
				defaultProvider = name
				break
			}
		}
	}

	usagePath := cfg.UsageDBPath
	if usagePath == "" {
		usagePath = filepath.Join(dataDir, "usage.db")
	}
	usage, err := gateway.NewUsageStore(ctx, usagePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open usage store: %w", err)
	}

	gw, err := gateway.New(gateway.Options{
		Providers:       built,
		DefaultProvider: defaultProvider,
		RateLimit:       cfg.RateLimit,
		RateWindow:      cfg.RateWindow(),
		Usage:           usage,
	})
	if err != nil {
		usage.Close()
		return nil, nil, err
	}

	return gw, usage, nil
}

func buildLedger(cfg *config.Config, dataDir string) (*audit.Ledger, error) {
	ledgerPath := cfg.LedgerPath
	if ledgerPath == "" {
		ledgerPath = filepath.Join(dataDir, "ledger.ndjson")
	}

	store, err := audit.NewFileStore(ledgerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit store: %w", err)
	}

	ledger, err := audit.NewLedger(audit.Options{
		Store:      store,
		MaxEntries: cfg.LedgerMax,
		Search:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ledger: %w", err)
	}
	return ledger, nil
}

func buildVerifier(ctx context.Context, cfg *config.Config) *verify.Runner {
	if !cfg.RunTests {
		return verify.NewRunner(verify.Options{})
	}

	sandboxCfg := sandbox.DefaultConfig()
	if cfg.SandboxImage != "" {
		sandboxCfg.Image = cfg.SandboxImage
	}

	runner, err := sandbox.NewRunner(ctx, sandboxCfg)
	if err != nil {
		log.Printf("WARNING: sandbox unavailable, test runs disabled: %v", err)
		return verify.NewRunner(verify.Options{})
	}

	return verify.NewRunner(verify.Options{
		Tests:    &verify.SandboxExecutor{Runner: runner},
		RunTests: true,
	})
}

func buildExecutor(cfg *config.Config) orchestrator.Executor {
	if cfg.Repo.Owner == "" || cfg.Repo.Name == "" || cfg.Repo.Token == "" {
		log.Println("No source-control backend configured; changes will not be applied")
		return nil
	}

	client := scm.NewGitHubClient(cfg.Repo.Owner, cfg.Repo.Name, cfg.Repo.Token, cfg.Repo.APIBase)

	var opts []scm.EngineOption
	if d := cfg.MergeDelay(); d > 0 {
		opts = append(opts, scm.WithMergeDelay(d))
	}
	return scm.NewEngine(client, opts...)
}

func readAllStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
