package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"autopatch/internal/agent"
	"autopatch/internal/config"
	"autopatch/internal/gateway"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx := context.Background()

	args := os.Args[1:]
	if len(args) > 0 {
		switch args[0] {
		case "report":
			if err := runReportCommand(ctx, args[1:]); err != nil {
				log.Fatalf("report command failed: %v", err)
			}
			return
		case "run":
			args = args[1:]
		}
	}

	if err := runTaskCommand(ctx, args); err != nil {
		log.Fatalf("command failed: %v", err)
	}
}

func runTaskCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("autopatch", flag.ExitOnError)
	taskType := fs.String("type", "fix", "Task type: generate, fix, refactor, test, review")
	description := fs.String("desc", "", "Natural-language task description")
	language := fs.String("lang", "", "Target language (default: inferred during analysis)")
	filePath := fs.String("file", "", "Repository path the change targets")
	codePath := fs.String("code", "", "Local file holding the existing code, - for stdin")
	autoApply := fs.Bool("apply", false, "Execute the change when it is auto-approved")
	skipTests := fs.Bool("skip-tests", false, "Skip the sandboxed test-suite run")
	jsonOut := fs.Bool("json", false, "Print the full outcome as JSON")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *description == "" {
		return fmt.Errorf("a task description is required (-desc)")
	}

	code, err := readCode(*codePath)
	if err != nil {
		return err
	}

	env, err := prepareRuntimeEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	task := agent.Task{
		ID:          uuid.NewString(),
		Type:        *taskType,
		Description: *description,
		Language:    *language,
		FilePath:    *filePath,
		Code:        code,
		SkipTests:   *skipTests,
		AutoApply:   *autoApply,
	}

	log.Printf("Running task %s (%s)", task.ID, task.Type)

	outcome, runErr := env.Orchestrator.Run(ctx, task)
	if *jsonOut {
		printJSON(outcome)
	} else if outcome != nil && outcome.Run != nil {
		printOutcome(outcome)
	}
	return runErr
}

func runReportCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	since := fs.Duration("since", 24*time.Hour, "Report window, counted back from now")
	jsonOut := fs.Bool("json", false, "Structured JSON instead of the narrative summary")
	withEntries := fs.Bool("entries", false, "Include the raw entries in JSON output")

	if err := fs.Parse(args); err != nil {
		return err
	}

	// The report only needs the ledger; no providers are wired up.
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir, err := dataDir()
	if err != nil {
		return err
	}
	ledger, err := buildLedger(cfg, dir)
	if err != nil {
		return err
	}
	defer ledger.Close()

	report := ledger.BuildReport(time.Now().Add(-*since), time.Time{}, *withEntries)

	if *jsonOut {
		data, err := report.JSON()
		if err != nil {
			return fmt.Errorf("failed to render report: %w", err)
		}
		fmt.Println(data)
		return nil
	}

	fmt.Println(report.Narrative())

	if err := printUsageTotals(ctx, cfg, dir, time.Now().Add(-*since)); err != nil {
		log.Printf("WARNING: gateway usage totals unavailable: %v", err)
	}
	return nil
}

// printUsageTotals prints the gateway-side accounting kept in the sqlite
// usage store. The store never trims, so its totals stay complete after
// the ledger's in-memory buffer has rotated.
func printUsageTotals(ctx context.Context, cfg *config.Config, dir string, since time.Time) error {
	path := cfg.UsageDBPath
	if path == "" {
		path = filepath.Join(dir, "usage.db")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	store, err := gateway.NewUsageStore(ctx, path)
	if err != nil {
		return err
	}
	defer store.Close()

	totals, err := store.Totals(ctx, since)
	if err != nil {
		return err
	}
	fmt.Printf("Gateway usage: %d calls, %d prompt + %d completion tokens, $%.4f (%d unpriced)\n",
		totals.Calls, totals.PromptTokens, totals.CompletionTokens, totals.Cost, totals.UnpricedCalls)

	byProvider, err := store.TotalsByProvider(ctx, since)
	if err != nil {
		return err
	}
	providers := make([]string, 0, len(byProvider))
	for name := range byProvider {
		providers = append(providers, name)
	}
	sort.Strings(providers)
	for _, name := range providers {
		fmt.Printf("  %s: $%.4f\n", name, byProvider[name])
	}
	return nil
}

func readCode(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "-" {
		data, err := readAllStdin()
		if err != nil {
			return "", fmt.Errorf("failed to read code from stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read code file: %w", err)
	}
	return string(data), nil
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Printf("WARNING: failed to render outcome: %v", err)
		return
	}
	fmt.Println(string(data))
}
