package sandbox

import (
	"context"
	"fmt"
	"log"
	"os/exec"
	"time"
)

// Config holds configuration for sandbox execution.
type Config struct {
	Image      string        // Docker image override; empty selects per language
	CPU        string        // CPU limit (e.g., "2")
	Memory     string        // Memory limit (e.g., "1g")
	CmdTimeout time.Duration // Default command timeout (0 = 2m)
}

// DefaultConfig returns a conservative sandbox configuration.
func DefaultConfig() Config {
	return Config{
		CPU:        "2",
		Memory:     "1g",
		CmdTimeout: 2 * time.Minute,
	}
}

// IsDockerAvailable checks if Docker is available and accessible.
func IsDockerAvailable(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, "docker", "ps")
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run() == nil
}

// NewRunner creates a Docker-backed runner, or reports that no sandbox is
// available. Unlike a general command runner there is no host fallback here:
// generated code is untrusted, so with no Docker daemon the test check is
// skipped rather than run on the host.
func NewRunner(ctx context.Context, config Config) (Runner, error) {
	if !IsDockerAvailable(ctx) {
		return nil, fmt.Errorf("docker daemon not available")
	}
	runner, err := NewDockerRunner(config)
	if err != nil {
		log.Printf("WARNING: Docker available but failed to create runner: %v", err)
		return nil, err
	}
	return runner, nil
}

// ImageForLanguage returns the Docker image used to run a language's tests.
// A custom image in config takes precedence.
func ImageForLanguage(language string, config Config) string {
	if config.Image != "" {
		return config.Image
	}

	switch language {
	case "go", "golang":
		return "golang:alpine"
	case "javascript", "typescript", "node":
		return "node:alpine"
	case "python":
		return "python:alpine"
	case "rust":
		return "rust:alpine"
	default:
		return "alpine:latest"
	}
}
