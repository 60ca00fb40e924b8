package sandbox

import (
	"context"
	"time"
)

// Result captures output of a command run inside the sandbox.
type Result struct {
	Stdout   string
	Stderr   string
	Code     int
	TimedOut bool
}

// Runner defines the interface for running verification commands in an
// isolated environment. Implementations should provide isolation from the
// host system so generated code cannot affect it.
type Runner interface {
	// RunCmd runs a command in the given staged workspace with a timeout.
	// - ctx: base context for cancellation
	// - workDir: path to the staged workspace on disk
	// - name: executable name, e.g. "go"
	// - args: arguments, e.g. []string{"test", "./..."}
	// - timeout: optional timeout (<=0 uses default)
	RunCmd(ctx context.Context, workDir, name string, args []string, timeout time.Duration) (Result, error)
}
