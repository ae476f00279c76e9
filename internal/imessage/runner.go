package imessage

import (
	"context"
	"fmt"
	"os/exec"
)

// Runner executes one automation script against the Messages application.
type Runner interface {
	Run(ctx context.Context, script string) error
}

// OsascriptRunner runs scripts through the osascript binary. The caller
// bounds each invocation with a context deadline; a timed-out script is
// killed, never awaited past its deadline.
type OsascriptRunner struct{}

// Run executes the script, folding stderr into the returned error.
func (OsascriptRunner) Run(ctx context.Context, script string) error {
	cmd := exec.CommandContext(ctx, "osascript", "-e", script)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("osascript: %w (%s)", err, string(out))
	}
	return nil
}
