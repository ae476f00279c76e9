// Package fallback runs an ordered list of strategies until one succeeds.
// Both the HEIC transcoder chain and the outbound send ladder are built on
// it: each step is independent, a step failure moves on to the next, and
// only the last failure is surfaced when every step fails.
package fallback

import (
	"context"
	"errors"
	"fmt"
)

// Step is one attempt in a ladder.
type Step struct {
	// Name identifies the step in logs and wrapped errors.
	Name string
	// Run performs the attempt. A nil error wins the ladder.
	Run func(ctx context.Context) error
}

// ErrNoSteps is returned by First when the ladder is empty.
var ErrNoSteps = errors.New("no strategies to attempt")

// First runs steps in order and returns the name of the first step that
// succeeds. If every step fails, it returns the last failure wrapped with
// that step's name. Context cancellation stops the ladder immediately.
func First(ctx context.Context, steps []Step) (string, error) {
	if len(steps) == 0 {
		return "", ErrNoSteps
	}
	var lastErr error
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		err := step.Run(ctx)
		if err == nil {
			return step.Name, nil
		}
		lastErr = fmt.Errorf("%s: %w", step.Name, err)
	}
	return "", lastErr
}
