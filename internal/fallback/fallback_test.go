package fallback

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func step(name string, err error, calls *[]string) Step {
	return Step{
		Name: name,
		Run: func(context.Context) error {
			*calls = append(*calls, name)
			return err
		},
	}
}

func TestFirstSuccessWins(t *testing.T) {
	var calls []string
	name, err := First(context.Background(), []Step{
		step("a", errors.New("a failed"), &calls),
		step("b", nil, &calls),
		step("c", nil, &calls),
	})
	if err != nil {
		t.Fatalf("First() error = %v", err)
	}
	if name != "b" {
		t.Errorf("winner = %q, want %q", name, "b")
	}
	if len(calls) != 2 {
		t.Errorf("calls = %v, want [a b] only", calls)
	}
}

func TestLastFailureSurfaced(t *testing.T) {
	var calls []string
	first := errors.New("first")
	last := errors.New("last")
	_, err := First(context.Background(), []Step{
		step("a", first, &calls),
		step("b", last, &calls),
	})
	if !errors.Is(err, last) {
		t.Errorf("err = %v, want wrapped %v", err, last)
	}
	if errors.Is(err, first) {
		t.Error("first failure leaked through")
	}
	if !strings.Contains(err.Error(), "b:") {
		t.Errorf("err = %v, want step name prefix", err)
	}
}

func TestEmptyLadder(t *testing.T) {
	_, err := First(context.Background(), nil)
	if !errors.Is(err, ErrNoSteps) {
		t.Errorf("err = %v, want ErrNoSteps", err)
	}
}

func TestCancelledContextStopsLadder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls []string
	_, err := First(ctx, []Step{step("a", nil, &calls)})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(calls) != 0 {
		t.Errorf("calls = %v, want none after cancellation", calls)
	}
}
