package polystore

import (
	"context"
	"fmt"
)

// Main is the entry point for the polystore application. It parses the
// arguments, wires the application, and executes the selected command.
// Callable directly from tests without building the binary.
func Main(ctx context.Context, args []string) error {
	cmd, config, err := Parse(args)
	if err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	app, err := New(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer app.Close()

	switch c := cmd.(type) {
	case *RunCommand:
		if err := app.Run(ctx, c); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case *BackfillCommand:
		if err := app.Backfill(ctx, c); err != nil {
			return fmt.Errorf("backfill failed: %w", err)
		}
	case *ReplayCommand:
		if err := app.Replay(ctx, c); err != nil {
			return fmt.Errorf("replay failed: %w", err)
		}
	case *StatusCommand:
		if err := app.PrintStatus(ctx); err != nil {
			return fmt.Errorf("status failed: %w", err)
		}
	default:
		return fmt.Errorf("unknown command type: %T", cmd)
	}

	return nil
}
