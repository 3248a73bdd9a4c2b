package polystore

import (
	"flag"
	"fmt"
)

// Parse parses command line arguments into the command to execute and the
// application configuration. Configuration is loaded from the environment
// first; flags override it.
func Parse(args []string) (Command, *Config, error) {
	flagSet := flag.NewFlagSet("polystore", flag.ContinueOnError)

	var (
		mode      = flagSet.String("mode", "", "Routing mode: single_store, dual_write, secondary_primary")
		port      = flagSet.String("port", "", "Server port")
		primary   = flagSet.String("primary", "", "Primary store driver: surrealdb, postgres, memory")
		secondary = flagSet.String("secondary", "", "Secondary store driver: surrealdb, postgres, memory, none")
		readOnly  = flagSet.Bool("read-only", false, "Reject all write operations")

		entityType = flagSet.String("entity-type", "", "Backfill only this entity type")
		batchSize  = flagSet.Int("batch-size", 100, "Batch size for backfill and replay")
		overwrite  = flagSet.Bool("overwrite", false, "Backfill entities that already exist in the secondary")
		cursor     = flagSet.String("cursor", "", "Resume backfill from this cursor (requires -entity-type)")
	)

	if err := flagSet.Parse(args); err != nil {
		return nil, nil, err
	}

	remainingArgs := flagSet.Args()
	if len(remainingArgs) == 0 {
		return nil, nil, fmt.Errorf(`subcommand required

Usage: polystore [flags] <command>

Commands:
  run       Start the HTTP server
  backfill  Copy existing primary data into the secondary store
  replay    Run one compensation replay pass
  status    Print the engine status and exit

Examples:
  # Normal operation
  polystore run                                  # Default: primary store only
  polystore -mode dual_write run                 # Write to both stores
  polystore -mode secondary_primary run          # Read from the secondary

  # Migration
  polystore -mode dual_write backfill            # Backfill all entity types
  polystore backfill -entity-type account        # Backfill one type
  polystore backfill -entity-type account -cursor acct-42   # Resume a run
  polystore replay                               # Drain the compensation backlog

  # Store selection
  polystore -primary postgres -secondary none run
  polystore -secondary memory run`)
	}

	// Flags may also follow the subcommand, as in "backfill -entity-type
	// account". Re-parsing the tail picks those up.
	if len(remainingArgs) > 1 {
		if err := flagSet.Parse(remainingArgs[1:]); err != nil {
			return nil, nil, err
		}
	}

	config, err := LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	// Flags win over environment.
	if *mode != "" {
		config.Mode = *mode
	}
	if *port != "" {
		config.ServerPort = *port
	}
	if *primary != "" {
		config.PrimaryDriver = *primary
	}
	if *secondary != "" {
		config.SecondaryDriver = *secondary
	}
	if *readOnly {
		config.ReadOnly = true
	}

	if err := config.Validate(); err != nil {
		return nil, nil, err
	}

	var cmd Command
	switch remainingArgs[0] {
	case "run":
		cmd = &RunCommand{}
	case "backfill":
		if *cursor != "" && *entityType == "" {
			return nil, nil, fmt.Errorf("-cursor requires -entity-type: cursors are per entity type")
		}
		cmd = &BackfillCommand{
			EntityType: *entityType,
			BatchSize:  *batchSize,
			Overwrite:  *overwrite,
			Cursor:     *cursor,
		}
	case "replay":
		cmd = &ReplayCommand{BatchSize: *batchSize}
	case "status":
		cmd = &StatusCommand{}
	default:
		return nil, nil, fmt.Errorf("unknown command: %s\n\nValid commands: run, backfill, replay, status", remainingArgs[0])
	}

	return cmd, config, nil
}
