package polystore

// Command is one discrete application operation with its specific options.
// Commands are produced by [Parse] and executed by [Main] through the
// matching [App] method.
type Command interface {
	// Name returns the CLI subcommand this command was parsed from.
	Name() string
}

// RunCommand starts the HTTP server and, when compensation is enabled, the
// background replay loop.
type RunCommand struct{}

func (c *RunCommand) Name() string { return "run" }

// BackfillCommand copies existing primary data into the secondary store and
// exits. An empty EntityType backfills every type.
type BackfillCommand struct {
	// EntityType restricts the run to one entity type when non-empty.
	EntityType string

	// BatchSize is the page size read from the primary per batch.
	BatchSize int

	// Overwrite copies entities that already exist in the secondary.
	Overwrite bool

	// Cursor resumes a previous run. Only valid with EntityType set, since
	// cursors are per entity type.
	Cursor string
}

func (c *BackfillCommand) Name() string { return "backfill" }

// ReplayCommand runs one compensation replay pass and exits.
type ReplayCommand struct {
	// BatchSize caps how many due records the pass processes.
	BatchSize int
}

func (c *ReplayCommand) Name() string { return "replay" }

// StatusCommand prints the engine status as JSON and exits.
type StatusCommand struct{}

func (c *StatusCommand) Name() string { return "status" }
