package polyglot

import "fmt"

// Mode selects how the repository routes reads and writes across the
// primary and secondary stores.
//
// Writes always go to the primary first regardless of mode. The mode decides
// whether the secondary is written at all and which store serves reads.
type Mode string

const (
	// ModeSingleStore uses only the primary store. The secondary, if
	// configured, is never touched.
	ModeSingleStore Mode = "single_store"

	// ModeDualWrite writes to both stores and reads from the primary.
	// Secondary failures are compensated, not surfaced to callers.
	ModeDualWrite Mode = "dual_write"

	// ModeSecondaryPrimary writes to both stores but serves reads from the
	// secondary. Used to validate the secondary under real read traffic
	// before a cutover.
	ModeSecondaryPrimary Mode = "secondary_primary"
)

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSingleStore, ModeDualWrite, ModeSecondaryPrimary:
		return Mode(s), nil
	case "":
		return ModeSingleStore, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

func (m Mode) String() string { return string(m) }

// WritesSecondary reports whether writes propagate to the secondary store.
func (m Mode) WritesSecondary() bool {
	return m == ModeDualWrite || m == ModeSecondaryPrimary
}

// ReadsFromSecondary reports whether reads are served by the secondary store.
func (m Mode) ReadsFromSecondary() bool {
	return m == ModeSecondaryPrimary
}
