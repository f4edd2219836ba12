// Package clockid supplies run timestamps and the run-identifier naming
// scheme shared by every workflow.
package clockid

import (
	"strings"
	"time"
)

// Driver names a transfer tool family.
type Driver string

// Supported driver families.
const (
	DriverToolF Driver = "toolF"
	DriverToolT Driver = "toolT"
)

// Mode names the ToolF unit granularity. Unused (empty) for ToolT.
type Mode string

// Supported ToolF send modes.
const (
	ModeFiles   Mode = "files"
	ModeFolders Mode = "folders"
)

const (
	isoLayout = "2006-01-02T15:04:05"
	brLayout  = "02/01/2006 15:04:05"
	runLayout = "02012006_150405"
)

// Clock supplies wall-clock readings. The zero value uses time.Now; tests
// may substitute Now to get deterministic IDs and timestamps.
type Clock struct {
	Now func() time.Time
}

// Default is the package-level clock used by the free functions below.
var Default = &Clock{}

func (c *Clock) now() time.Time {
	if c == nil || c.Now == nil {
		return time.Now()
	}

	return c.Now()
}

// NowISO returns the current local time as ISO 8601 (no timezone suffix,
// matching the run artifacts' timestamp_iso column).
func (c *Clock) NowISO() string { return c.now().Format(isoLayout) }

// NowBR returns the current local time as dd/MM/yyyy HH:mm:ss.
func (c *Clock) NowBR() string { return c.now().Format(brLayout) }

// NowDual returns (br, iso) in one call, guaranteeing both timestamps are
// stamped from the same instant.
func (c *Clock) NowDual() (br, iso string) {
	t := c.now()

	return t.Format(brLayout), t.Format(isoLayout)
}

// NewRunID returns a raw run identifier with no driver suffix.
func (c *Clock) NewRunID() string { return c.now().Format(runLayout) }

// NowISO, NowBR, NowDual, NewRunID are convenience wrappers over Default.
func NowISO() string           { return Default.NowISO() }
func NowBR() string            { return Default.NowBR() }
func NowDual() (string, string) { return Default.NowDual() }
func NewRunID() string         { return Default.NewRunID() }

// suffixFor returns the canonical suffix for a driver/mode pair.
func suffixFor(driver Driver, mode Mode) string {
	switch driver {
	case DriverToolF:
		if mode == ModeFolders {
			return "_toolF_folders"
		}

		return "_toolF_files"
	case DriverToolT:
		return "_toolT"
	default:
		return ""
	}
}

// allSuffixes lists every suffix NormalizeRunID must be able to strip,
// longest first so a shorter suffix never matches a prefix of a longer one.
var allSuffixes = []string{"_toolF_folders", "_toolF_files", "_toolT"}

// stripKnownSuffix removes any already-present driver suffix from raw.
func stripKnownSuffix(raw string) string {
	for _, suf := range allSuffixes {
		if strings.HasSuffix(raw, suf) {
			return strings.TrimSuffix(raw, suf)
		}
	}

	return raw
}

// NormalizeRunID strips any existing driver suffix from raw and appends the
// suffix for (driver, mode). It is idempotent:
// NormalizeRunID(NormalizeRunID(x, d, m), d, m) == NormalizeRunID(x, d, m).
func NormalizeRunID(raw string, driver Driver, mode Mode) string {
	base := stripKnownSuffix(raw)

	return base + suffixFor(driver, mode)
}
