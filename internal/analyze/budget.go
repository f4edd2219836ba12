package analyze

import (
	"strconv"
	"strings"

	"github.com/hexmed-tecnologia/dicomsync/internal/runconfig"
)

// Command-length budgets, reproduced verbatim from
// app/domain/constants.py's WINDOWS_CMD_SAFE_MAX_CHARS /
// WINDOWS_DIRECT_SAFE_MAX_CHARS (spec.md §4.5 step 7).
const (
	ShellWrappedBudgetChars = 7600
	DirectBudgetChars       = 30000
)

// BatchMaxCmdSource tags the provenance of a computed ceiling.
type BatchMaxCmdSource string

// Recognized ceiling sources.
const (
	SourceArgfile  BatchMaxCmdSource = "TOOLF_JAVA_ARGFILE"
	SourceCmdLimit BatchMaxCmdSource = "TOOLF_CMD_LIMIT"
	SourceNA       BatchMaxCmdSource = "N/A"
)

// QuoteArgLen returns the length of tok as it would appear on a
// platform command line once quoted (a double-quoted argument with
// internal quotes doubled, the common Windows cmd.exe convention).
func QuoteArgLen(tok string) int {
	return len(`"`) + len(strings.ReplaceAll(tok, `"`, `""`)) + len(`"`)
}

// EstimateBatchMaxCmd computes batch_max_cmd and its source, per
// spec.md §4.5 step 7 / the original's estimate_dcm4che_batch_max_cmd.
func EstimateBatchMaxCmd(cfg *runconfig.Config, baseCommandLen, unitMaxArgLen, unitsTotal int) (int, BatchMaxCmdSource, int) {
	if cfg.Toolkit != runconfig.ToolkitF {
		return 0, SourceNA, 0
	}

	if cfg.ToolFPreferJavaDirect {
		return unitsTotal, SourceArgfile, DirectBudgetChars
	}

	budget := DirectBudgetChars
	if cfg.ToolFUseShellWrapper {
		budget = ShellWrappedBudgetChars
	}

	if unitsTotal <= 0 {
		return 0, SourceCmdLimit, budget
	}

	if unitMaxArgLen <= 0 {
		return unitsTotal, SourceCmdLimit, budget
	}

	remaining := budget - baseCommandLen
	perUnitCost := 1 + unitMaxArgLen

	if remaining < perUnitCost {
		return 0, SourceCmdLimit, budget
	}

	maxUnits := remaining / perUnitCost
	if maxUnits > unitsTotal {
		maxUnits = unitsTotal
	}

	return maxUnits, SourceCmdLimit, budget
}

// BaseCommandLen estimates the fixed portion of the send command line
// (binary path, flags, AET/host/port) for the ceiling computation. It
// does not include any per-unit argument.
func BaseCommandLen(binPath, aetDest, pacsHost string, pacsPort int, shellWrapped bool) int {
	parts := []string{binPath, "-c", aetDest + "@" + pacsHost + ":" + strconv.Itoa(pacsPort)}
	if shellWrapped {
		parts = append([]string{"cmd", "/c"}, parts...)
	}

	total := 0
	for _, p := range parts {
		total += len(p) + 1 // +1 for the separating space
	}

	return total
}
