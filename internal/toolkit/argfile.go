package toolkit

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// WriteArgFile writes tokens one per line, each wrapped in double quotes
// with every backslash doubled and every embedded double quote prefixed
// with a backslash — the convention the direct-Java argfile reader
// requires (spec.md §4.6, "Argfile convention").
func WriteArgFile(path string, tokens []string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("toolkit: open argfile %s: %w", path, err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)

	for _, tok := range tokens {
		if _, err := bw.WriteString(QuoteArgfileToken(tok)); err != nil {
			return fmt.Errorf("toolkit: write argfile %s: %w", path, err)
		}

		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("toolkit: write argfile %s: %w", path, err)
		}
	}

	return bw.Flush()
}

// QuoteArgfileToken applies the argfile escaping convention to a single
// token: backslashes doubled, embedded double quotes backslash-escaped,
// the whole thing wrapped in double quotes.
func QuoteArgfileToken(tok string) string {
	escaped := strings.ReplaceAll(tok, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)

	return `"` + escaped + `"`
}
