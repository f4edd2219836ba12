// Package toolkit implements the Toolkit Locator and the ToolF/ToolT
// driver pair (spec.md §4.4, §4.6, §4.7), grounded in
// app/integrations/toolkit_drivers.py and app/domain/constants.py.
package toolkit

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Locate searches baseDir/toolkits/{familyPrefix}*/bin/ for a directory
// containing probeFile, returning the lexically greatest candidate when
// more than one version is installed side by side. Returns "" if none
// is found.
func Locate(baseDir, familyPrefix, probeFile string) (string, error) {
	root := filepath.Join(baseDir, "toolkits")

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}

		return "", err
	}

	var candidates []string

	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), familyPrefix) {
			continue
		}

		bin := filepath.Join(root, e.Name(), "bin")

		if _, statErr := os.Stat(filepath.Join(bin, probeFile)); statErr == nil {
			candidates = append(candidates, bin)
		}
	}

	if len(candidates) == 0 {
		return "", nil
	}

	sort.Strings(candidates)

	return candidates[len(candidates)-1], nil
}
