package send

import (
	"errors"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hexmed-tecnologia/dicomsync/internal/toolkit"
)

// ErrJavaUnavailable and ErrJavaHealthcheckFail are the two fatal
// pre-flight failures ToolF can raise before the first batch (spec.md
// §4.6 pre-flight step 5, §7).
var (
	ErrJavaUnavailable     = errors.New("send: no usable java executable found")
	ErrJavaHealthcheckFail = errors.New("send: dcm4che lib directory missing required jars")
)

// lookPath abstracts exec.LookPath for testability.
var lookPath = exec.LookPath

// globJars abstracts filepath.Glob for testability.
var globJars = func(libDir string) ([]string, error) {
	return filepath.Glob(filepath.Join(libDir, "*.jar"))
}

// ResolveJava returns the first usable java executable on PATH, or
// ErrJavaUnavailable if none is found.
func ResolveJava() (string, error) {
	path, err := lookPath("java")
	if err != nil {
		return "", ErrJavaUnavailable
	}

	return path, nil
}

// CheckJarMarkers verifies libDir contains at least one jar whose name
// contains each of toolkit.CriticalJarMarkers (spec.md §4.6 pre-flight
// step 5). Returns the missing markers, if any.
func CheckJarMarkers(libDir string) (missing []string, err error) {
	jars, globErr := globJars(libDir)
	if globErr != nil {
		return nil, globErr
	}

	lowerNames := make([]string, len(jars))
	for i, j := range jars {
		lowerNames[i] = strings.ToLower(filepath.Base(j))
	}

	for _, marker := range toolkit.CriticalJarMarkers {
		markerLower := strings.ToLower(marker)

		found := false

		for _, name := range lowerNames {
			if strings.Contains(name, markerLower) {
				found = true

				break
			}
		}

		if !found {
			missing = append(missing, marker)
		}
	}

	return missing, nil
}

// ToolFHealthCheck runs both ToolF pre-flight checks: a usable java
// executable, and the critical jar markers under libDir.
func ToolFHealthCheck(libDir string) error {
	if _, err := ResolveJava(); err != nil {
		return ErrJavaUnavailable
	}

	missing, err := CheckJarMarkers(libDir)
	if err != nil {
		return err
	}

	if len(missing) > 0 {
		return ErrJavaHealthcheckFail
	}

	return nil
}
