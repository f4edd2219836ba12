package main

import (
	"fmt"
	"path/filepath"

	"github.com/hexmed-tecnologia/dicomsync/internal/runconfig"
	"github.com/hexmed-tecnologia/dicomsync/internal/send"
	"github.com/hexmed-tecnologia/dicomsync/internal/toolkit"
)

// dcm4che and DCMTK on-disk filenames, grounded on
// app/integrations/toolkit_drivers.py's find_toolkit_bin probe files and
// per-command invocations.
const (
	toolFFamilyPrefix = "dcm4che"
	toolFProbeFile    = "storescu.bat"
	toolFShellScript  = "storescu.bat"
	toolFDumpScript   = "dcmdump.bat"

	toolTFamilyPrefix = "dcmtk"
	toolTProbeFile    = "storescu.exe"
	toolTStoreSCUName = "storescu.exe"
	toolTDcmdumpName  = "dcmdump.exe"
)

// resolvedDriver bundles the built Driver with the bin/lib directories
// the Send workflow needs alongside it.
type resolvedDriver struct {
	Driver toolkit.Driver
	BinDir string
	LibDir string
}

// buildDriver locates the configured toolkit family under baseDir and
// constructs its Driver, per spec.md §4.4's Toolkit Locator.
func buildDriver(cfg *runconfig.Config, baseDir string) (resolvedDriver, error) {
	switch cfg.Toolkit {
	case runconfig.ToolkitF:
		binDir, err := toolkit.Locate(baseDir, toolFFamilyPrefix, toolFProbeFile)
		if err != nil {
			return resolvedDriver{}, fmt.Errorf("locate toolF bin: %w", err)
		}

		if binDir == "" {
			return resolvedDriver{}, send.ErrToolkitNotFound
		}

		libDir := filepath.Join(filepath.Dir(binDir), "lib")

		javaPath, _ := send.ResolveJava()

		jars, _ := filepath.Glob(filepath.Join(libDir, "*.jar"))

		driver := &toolkit.ToolFDriver{
			JavaPath:               javaPath,
			LibDir:                 libDir,
			ShellScriptName:        toolFShellScript,
			MetadataDumpScriptName: toolFDumpScript,
			ClassPathJars:          jars,
		}

		return resolvedDriver{Driver: driver, BinDir: binDir, LibDir: libDir}, nil

	case runconfig.ToolkitT:
		binDir, err := toolkit.Locate(baseDir, toolTFamilyPrefix, toolTProbeFile)
		if err != nil {
			return resolvedDriver{}, fmt.Errorf("locate toolT bin: %w", err)
		}

		if binDir == "" {
			return resolvedDriver{}, send.ErrToolkitNotFound
		}

		driver := &toolkit.ToolTDriver{StoreSCUName: toolTStoreSCUName, DcmdumpName: toolTDcmdumpName}

		return resolvedDriver{Driver: driver, BinDir: binDir}, nil

	default:
		return resolvedDriver{}, fmt.Errorf("unsupported toolkit %q", cfg.Toolkit)
	}
}
