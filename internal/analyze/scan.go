package analyze

import (
	"os"
	"path/filepath"
	"sort"
)

// DirEntryLister abstracts directory listing so tests can substitute an
// in-memory tree instead of touching the real filesystem.
type DirEntryLister interface {
	ReadDir(path string) ([]os.DirEntry, error)
	Stat(path string) (os.FileInfo, error)
}

// osFS is the default, real-filesystem-backed DirEntryLister.
type osFS struct{}

func (osFS) ReadDir(path string) ([]os.DirEntry, error) { return os.ReadDir(path) }
func (osFS) Stat(path string) (os.FileInfo, error)      { return os.Stat(path) }

// ScannedFile is one file discovered by the depth-first walk, before
// selection classification.
type ScannedFile struct {
	Path       string // absolute/resolved path
	FolderPath string
	Name       string
	Extension  string
	SizeBytes  int64
}

// Walk performs the depth-first, explicit-stack traversal of spec.md
// §4.5 step 1-2, invoking onFile for every regular file encountered (in
// directory-listing order within each directory) and onDir for every
// directory visited. Every stat/read error is reported via onScanError
// (the caller caps logging per spec.md §7's 5-warning cap); Walk itself
// returns nothing.
func Walk(fs DirEntryLister, root string, onFile func(ScannedFile), onDir func(string), onScanError func(path string, err error)) {
	stack := []string{root}

	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		onDir(dir)

		entries, err := fs.ReadDir(dir)
		if err != nil {
			onScanError(dir, err)

			continue
		}

		// Push subdirectories in reverse so traversal order matches a
		// natural depth-first recursion (first child visited first).
		var subdirs []string

		for _, e := range entries {
			full := filepath.Join(dir, e.Name())

			if e.IsDir() {
				subdirs = append(subdirs, full)

				continue
			}

			info, statErr := fs.Stat(full)
			if statErr != nil {
				onScanError(full, statErr)

				continue
			}

			onFile(ScannedFile{
				Path:       full,
				FolderPath: dir,
				Name:       e.Name(),
				Extension:  filepath.Ext(e.Name()),
				SizeBytes:  info.Size(),
			})
		}

		sort.Sort(sort.Reverse(sort.StringSlice(subdirs)))
		stack = append(stack, subdirs...)
	}
}
