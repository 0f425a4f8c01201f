// Package files enumerates and copies test data files selected by a
// directory plus an extension filter.
package files

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"iobot/internal/program"
	appErr "iobot/pkg/errors"
)

// Role selects the default extension filter.
type Role int

const (
	Input Role = iota
	Output
)

// DefaultExtension returns ".in" for inputs and ".out" for outputs.
func (r Role) DefaultExtension() string {
	if r == Output {
		return ".out"
	}
	return ".in"
}

func (r Role) String() string {
	if r == Output {
		return "output"
	}
	return "input"
}

// Files is a directory, relative to some base, plus an optional set of
// admitted extensions. Extensions include the leading "."; an empty string
// admits files without an extension.
type Files struct {
	Path       string   `yaml:"path"`
	Extensions []string `yaml:"extensions,omitempty"`
}

// Admitted returns the explicit extensions, or the role default when none are set.
func (f Files) Admitted(role Role) []string {
	if f.Extensions != nil {
		return f.Extensions
	}
	return []string{role.DefaultExtension()}
}

// Root joins base with the descriptor path.
func (f Files) Root(base string) string {
	return filepath.Join(base, f.Path)
}

// Extension is program.Extension: the filter compares the same syntactic
// extension the shorthand resolver dispatches on.
func Extension(path string) string {
	return program.Extension(path)
}

// List returns every regular file under f.Root(base), recursively, whose
// extension is admitted for role. Paths are sorted lexicographically.
func List(base string, f Files, role Role) ([]string, error) {
	root := f.Root(base)
	admitted := make(map[string]struct{})
	for _, ext := range f.Admitted(role) {
		admitted[ext] = struct{}{}
	}

	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := admitted[Extension(path)]; ok {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.FileDiscoveryFailed, "list %s files under %s failed", role, root)
	}
	sort.Strings(out)
	return out, nil
}

// Rel returns path relative to root. It fails with PathOutsideRoot when
// path does not live under root.
func Rel(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", appErr.Wrapf(err, appErr.PathOutsideRoot, "%s is not under %s", path, root)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", appErr.Newf(appErr.PathOutsideRoot, "%s is not under %s", path, root)
	}
	return rel, nil
}

// ReplaceExtension swaps the extension of rel for ext.
func ReplaceExtension(rel, ext string) string {
	return strings.TrimSuffix(rel, Extension(rel)) + ext
}

// WriteFile writes data to path, creating parent directories as needed.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return appErr.Wrapf(err, appErr.FileWriteFailed, "create directory for %s failed", path)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return appErr.Wrapf(err, appErr.FileWriteFailed, "write %s failed", path)
	}
	return nil
}

// Copy copies every file List selects under srcBase into dstRoot, keeping
// paths relative to the source root. It returns the destination paths.
func Copy(srcBase string, f Files, role Role, dstRoot string) ([]string, error) {
	srcRoot := f.Root(srcBase)
	sources, err := List(srcBase, f, role)
	if err != nil {
		return nil, err
	}
	copied := make([]string, 0, len(sources))
	for _, src := range sources {
		rel, err := Rel(srcRoot, src)
		if err != nil {
			return nil, err
		}
		dst := filepath.Join(dstRoot, rel)
		if err := copyFile(src, dst); err != nil {
			return nil, err
		}
		copied = append(copied, dst)
	}
	return copied, nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return appErr.Wrapf(err, appErr.FileReadFailed, "open %s failed", src)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return appErr.Wrapf(err, appErr.FileWriteFailed, "create directory for %s failed", dst)
	}
	out, err := os.Create(dst)
	if err != nil {
		return appErr.Wrapf(err, appErr.FileWriteFailed, "create %s failed", dst)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = appErr.Wrapf(cerr, appErr.FileWriteFailed, "close %s failed", dst)
		}
	}()

	if _, err := io.Copy(out, in); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return appErr.Wrapf(err, appErr.FileReadFailed, "read %s failed", src)
		}
		return appErr.Wrapf(err, appErr.FileWriteFailed, "copy %s to %s failed", src, dst)
	}
	return nil
}

// IsEmptyDir reports whether dir has no entries. A missing dir counts as empty.
func IsEmptyDir(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return true, nil
		}
		return false, appErr.Wrapf(err, appErr.FileReadFailed, "read directory %s failed", dir)
	}
	return len(entries) == 0, nil
}

// ClearDir removes every entry inside dir but keeps dir itself.
func ClearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return appErr.Wrapf(err, appErr.FileReadFailed, "read directory %s failed", dir)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return appErr.Wrapf(err, appErr.FileWriteFailed, "remove %s failed", entry.Name())
		}
	}
	return nil
}

// EnsureDir fails with DirectoryRequired when path exists and is not a directory.
// With create set, a missing directory is created.
func EnsureDir(path string, create bool) error {
	info, err := os.Stat(path)
	switch {
	case err == nil:
		if !info.IsDir() {
			return appErr.Newf(appErr.DirectoryRequired, "%s should be a directory", path)
		}
		return nil
	case errors.Is(err, fs.ErrNotExist) && create:
		if err := os.MkdirAll(path, 0755); err != nil {
			return appErr.Wrapf(err, appErr.FileWriteFailed, "create %s failed", path)
		}
		return nil
	case errors.Is(err, fs.ErrNotExist):
		return appErr.Newf(appErr.DirectoryRequired, "%s does not exist", path)
	default:
		return appErr.Wrapf(err, appErr.FileReadFailed, "stat %s failed", path)
	}
}
