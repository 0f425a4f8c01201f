package program

import (
	"path/filepath"
	"strings"

	appErr "iobot/pkg/errors"
)

// shorthands maps a shorthand file extension to the program it stands for.
// Add a line here to support a new extension.
var shorthands = map[string]func(path string) Spec{
	".cpp": func(path string) Spec { return NativeCompiled{SourcePath: path} },
	".py":  func(path string) Spec { return Interpreted{ScriptPath: path} },
}

// Source is either a full Spec or a shorthand path to be resolved by extension.
type Source struct {
	Shorthand string
	Spec      Spec
}

// FromPath returns a shorthand Source.
func FromPath(path string) Source {
	return Source{Shorthand: path}
}

// FromSpec returns a Source holding a full Spec.
func FromSpec(spec Spec) Source {
	return Source{Spec: spec}
}

// IsShorthand reports whether the source still needs extension based resolution.
func (s Source) IsShorthand() bool {
	return s.Spec == nil
}

// Resolve returns the full Spec. It never touches the filesystem.
func (s Source) Resolve() (Spec, error) {
	if s.Spec != nil {
		return s.Spec, nil
	}
	return ResolveShorthand(s.Shorthand)
}

// ResolveShorthand infers a Spec from the path extension. Matching is case
// sensitive.
func ResolveShorthand(path string) (Spec, error) {
	ext := Extension(path)
	build, ok := shorthands[ext]
	if !ok {
		return nil, appErr.Newf(appErr.UnknownExtension, "cannot infer program from %q: unknown extension %q", path, ext).
			WithDetail("path", path)
	}
	return build(path), nil
}

// Extension returns the extension of the final path element including the
// leading dot, or "" when there is none. A leading dot on its own (".py")
// names a hidden file, not an extension.
func Extension(path string) string {
	base := filepath.Base(path)
	idx := strings.LastIndexByte(base, '.')
	if idx <= 0 {
		return ""
	}
	return base[idx:]
}
