package files

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	appErr "iobot/pkg/errors"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
}

func TestListDefaultExtensionSorted(t *testing.T) {
	base := t.TempDir()
	writeTree(t, base, map[string]string{
		"in/c.in":     "c",
		"in/a.in":     "a",
		"in/sub/b.in": "b",
		"in/notes.md": "skip",
		"in/x.out":    "skip",
	})

	got, err := List(base, Files{Path: "in"}, Input)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	root := filepath.Join(base, "in")
	want := []string{
		filepath.Join(root, "a.in"),
		filepath.Join(root, "c.in"),
		filepath.Join(root, "sub", "b.in"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected files:\n got %v\nwant %v", got, want)
	}
}

func TestListExplicitExtensions(t *testing.T) {
	base := t.TempDir()
	writeTree(t, base, map[string]string{
		"data/1.txt": "1",
		"data/2":     "2",
		"data/3.out": "3",
		"data/.dot":  "hidden",
		"data/4.TXT": "case",
	})

	got, err := List(base, Files{Path: "data", Extensions: []string{".txt", ""}}, Output)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	root := filepath.Join(base, "data")
	want := []string{
		filepath.Join(root, ".dot"),
		filepath.Join(root, "1.txt"),
		filepath.Join(root, "2"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected files:\n got %v\nwant %v", got, want)
	}
}

func TestListMissingRoot(t *testing.T) {
	_, err := List(t.TempDir(), Files{Path: "nope"}, Input)
	if !appErr.Is(err, appErr.FileDiscoveryFailed) {
		t.Fatalf("expected FileDiscoveryFailed, got %v", err)
	}
}

func TestRel(t *testing.T) {
	root := filepath.Join("/data", "in")
	rel, err := Rel(root, filepath.Join(root, "sub", "b.in"))
	if err != nil {
		t.Fatalf("rel: %v", err)
	}
	if rel != filepath.Join("sub", "b.in") {
		t.Fatalf("unexpected rel: %s", rel)
	}

	if _, err := Rel(root, filepath.Join("/data", "other", "x.in")); !appErr.Is(err, appErr.PathOutsideRoot) {
		t.Fatalf("expected PathOutsideRoot, got %v", err)
	}
}

func TestReplaceExtension(t *testing.T) {
	cases := map[string]string{
		"a.in":                       "a.out",
		filepath.Join("sub", "b.in"): filepath.Join("sub", "b.out"),
		"noext":                      "noext.out",
		"two.dots.in":                "two.dots.out",
	}
	for in, want := range cases {
		if got := ReplaceExtension(in, ".out"); got != want {
			t.Errorf("ReplaceExtension(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCopyPreservesRelativePaths(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "in")
	writeTree(t, src, map[string]string{
		"tests/a.in":       "alpha",
		"tests/deep/b.in":  "beta",
		"tests/ignore.txt": "x",
	})

	copied, err := Copy(src, Files{Path: "tests"}, Input, dst)
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if len(copied) != 2 {
		t.Fatalf("expected 2 copied files, got %v", copied)
	}
	for rel, want := range map[string]string{"a.in": "alpha", filepath.Join("deep", "b.in"): "beta"} {
		data, err := os.ReadFile(filepath.Join(dst, rel))
		if err != nil {
			t.Fatalf("read %s: %v", rel, err)
		}
		if string(data) != want {
			t.Fatalf("%s: got %q want %q", rel, data, want)
		}
	}
	if _, err := os.Stat(filepath.Join(dst, "ignore.txt")); !os.IsNotExist(err) {
		t.Fatalf("unexpected copy of filtered file: %v", err)
	}
}

func TestDirHelpers(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "gen")

	empty, err := IsEmptyDir(dir)
	if err != nil || !empty {
		t.Fatalf("missing dir should be empty: %v %v", empty, err)
	}
	if err := EnsureDir(dir, false); !appErr.Is(err, appErr.DirectoryRequired) {
		t.Fatalf("expected DirectoryRequired, got %v", err)
	}
	if err := EnsureDir(dir, true); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	writeTree(t, dir, map[string]string{"in/0.in": "0", "iobot.yaml": "x"})

	empty, err = IsEmptyDir(dir)
	if err != nil || empty {
		t.Fatalf("dir should not be empty: %v %v", empty, err)
	}
	if err := ClearDir(dir); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if empty, _ := IsEmptyDir(dir); !empty {
		t.Fatalf("dir should be empty after clear")
	}

	file := filepath.Join(dir, "f")
	writeTree(t, dir, map[string]string{"f": "x"})
	if err := EnsureDir(file, true); !appErr.Is(err, appErr.DirectoryRequired) {
		t.Fatalf("expected DirectoryRequired for file, got %v", err)
	}
}
