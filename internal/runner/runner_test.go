package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"sync"
	"testing"

	"iobot/internal/program"
	"iobot/internal/runner/compiler"
	"iobot/internal/runner/engine"
	"iobot/internal/runner/result"
	"iobot/internal/runner/spec"
	appErr "iobot/pkg/errors"
)

type fakeEngine struct {
	mu       sync.Mutex
	res      result.RunResult
	err      error
	runSpecs []spec.RunSpec
}

func (f *fakeEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error) {
	f.mu.Lock()
	f.runSpecs = append(f.runSpecs, runSpec)
	f.mu.Unlock()
	return f.res, f.err
}

func requireSh(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func newLocalBuilder(t *testing.T) *Builder {
	t.Helper()
	eng := engine.NewLocalEngine()
	return NewBuilder(eng, compiler.New(eng, t.TempDir()), Toolchain{})
}

func TestRawCommandIdentity(t *testing.T) {
	requireSh(t)
	b := newLocalBuilder(t)

	r, err := b.Build(context.Background(), program.RawCommand{Command: "cat"}, t.TempDir())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer r.Close()

	out, err := r.Run(context.Background(), []byte("hello"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if string(out) != "hello" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestGenericCompiledEchoesArtifact(t *testing.T) {
	requireSh(t)
	b := newLocalBuilder(t)

	p := program.GenericCompiled{
		CompileCommand:    "sh",
		CompileArgs:       []string{"-c", `touch "$0"`, program.TargetPlaceholder},
		ArtifactExtension: ".bin",
		RunCommand:        "echo",
		RunArgs:           []string{program.TargetPlaceholder},
	}
	r, err := b.Build(context.Background(), p, t.TempDir())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	path := r.ArtifactPath()
	if !strings.HasSuffix(path, ".bin") {
		t.Fatalf("unexpected artifact path: %s", path)
	}

	out, err := r.RunWithoutInput(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.TrimSpace(string(out)) != path {
		t.Fatalf("expected %q, got %q", path, out)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("artifact should exist before close: %v", err)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("artifact should be removed, stat err: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestRunExtraArgsAndExitCode(t *testing.T) {
	requireSh(t)
	b := newLocalBuilder(t)

	r, err := b.Build(context.Background(), program.RawCommand{Command: "sh", Args: []string{"-c", `echo "$1"; exit "$1"`, "sh"}}, t.TempDir())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer r.Close()

	out, err := r.RunWithoutInput(context.Background(), "0")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if string(out) != "0\n" {
		t.Fatalf("unexpected output: %q", out)
	}

	_, err = r.RunWithoutInput(context.Background(), "3")
	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("expected RunError, got %v", err)
	}
	if code, ok := runErr.ExitStatus(); !ok || code != 3 {
		t.Fatalf("unexpected exit status: %d %v", code, ok)
	}
	if !appErr.Is(err, appErr.ProgramExitFailure) {
		t.Fatalf("expected ProgramExitFailure, got %v", err)
	}
}

func TestRunSpawnFailure(t *testing.T) {
	eng := &fakeEngine{res: result.RunResult{ExitCode: -1}, err: errors.New("no such file")}
	b := NewBuilder(eng, compiler.New(eng, t.TempDir()), Toolchain{})

	r, err := b.Build(context.Background(), program.RawCommand{Command: "missing"}, "/work")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer r.Close()

	_, err = r.Run(context.Background(), nil)
	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("expected RunError, got %v", err)
	}
	if _, ok := runErr.ExitStatus(); ok {
		t.Fatalf("spawn failure should have no exit status")
	}
	if !appErr.Is(err, appErr.ProgramSpawnFailed) {
		t.Fatalf("expected ProgramSpawnFailed, got %v", err)
	}
}

func TestRunPassesStdinAndWorkDir(t *testing.T) {
	eng := &fakeEngine{}
	b := NewBuilder(eng, compiler.New(eng, t.TempDir()), Toolchain{})

	r, err := b.Build(context.Background(), program.Interpreted{ScriptPath: "gen.py"}, "/src")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer r.Close()

	if _, err := r.Run(context.Background(), []byte("abc"), "7"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := r.RunWithoutInput(context.Background(), "8"); err != nil {
		t.Fatalf("run without input: %v", err)
	}

	withInput := eng.runSpecs[0]
	if strings.Join(withInput.Cmd, " ") != "python3 gen.py 7" {
		t.Fatalf("unexpected cmd: %v", withInput.Cmd)
	}
	if withInput.WorkDir != "/src" || !withInput.CaptureStdout {
		t.Fatalf("unexpected run spec: %+v", withInput)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(withInput.Stdin); err != nil || buf.String() != "abc" {
		t.Fatalf("unexpected stdin: %q %v", buf.String(), err)
	}
	if eng.runSpecs[1].Stdin != nil {
		t.Fatalf("stdin should not be redirected")
	}
}

func TestNativeCompiledCommandLine(t *testing.T) {
	eng := &fakeEngine{}
	b := NewBuilder(eng, compiler.New(eng, t.TempDir()), Toolchain{NativeCompiler: "clang++"})

	r, err := b.Build(context.Background(), program.NativeCompiled{SourcePath: "model.cpp", CompilerArgs: []string{"-O2"}}, "/src")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer r.Close()

	compile := eng.runSpecs[0].Cmd
	want := []string{"clang++", "-O2", "model.cpp", "-o", r.ArtifactPath()}
	if strings.Join(compile, " ") != strings.Join(want, " ") {
		t.Fatalf("unexpected compile cmd: %v", compile)
	}
	if !strings.HasSuffix(r.ArtifactPath(), ".exe") {
		t.Fatalf("unexpected artifact: %s", r.ArtifactPath())
	}
	if got := r.Command(); len(got) != 1 || got[0] != r.ArtifactPath() {
		t.Fatalf("unexpected run cmd: %v", got)
	}
}

func TestBuildCompileFailure(t *testing.T) {
	eng := &fakeEngine{res: result.RunResult{ExitCode: 1}}
	b := NewBuilder(eng, compiler.New(eng, t.TempDir()), Toolchain{})

	_, err := b.Build(context.Background(), program.NativeCompiled{SourcePath: "bad.cpp"}, "/src")
	if !appErr.Is(err, appErr.CompileUnsuccessful) {
		t.Fatalf("expected CompileUnsuccessful, got %v", err)
	}
}

func TestBuildUnknownSpec(t *testing.T) {
	eng := &fakeEngine{}
	b := NewBuilder(eng, compiler.New(eng, t.TempDir()), Toolchain{})

	_, err := b.Build(context.Background(), nil, "/src")
	if appErr.GetCode(err) != appErr.UnknownMode {
		t.Fatalf("expected UnknownMode, got %v", err)
	}
}

func TestRetainDelaysTeardown(t *testing.T) {
	requireSh(t)
	b := newLocalBuilder(t)

	p := program.GenericCompiled{
		CompileCommand: "sh",
		CompileArgs:    []string{"-c", `touch "$0"`, program.TargetPlaceholder},
		RunCommand:     program.TargetPlaceholder,
	}
	r, err := b.Build(context.Background(), p, t.TempDir())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	path := r.ArtifactPath()

	shared := r.Retain()
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("artifact removed while still retained: %v", err)
	}
	if err := shared.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("artifact should be removed after last release: %v", err)
	}
}

func TestConcurrentRuns(t *testing.T) {
	eng := &fakeEngine{res: result.RunResult{Stdout: []byte("ok")}}
	b := NewBuilder(eng, compiler.New(eng, t.TempDir()), Toolchain{})

	r, err := b.Build(context.Background(), program.RawCommand{Command: "prog"}, "/src")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer r.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.RunWithoutInput(context.Background()); err != nil {
				t.Errorf("run: %v", err)
			}
		}()
	}
	wg.Wait()
	if len(eng.runSpecs) != 16 {
		t.Fatalf("expected 16 runs, got %d", len(eng.runSpecs))
	}
}
