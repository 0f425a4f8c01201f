package config

import (
	"fmt"
	"strings"

	"iobot/internal/program"
	appErr "iobot/pkg/errors"

	"github.com/google/shlex"
	"gopkg.in/yaml.v3"
)

// modeAliases maps every accepted mode spelling to its canonical mode.
var modeAliases = map[string]program.Mode{
	string(program.ModeNativeCompiled):  program.ModeNativeCompiled,
	"g++":                               program.ModeNativeCompiled,
	string(program.ModeInterpreted):     program.ModeInterpreted,
	"python":                            program.ModeInterpreted,
	string(program.ModeCommand):         program.ModeCommand,
	string(program.ModeGenericCompiled): program.ModeGenericCompiled,
	"compiled":                          program.ModeGenericCompiled,
}

// Command is a command line. In YAML it is either a mapping with command
// and args, or a single string split with shell quoting rules.
type Command struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args,omitempty"`
}

// ParseCommand splits a shell style command string.
func ParseCommand(line string) (Command, error) {
	parts, err := shlex.Split(line)
	if err != nil {
		return Command{}, appErr.Wrapf(err, appErr.InvalidFormat, "invalid command %q", line)
	}
	if len(parts) == 0 {
		return Command{}, appErr.Newf(appErr.RequiredFieldEmpty, "command is empty")
	}
	return Command{Command: parts[0], Args: parts[1:]}, nil
}

func (c *Command) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		parsed, err := ParseCommand(node.Value)
		if err != nil {
			return err
		}
		*c = parsed
		return nil
	}
	type plain Command
	var raw plain
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.Command == "" {
		return appErr.ValidationError("command", "is required")
	}
	*c = Command(raw)
	return nil
}

// Program is a program entry: a shorthand path or a full description
// selected by its mode key.
type Program struct {
	program.Source
}

// ShorthandProgram wraps a bare path.
func ShorthandProgram(path string) *Program {
	return &Program{Source: program.FromPath(path)}
}

// SpecProgram wraps a full description.
func SpecProgram(s program.Spec) *Program {
	return &Program{Source: program.FromSpec(s)}
}

type rawProgram struct {
	Mode         string   `yaml:"mode"`
	Path         string   `yaml:"path,omitempty"`
	CompilerArgs []string `yaml:"compilerArgs,omitempty"`
	Compile      *Command `yaml:"compile,omitempty"`
	Extension    string   `yaml:"extension,omitempty"`
	Run          *Command `yaml:"run,omitempty"`
}

func (p *Program) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		if strings.TrimSpace(node.Value) == "" {
			return appErr.ValidationError("program", "path is empty")
		}
		p.Source = program.FromPath(node.Value)
		return nil
	}

	var raw rawProgram
	if err := node.Decode(&raw); err != nil {
		return err
	}
	mode, ok := modeAliases[raw.Mode]
	if !ok {
		return appErr.Newf(appErr.UnknownMode, "unknown program mode %q at line %d", raw.Mode, node.Line)
	}

	var s program.Spec
	switch mode {
	case program.ModeNativeCompiled:
		if raw.Path == "" {
			return appErr.ValidationError("path", fmt.Sprintf("is required for mode %s", mode))
		}
		s = program.NativeCompiled{SourcePath: raw.Path, CompilerArgs: raw.CompilerArgs}
	case program.ModeInterpreted:
		if raw.Path == "" {
			return appErr.ValidationError("path", fmt.Sprintf("is required for mode %s", mode))
		}
		s = program.Interpreted{ScriptPath: raw.Path}
	case program.ModeCommand:
		if raw.Run == nil {
			return appErr.ValidationError("run", fmt.Sprintf("is required for mode %s", mode))
		}
		s = program.RawCommand{Command: raw.Run.Command, Args: raw.Run.Args}
	case program.ModeGenericCompiled:
		if raw.Compile == nil || raw.Run == nil {
			return appErr.ValidationError("compile/run", fmt.Sprintf("are required for mode %s", mode))
		}
		if raw.Extension != "" && !strings.HasPrefix(raw.Extension, ".") {
			return appErr.Newf(appErr.InvalidArtifactExtension, "invalid artifact extension %q: must be empty or start with '.'", raw.Extension)
		}
		s = program.GenericCompiled{
			CompileCommand:    raw.Compile.Command,
			CompileArgs:       raw.Compile.Args,
			ArtifactExtension: raw.Extension,
			RunCommand:        raw.Run.Command,
			RunArgs:           raw.Run.Args,
		}
	}
	p.Source = program.FromSpec(s)
	return nil
}

func (p Program) MarshalYAML() (interface{}, error) {
	if p.IsShorthand() {
		return p.Shorthand, nil
	}
	raw := rawProgram{Mode: string(p.Spec.Mode())}
	switch s := p.Spec.(type) {
	case program.NativeCompiled:
		raw.Path = s.SourcePath
		raw.CompilerArgs = s.CompilerArgs
	case program.Interpreted:
		raw.Path = s.ScriptPath
	case program.RawCommand:
		raw.Run = &Command{Command: s.Command, Args: s.Args}
	case program.GenericCompiled:
		raw.Compile = &Command{Command: s.CompileCommand, Args: s.CompileArgs}
		raw.Extension = s.ArtifactExtension
		raw.Run = &Command{Command: s.RunCommand, Args: s.RunArgs}
	default:
		return nil, appErr.Newf(appErr.UnknownMode, "unsupported program description %T", p.Spec)
	}
	return raw, nil
}
