// Package program defines the declarative description of an executable unit
// and resolves shorthand file paths into a full description.
package program

// Mode identifies the shape of a program description.
type Mode string

const (
	ModeNativeCompiled  Mode = "nativeCompiled"
	ModeInterpreted     Mode = "interpreted"
	ModeCommand         Mode = "command"
	ModeGenericCompiled Mode = "genericCompiled"
)

// TargetPlaceholder is replaced with the absolute path of the compiled artifact.
const TargetPlaceholder = "{target}"

// Spec is a fully resolved program description. Exactly one of the concrete
// types below implements it per value.
type Spec interface {
	Mode() Mode
	isSpec()
}

// NativeCompiled is a source file built with the fixed native toolchain.
type NativeCompiled struct {
	SourcePath   string
	CompilerArgs []string
}

// Interpreted is a script run under the fixed interpreter.
type Interpreted struct {
	ScriptPath string
}

// RawCommand is executed directly without a compile step.
type RawCommand struct {
	Command string
	Args    []string
}

// GenericCompiled is a user specified compile-then-run recipe. Compile and
// run commands may reference the artifact through TargetPlaceholder.
type GenericCompiled struct {
	CompileCommand    string
	CompileArgs       []string
	ArtifactExtension string
	RunCommand        string
	RunArgs           []string
}

func (NativeCompiled) Mode() Mode  { return ModeNativeCompiled }
func (Interpreted) Mode() Mode     { return ModeInterpreted }
func (RawCommand) Mode() Mode      { return ModeCommand }
func (GenericCompiled) Mode() Mode { return ModeGenericCompiled }

func (NativeCompiled) isSpec()  {}
func (Interpreted) isSpec()     {}
func (RawCommand) isSpec()      {}
func (GenericCompiled) isSpec() {}

// Describe returns a short human readable label used in logs.
func Describe(s Spec) string {
	switch p := s.(type) {
	case NativeCompiled:
		return p.SourcePath
	case Interpreted:
		return p.ScriptPath
	case RawCommand:
		return p.Command
	case GenericCompiled:
		return p.CompileCommand
	default:
		return "unknown"
	}
}
