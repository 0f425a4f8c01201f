// Package config reads and writes the problem description (iobot.yaml) and
// the tool settings file.
package config

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"iobot/internal/files"
	appErr "iobot/pkg/errors"

	"gopkg.in/yaml.v3"
)

// FileName is the problem description file inside a source or generated directory.
const FileName = "iobot.yaml"

// Input source kinds.
const (
	InputFiles     = "files"
	InputGenerator = "generator"
)

// Generator invokes a program once per index to synthesize inputs.
// Count of zero selects the configured default.
type Generator struct {
	Program Program `yaml:"program"`
	Count   int     `yaml:"count,omitempty"`
}

// Input is either pre-existing files or a generator. Exactly one is set.
type Input struct {
	Files     *files.Files
	Generator *Generator
}

func (in *Input) UnmarshalYAML(node *yaml.Node) error {
	var head struct {
		Type string `yaml:"type"`
	}
	if err := node.Decode(&head); err != nil {
		return err
	}
	switch head.Type {
	case InputFiles:
		var f files.Files
		if err := node.Decode(&f); err != nil {
			return err
		}
		if f.Path == "" {
			return appErr.ValidationError("input.path", "is required")
		}
		*in = Input{Files: &f}
	case InputGenerator:
		var g Generator
		if err := node.Decode(&g); err != nil {
			return err
		}
		if g.Program.IsShorthand() && g.Program.Shorthand == "" {
			return appErr.ValidationError("input.program", "is required")
		}
		if g.Count < 0 {
			return appErr.ValidationError("input.count", "must not be negative")
		}
		*in = Input{Generator: &g}
	default:
		return appErr.Newf(appErr.InvalidValue, "unknown input type %q at line %d", head.Type, node.Line)
	}
	return nil
}

func (in Input) MarshalYAML() (interface{}, error) {
	switch {
	case in.Files != nil:
		return struct {
			Type        string `yaml:"type"`
			files.Files `yaml:",inline"`
		}{InputFiles, *in.Files}, nil
	case in.Generator != nil:
		return struct {
			Type      string `yaml:"type"`
			Generator `yaml:",inline"`
		}{InputGenerator, *in.Generator}, nil
	default:
		return nil, appErr.ValidationError("input", "has no source")
	}
}

// Kind is the shape of a problem description.
type Kind int

const (
	// KindModelProgram derives outputs by running a model program.
	KindModelProgram Kind = iota + 1
	// KindOutputFiles pairs inputs with existing output files.
	KindOutputFiles
	// KindJustVerifier has no outputs; a verifier judges answers directly.
	KindJustVerifier
)

func (k Kind) String() string {
	switch k {
	case KindModelProgram:
		return "modelProgram"
	case KindOutputFiles:
		return "outputFiles"
	case KindJustVerifier:
		return "justVerifier"
	default:
		return "unknown"
	}
}

// Config is a problem description. The shape is detected from which keys
// are present: modelProgram, then outputFiles, then verifier alone.
type Config struct {
	Kind         Kind
	Input        Input
	ModelProgram *Program
	OutputFiles  *files.Files
	Verifier     *Program
}

type rawConfig struct {
	Input        *Input       `yaml:"input,omitempty"`
	ModelProgram *Program     `yaml:"modelProgram,omitempty"`
	OutputFiles  *files.Files `yaml:"outputFiles,omitempty"`
	Verifier     *Program     `yaml:"verifier,omitempty"`
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	var raw rawConfig
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.Input == nil {
		return appErr.ValidationError("input", "is required")
	}
	out := Config{
		Input:        *raw.Input,
		ModelProgram: raw.ModelProgram,
		OutputFiles:  raw.OutputFiles,
		Verifier:     raw.Verifier,
	}
	switch {
	case raw.ModelProgram != nil:
		out.Kind = KindModelProgram
		if raw.OutputFiles != nil {
			return appErr.ValidationError("outputFiles", "cannot be combined with modelProgram")
		}
	case raw.OutputFiles != nil:
		out.Kind = KindOutputFiles
		if raw.Input.Files == nil {
			return appErr.ValidationError("input", "must be files when outputFiles is set")
		}
	case raw.Verifier != nil:
		out.Kind = KindJustVerifier
	default:
		return appErr.ValidationError("config", "one of modelProgram, outputFiles or verifier is required")
	}
	*c = out
	return nil
}

func (c Config) MarshalYAML() (interface{}, error) {
	raw := rawConfig{Input: &c.Input, Verifier: c.Verifier}
	switch c.Kind {
	case KindModelProgram:
		raw.ModelProgram = c.ModelProgram
	case KindOutputFiles:
		raw.OutputFiles = c.OutputFiles
	case KindJustVerifier:
		if c.Verifier == nil {
			return nil, appErr.ValidationError("verifier", "is required")
		}
	default:
		return nil, appErr.Newf(appErr.ConfigInvalid, "unknown config kind %d", c.Kind)
	}
	return raw, nil
}

// Generable fails with ConfigAlreadyGenerated when there is nothing left to
// generate: output files are already listed, or a verifier-only problem
// reads its inputs from files.
func (c *Config) Generable() error {
	switch {
	case c.Kind == KindOutputFiles:
		return appErr.Newf(appErr.ConfigAlreadyGenerated, "config already lists output files")
	case c.Kind == KindJustVerifier && c.Input.Files != nil:
		return appErr.Newf(appErr.ConfigAlreadyGenerated, "verifier-only config already reads inputs from files")
	}
	return nil
}

// Parse decodes a problem description.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, appErr.Wrapf(err, appErr.ConfigParseFailed, "parse %s failed", FileName)
	}
	if cfg.Kind == 0 {
		return nil, appErr.Newf(appErr.ConfigInvalid, "%s is empty", FileName)
	}
	return &cfg, nil
}

// Load reads dir/iobot.yaml.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, appErr.Wrapf(err, appErr.ConfigNotFound, "%s not found", path)
		}
		return nil, appErr.Wrapf(err, appErr.FileReadFailed, "read %s failed", path)
	}
	return Parse(data)
}

// Marshal encodes cfg with two space indentation.
func Marshal(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, appErr.Wrapf(err, appErr.ConfigWriteFailed, "encode %s failed", FileName)
	}
	if err := enc.Close(); err != nil {
		return nil, appErr.Wrapf(err, appErr.ConfigWriteFailed, "encode %s failed", FileName)
	}
	return buf.Bytes(), nil
}

// Save writes cfg to dir/iobot.yaml and returns the encoded bytes.
func Save(dir string, cfg *Config) ([]byte, error) {
	data, err := Marshal(cfg)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, appErr.Wrapf(err, appErr.ConfigWriteFailed, "write %s failed", path)
	}
	return data, nil
}
