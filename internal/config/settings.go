package config

import (
	"errors"
	"io/fs"
	"os"

	"iobot/internal/batch"
	"iobot/internal/runner"
	"iobot/internal/runner/compiler"
	"iobot/internal/storage"
	appErr "iobot/pkg/errors"
	"iobot/pkg/utils/logger"

	"github.com/drone/envsubst"
	"gopkg.in/yaml.v3"
)

const (
	defaultGeneratorCount = 100
	defaultLogLevel       = "info"
	defaultLogFormat      = "console"
)

// WorkerConfig holds batch pool settings.
type WorkerConfig struct {
	// PoolSize of zero selects batch.DefaultWorkers.
	PoolSize int `yaml:"poolSize"`
}

// GeneratorConfig holds generator input defaults.
type GeneratorConfig struct {
	Count int `yaml:"count"`
}

// Settings holds tool settings. All fields are optional.
type Settings struct {
	Logger    logger.Config    `yaml:"logger"`
	Worker    WorkerConfig     `yaml:"worker"`
	BuildDir  string           `yaml:"buildDir"`
	Toolchain runner.Toolchain `yaml:"toolchain"`
	Generator GeneratorConfig  `yaml:"generator"`
	Storage   storage.Config   `yaml:"storage"`
}

// DefaultSettings returns the settings used when no file is given.
func DefaultSettings() *Settings {
	s := &Settings{}
	applySettingsDefaults(s)
	return s
}

// ParseSettings expands ${VAR} references from the environment and decodes
// the result.
func ParseSettings(data []byte) (*Settings, error) {
	expanded, err := envsubst.EvalEnv(string(data))
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.ConfigParseFailed, "expand settings failed")
	}
	var s Settings
	if err := yaml.Unmarshal([]byte(expanded), &s); err != nil {
		return nil, appErr.Wrapf(err, appErr.ConfigParseFailed, "parse settings failed")
	}
	if s.Worker.PoolSize < 0 {
		return nil, appErr.ValidationError("worker.poolSize", "must not be negative")
	}
	if s.Generator.Count < 0 {
		return nil, appErr.ValidationError("generator.count", "must not be negative")
	}
	applySettingsDefaults(&s)
	return &s, nil
}

// LoadSettings reads the settings file at path. An empty path returns the defaults.
func LoadSettings(path string) (*Settings, error) {
	if path == "" {
		return DefaultSettings(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, appErr.Wrapf(err, appErr.ConfigNotFound, "settings file %s not found", path)
		}
		return nil, appErr.Wrapf(err, appErr.FileReadFailed, "read settings file %s failed", path)
	}
	return ParseSettings(data)
}

func applySettingsDefaults(s *Settings) {
	if s.Logger.Level == "" {
		s.Logger.Level = defaultLogLevel
	}
	if s.Logger.Format == "" {
		s.Logger.Format = defaultLogFormat
	}
	if s.Logger.OutputPath == "" {
		s.Logger.OutputPath = "stderr"
	}
	if s.Worker.PoolSize == 0 {
		s.Worker.PoolSize = batch.DefaultWorkers()
	}
	if s.BuildDir == "" {
		s.BuildDir = compiler.DefaultBuildDir()
	}
	def := runner.DefaultToolchain()
	if s.Toolchain.NativeCompiler == "" {
		s.Toolchain.NativeCompiler = def.NativeCompiler
	}
	if s.Toolchain.NativeArtifactExtension == "" {
		s.Toolchain.NativeArtifactExtension = def.NativeArtifactExtension
	}
	if s.Toolchain.Interpreter == "" {
		s.Toolchain.Interpreter = def.Interpreter
	}
	if s.Generator.Count == 0 {
		s.Generator.Count = defaultGeneratorCount
	}
	storage.ApplyDefaults(&s.Storage)
}
