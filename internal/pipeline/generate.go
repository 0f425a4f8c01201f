package pipeline

import (
	"context"
	"os"

	"iobot/internal/config"
	"iobot/internal/files"
	appErr "iobot/pkg/errors"
	"iobot/pkg/utils/logger"

	"go.uber.org/zap"
)

// Generate reads srcDir/iobot.yaml, materializes inputs (and outputs when a
// model program is given) into genDir, and writes genDir/iobot.yaml
// describing the generated files. It returns the written config bytes.
//
// genDir is expected to be empty; clearing it is up to the caller.
func (p *Pipeline) Generate(ctx context.Context, srcDir, genDir string) ([]byte, error) {
	if err := files.EnsureDir(srcDir, false); err != nil {
		return nil, err
	}
	if err := files.EnsureDir(genDir, true); err != nil {
		return nil, err
	}
	cfg, err := config.Load(srcDir)
	if err != nil {
		return nil, err
	}
	if err := cfg.Generable(); err != nil {
		return nil, err
	}

	logger.Info(ctx, "generating", zap.String("source", srcDir), zap.String("generated", genDir), zap.Stringer("kind", cfg.Kind))
	inputs, err := p.MaterializeInputs(ctx, cfg.Input, srcDir, genDir)
	if err != nil {
		return nil, err
	}

	var generated *config.Config
	switch cfg.Kind {
	case config.KindModelProgram:
		outputs, err := p.MaterializeOutputs(ctx, cfg.ModelProgram.Source, inputs, genDir, srcDir, genDir)
		if err != nil {
			return nil, err
		}
		generated = &config.Config{
			Kind:        config.KindOutputFiles,
			Input:       config.Input{Files: &inputs},
			OutputFiles: &outputs,
			Verifier:    cfg.Verifier,
		}
	case config.KindJustVerifier:
		generated = &config.Config{
			Kind:     config.KindJustVerifier,
			Input:    config.Input{Files: &inputs},
			Verifier: cfg.Verifier,
		}
	default:
		return nil, appErr.Newf(appErr.ConfigAlreadyGenerated, "nothing to generate for %s config", cfg.Kind)
	}

	return config.Save(genDir, generated)
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.FileReadFailed, "read %s failed", path)
	}
	return data, nil
}
