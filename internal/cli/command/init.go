package command

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"iobot/internal/cli/prompt"
	"iobot/internal/config"
	"iobot/internal/files"
	"iobot/internal/program"
	appErr "iobot/pkg/errors"
)

const defaultWizardCount = 100

func runInit(ctx context.Context, env *Env, args []string) error {
	flags := newFlagSet("init", "[-force]", env)
	force := flags.Bool("force", false, "overwrite an existing iobot.yaml without asking")
	if _, err := parseFlags(flags, args, 0); err != nil {
		return err
	}

	path := filepath.Join(env.WorkDir, config.FileName)
	p, err := env.prompter()
	if err != nil {
		return err
	}
	defer p.Close()

	if _, err := os.Stat(path); err == nil && !*force {
		ok, err := p.Confirm(config.FileName+" already exists. Overwrite it?", false)
		if err != nil {
			return err
		}
		if !ok {
			env.printf("Aborted\n")
			return nil
		}
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return appErr.Wrapf(err, appErr.FileReadFailed, "stat %s failed", path)
	}

	count := defaultWizardCount
	if env.Settings != nil && env.Settings.Generator.Count > 0 {
		count = env.Settings.Generator.Count
	}
	cfg, err := Wizard(p, count)
	if err != nil {
		return err
	}
	data, err := config.Save(env.WorkDir, cfg)
	if err != nil {
		return err
	}
	env.printf("Wrote %s\n%s", path, data)
	return nil
}

// Output choices offered by the wizard.
const (
	outputModel    = "model program"
	outputFiles    = "output files"
	outputVerifier = "none, verifier only"
)

// Wizard asks for every part of a problem description.
func Wizard(p *prompt.Prompter, defaultCount int) (*config.Config, error) {
	cfg := &config.Config{}

	inputKind, err := p.Choose("Where do test inputs come from?", []string{config.InputFiles, config.InputGenerator})
	if err != nil {
		return nil, err
	}
	if inputKind == 0 {
		f, err := askFiles(p, "Input", files.Input)
		if err != nil {
			return nil, err
		}
		cfg.Input.Files = f
	} else {
		prog, err := askProgram(p, "Generator program (.cpp/.py file or a command)")
		if err != nil {
			return nil, err
		}
		count, err := p.AskInt("Number of tests", defaultCount)
		if err != nil {
			return nil, err
		}
		g := &config.Generator{Program: *prog}
		if count != defaultCount {
			g.Count = count
		}
		cfg.Input.Generator = g
	}

	options := []string{outputModel, outputFiles, outputVerifier}
	if cfg.Input.Files == nil {
		// Existing outputs can only pair with existing inputs.
		options = []string{outputModel, outputVerifier}
	}
	choice, err := p.Choose("How are expected outputs produced?", options)
	if err != nil {
		return nil, err
	}
	switch options[choice] {
	case outputModel:
		prog, err := askProgram(p, "Model program (.cpp/.py file or a command)")
		if err != nil {
			return nil, err
		}
		cfg.Kind = config.KindModelProgram
		cfg.ModelProgram = prog
	case outputFiles:
		f, err := askFiles(p, "Output", files.Output)
		if err != nil {
			return nil, err
		}
		cfg.Kind = config.KindOutputFiles
		cfg.OutputFiles = f
	case outputVerifier:
		cfg.Kind = config.KindJustVerifier
	}

	if cfg.Kind == config.KindJustVerifier {
		cfg.Verifier, err = askProgram(p, "Verifier program (.cpp/.py file or a command)")
		if err != nil {
			return nil, err
		}
		return cfg, nil
	}
	answer, err := p.Ask("Verifier program (empty for none)", "")
	if err != nil {
		return nil, err
	}
	if answer != "" {
		cfg.Verifier, err = programFromAnswer(answer)
		if err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func askFiles(p *prompt.Prompter, label string, role files.Role) (*files.Files, error) {
	def := "in"
	if role == files.Output {
		def = "out"
	}
	dir, err := p.Ask(label+" directory", def)
	if err != nil {
		return nil, err
	}
	exts, err := p.Ask(label+" extensions, comma separated (empty for "+role.DefaultExtension()+")", "")
	if err != nil {
		return nil, err
	}
	f := &files.Files{Path: dir}
	if list := prompt.List(exts); len(list) > 0 {
		f.Extensions = list
	}
	return f, nil
}

func askProgram(p *prompt.Prompter, label string) (*config.Program, error) {
	for {
		answer, err := p.AskRequired(label)
		if err != nil {
			return nil, err
		}
		prog, err := programFromAnswer(answer)
		if err == nil {
			return prog, nil
		}
		p.Printf("could not read %q: %v\n", answer, err)
	}
}

// programFromAnswer keeps a path with a known extension as shorthand and
// reads anything else as a command line.
func programFromAnswer(answer string) (*config.Program, error) {
	if _, err := program.ResolveShorthand(answer); err == nil {
		return config.ShorthandProgram(answer), nil
	}
	cmd, err := config.ParseCommand(answer)
	if err != nil {
		return nil, err
	}
	return config.SpecProgram(program.RawCommand{Command: cmd.Command, Args: cmd.Args}), nil
}
