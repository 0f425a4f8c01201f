package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"iobot/internal/cli/command"
	appErr "iobot/pkg/errors"
	"iobot/pkg/utils/logger"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	commands := command.Registry()

	flags := flag.NewFlagSet("iobot", flag.ContinueOnError)
	configPath := flags.String("config", os.Getenv(configEnv), "Path to settings file (env "+configEnv+")")
	logLevel := flags.String("log-level", "", "Override log level (debug, info, warn, error)")
	logFormat := flags.String("log-format", "", "Override log format (console, json)")
	flags.Usage = func() { usage(flags, commands) }
	if err := flags.Parse(args); err != nil {
		return appErr.InvalidParams.ExitStatus()
	}
	if flags.NArg() == 0 {
		usage(flags, commands)
		return appErr.InvalidParams.ExitStatus()
	}

	settings, err := loadSettings(*configPath, *logLevel, *logFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load settings failed: %v\n", err)
		return appErr.GetCode(err).ExitStatus()
	}
	if err := logger.Init(settings.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return 1
	}
	defer logger.Sync()

	name := flags.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", name)
		usage(flags, commands)
		return appErr.InvalidParams.ExitStatus()
	}

	env, err := command.NewEnv(settings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return appErr.GetCode(err).ExitStatus()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cmd.Run(ctx, env, flags.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return appErr.GetCode(err).ExitStatus()
	}
	return 0
}

func usage(flags *flag.FlagSet, commands map[string]command.Command) {
	out := flags.Output()
	fmt.Fprintf(out, "usage: iobot [flags] <command> [args]\n\ncommands:\n")
	for _, name := range command.Names(commands) {
		cmd := commands[name]
		fmt.Fprintf(out, "  %-9s %s\n            %s\n", cmd.Name, cmd.Usage, cmd.Summary)
	}
	fmt.Fprintf(out, "\nflags:\n")
	flags.PrintDefaults()
}
