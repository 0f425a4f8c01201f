// Package command implements the iobot subcommands.
package command

import "sort"

// Registry returns all subcommands keyed by name.
func Registry() map[string]Command {
	commands := []Command{
		{
			Name:    "init",
			Usage:   "[-force]",
			Summary: "create iobot.yaml in the current directory interactively",
			Run:     runInit,
		},
		{
			Name:    "generate",
			Usage:   "[-yes] <source> <generated>",
			Summary: "materialize inputs and outputs from source/iobot.yaml into generated",
			Run:     runGenerate,
		},
		{
			Name:    "pack",
			Usage:   "[-o file] <generated>",
			Summary: "bundle a generated directory into a data pack",
			Run:     runPack,
		},
		{
			Name:    "publish",
			Usage:   "[-key name] <pack>",
			Summary: "upload a data pack to the configured object storage",
			Run:     runPublish,
		},
	}
	out := make(map[string]Command, len(commands))
	for _, cmd := range commands {
		out[cmd.Name] = cmd
	}
	return out
}

// Names returns the registered command names in order.
func Names(commands map[string]Command) []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
