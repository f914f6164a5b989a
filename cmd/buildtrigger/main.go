package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/buildtrigger/cmd/buildtrigger/commands"
	ferrors "git.home.luguber.info/inful/buildtrigger/internal/foundation/errors"
	"git.home.luguber.info/inful/buildtrigger/internal/version"
)

func main() {
	cli := &commands.CLI{}
	g := &commands.Global{Logger: slog.Default()}
	parser := kong.Parse(cli,
		kong.Name("buildtrigger"),
		kong.Description("Fetch, build and package a project on request."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(g),
	)

	err := parser.Run(cli)
	if err != nil {
		adapter := ferrors.NewCLIErrorAdapter(cli.Verbose, slog.Default())
		adapter.Log(err)
		fmt.Fprintln(os.Stderr, adapter.FormatError(err))
		os.Exit(adapter.ExitCodeFor(err))
	}
}
