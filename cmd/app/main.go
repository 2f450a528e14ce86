package main

import (
	"context"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "raido",
		Usage: "Typed Markdown corpus tool: schema validation, relation graph, migrations, and search",
		Commands: []*cli.Command{
			validateCommand(),
			listCommand(),
			getCommand(),
			setCommand(),
			refsCommand(),
			graphCommand(),
			healthCommand(),
			nextIDCommand(),
			diffCommand(),
			schemaDiffCommand(),
			migrateCommand(),
			syncCommand(),
			searchCommand(),
			serveCommand(),
			mcpCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		if ec, ok := err.(cli.ExitCoder); ok {
			if msg := err.Error(); msg != "" {
				slog.Error("command failed", slog.String("error", msg))
			}
			os.Exit(ec.ExitCode())
		}
		slog.Error("command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
