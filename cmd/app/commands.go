package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/starford/raido/internal"
	"github.com/starford/raido/internal/discovery"
	"github.com/starford/raido/internal/docdiff"
	"github.com/starford/raido/internal/document"
	"github.com/starford/raido/internal/graph"
	"github.com/starford/raido/internal/index"
	"github.com/starford/raido/internal/mcpserver"
	"github.com/starford/raido/internal/migrate"
	"github.com/starford/raido/internal/relsync"
	"github.com/starford/raido/internal/schema"
	"github.com/starford/raido/internal/search"
	"github.com/starford/raido/internal/storage"
	"github.com/starford/raido/internal/users"
	"github.com/starford/raido/internal/validate"
	pkgconfig "github.com/starford/raido/pkg/config"
)

func dirFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "dir",
		Aliases: []string{"d"},
		Value:   ".",
		Usage:   "Corpus directory",
	}
}

func schemaFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "schema",
		Aliases: []string{"s"},
		Value:   "schema.kdl",
		Usage:   "Path to the schema file",
		Sources: cli.EnvVars("RAIDO_SCHEMA"),
	}
}

func usersFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "users",
		Usage:   "Path to the user directory file",
		Sources: cli.EnvVars("RAIDO_USERS"),
	}
}

func formatFlag(usage string) cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "text",
		Usage:   usage,
	}
}

func loadSchema(cmd *cli.Command) (*schema.Schema, error) {
	s, err := schema.FromFile(cmd.String("schema"))
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	return s, nil
}

func buildValidator(cmd *cli.Command) (*validate.Validator, error) {
	s, err := loadSchema(cmd)
	if err != nil {
		return nil, err
	}
	v := validate.New(s)
	if path := cmd.String("users"); path != "" {
		dir, err := users.FromFile(path)
		if err != nil {
			return nil, fmt.Errorf("load users: %w", err)
		}
		v.Users = dir
	}
	return v, nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Validate every document in the corpus against the schema",
		ArgsUsage: "[dir]",
		Flags:     []cli.Flag{schemaFlag(), usersFlag(), formatFlag("Output format: text, compact, json")},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			v, err := buildValidator(cmd)
			if err != nil {
				return err
			}
			dir := cmd.Args().First()
			if dir == "" {
				dir = "."
			}
			result, err := v.ValidateDirectory(dir)
			if err != nil {
				return err
			}
			switch cmd.String("format") {
			case "json":
				if err := printJSON(result); err != nil {
					return err
				}
			case "compact":
				fmt.Print(result.ToCompactReport())
			default:
				fmt.Print(result.ToReport())
			}
			if result.HasErrors() {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "List corpus documents with their ID, type, and status",
		ArgsUsage: "[dir]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "Filter by document type"},
			&cli.StringFlag{Name: "status", Usage: "Filter by status"},
			formatFlag("Output format: text, json"),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dir := cmd.Args().First()
			if dir == "" {
				dir = "."
			}
			var filters []discovery.Filter
			if t := cmd.String("type"); t != "" {
				filters = append(filters, discovery.Filter{Kind: discovery.FieldEquals, Field: "type", Value: t})
			}
			if s := cmd.String("status"); s != "" {
				filters = append(filters, discovery.Filter{Kind: discovery.FieldEquals, Field: "status", Value: s})
			}
			paths, err := discovery.DiscoverFiles(dir, discovery.Options{Filters: filters})
			if err != nil {
				return err
			}

			type row struct {
				Path   string `json:"path"`
				ID     string `json:"id"`
				Type   string `json:"type"`
				Status string `json:"status"`
				Title  string `json:"title"`
			}
			var rows []row
			for _, p := range paths {
				r := row{Path: p, ID: validate.PathToID(p)}
				if doc, err := document.FromFile(p); err == nil && doc.FM != nil {
					r.Type, _ = doc.FM.GetDisplay("type")
					r.Status, _ = doc.FM.GetDisplay("status")
					r.Title, _ = doc.FM.GetDisplay("title")
				}
				rows = append(rows, r)
			}

			if cmd.String("format") == "json" {
				return printJSON(rows)
			}
			for _, r := range rows {
				fmt.Printf("%s\t%s\t%s\t%s\t%s\n", r.Path, r.ID, r.Type, r.Status, r.Title)
			}
			return nil
		},
	}
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Print a document, or one frontmatter field of it",
		ArgsUsage: "<path> [field]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return fmt.Errorf("path is required")
			}
			doc, err := document.FromFile(path)
			if err != nil {
				return err
			}
			field := cmd.Args().Get(1)
			if field == "" {
				fmt.Print(doc.Raw)
				return nil
			}
			if doc.FM == nil {
				return fmt.Errorf("%s has no frontmatter", path)
			}
			val, ok := doc.FM.GetDisplay(field)
			if !ok {
				return fmt.Errorf("field %q not set in %s", field, path)
			}
			fmt.Println(val)
			return nil
		},
	}
}

func setCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Set a frontmatter field and rewrite the document",
		ArgsUsage: "<path> <field> <value>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			field := cmd.Args().Get(1)
			value := cmd.Args().Get(2)
			if path == "" || field == "" {
				return fmt.Errorf("path and field are required")
			}
			doc, err := document.FromFile(path)
			if err != nil {
				return err
			}
			doc.SetFieldFromString(field, value)
			return doc.Save()
		},
	}
}

func refsCommand() *cli.Command {
	return &cli.Command{
		Name:      "refs",
		Usage:     "Show the references of a document ID",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			dirFlag(), schemaFlag(),
			&cli.BoolFlag{Name: "reverse", Aliases: []string{"r"}, Usage: "Show incoming references instead of outgoing"},
			&cli.BoolFlag{Name: "transitive", Usage: "Follow references transitively"},
			&cli.IntFlag{Name: "depth", Usage: "Max transitive depth, 0 for unbounded"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id := cmd.Args().First()
			if id == "" {
				return fmt.Errorf("document id is required")
			}
			s, err := loadSchema(cmd)
			if err != nil {
				return err
			}
			g, err := graph.FromDirectory(cmd.String("dir"), s)
			if err != nil {
				return err
			}

			if cmd.Bool("transitive") {
				var refs []graph.TransitiveRef
				if cmd.Bool("reverse") {
					refs = g.TransitiveTo(id, int(cmd.Int("depth")))
				} else {
					refs = g.TransitiveFrom(id, int(cmd.Int("depth")))
				}
				for _, r := range refs {
					fmt.Printf("%s%s -[%s]-> %s\n", strings.Repeat("  ", r.Depth-1), r.Edge.From, r.Edge.Relation, r.Edge.To)
				}
				return nil
			}

			var edges []graph.Edge
			if cmd.Bool("reverse") {
				edges = g.RefsTo(id)
			} else {
				edges = g.RefsFrom(id)
			}
			for _, e := range edges {
				fmt.Printf("%s -[%s]-> %s\n", e.From, e.Relation, e.To)
			}
			return nil
		},
	}
}

func graphCommand() *cli.Command {
	return &cli.Command{
		Name:  "graph",
		Usage: "Render the corpus relation graph",
		Flags: []cli.Flag{
			dirFlag(), schemaFlag(),
			formatFlag("Output format: mermaid, dot, json"),
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "Render only documents of this type"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := loadSchema(cmd)
			if err != nil {
				return err
			}
			g, err := graph.FromDirectory(cmd.String("dir"), s)
			if err != nil {
				return err
			}
			typeFilter := cmd.String("type")
			switch cmd.String("format") {
			case "dot":
				fmt.Print(g.ToDot(typeFilter))
			case "json":
				return printJSON(map[string]any{"nodes": g.Nodes(), "edges": g.Edges()})
			default:
				fmt.Print(g.ToMermaid(typeFilter))
			}
			return nil
		},
	}
}

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check the relation graph for dangling refs, cycles, and orphans",
		Flags: []cli.Flag{dirFlag(), schemaFlag(), formatFlag("Output format: text, json")},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := loadSchema(cmd)
			if err != nil {
				return err
			}
			g, err := graph.FromDirectory(cmd.String("dir"), s)
			if err != nil {
				return err
			}
			diags := g.Health()
			if cmd.String("format") == "json" {
				if err := printJSON(diags); err != nil {
					return err
				}
			} else {
				if len(diags) == 0 {
					fmt.Println("Graph is healthy.")
				}
				for _, d := range diags {
					fmt.Print(d.Display())
				}
			}
			for _, d := range diags {
				if d.Severity == validate.SeverityError {
					return cli.Exit("", 1)
				}
			}
			return nil
		},
	}
}

func nextIDCommand() *cli.Command {
	return &cli.Command{
		Name:      "next-id",
		Usage:     "Print the next free document ID for a prefix",
		ArgsUsage: "<prefix>",
		Flags:     []cli.Flag{dirFlag(), schemaFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			prefix := cmd.Args().First()
			if prefix == "" {
				return fmt.Errorf("prefix is required")
			}
			s, err := loadSchema(cmd)
			if err != nil {
				return err
			}
			g, err := graph.FromDirectory(cmd.String("dir"), s)
			if err != nil {
				return err
			}
			fmt.Println(g.NextID(prefix))
			return nil
		},
	}
}

func diffCommand() *cli.Command {
	return &cli.Command{
		Name:      "diff",
		Usage:     "Diff two revisions of a document (fields and sections)",
		ArgsUsage: "<old.md> <new.md>",
		Flags:     []cli.Flag{formatFlag("Output format: text, json")},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			oldPath := cmd.Args().First()
			newPath := cmd.Args().Get(1)
			if oldPath == "" || newPath == "" {
				return fmt.Errorf("two document paths are required")
			}
			oldDoc, err := document.FromFile(oldPath)
			if err != nil {
				return err
			}
			newDoc, err := document.FromFile(newPath)
			if err != nil {
				return err
			}
			d := docdiff.Compare(oldDoc, newDoc)
			if cmd.String("format") == "json" {
				return printJSON(d)
			}
			fmt.Print(d.Format())
			return nil
		},
	}
}

func schemaDiffCommand() *cli.Command {
	return &cli.Command{
		Name:      "schema-diff",
		Usage:     "Diff two schema revisions",
		ArgsUsage: "<old.kdl> <new.kdl>",
		Flags:     []cli.Flag{formatFlag("Output format: text, json")},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			oldS, newS, err := loadSchemaPair(cmd)
			if err != nil {
				return err
			}
			d := migrate.DiffSchemas(oldS, newS)
			if cmd.String("format") == "json" {
				return printJSON(d)
			}
			fmt.Print(d.Format())
			return nil
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:      "migrate",
		Usage:     "Plan (and optionally apply) document updates for a schema change",
		ArgsUsage: "<old.kdl> <new.kdl>",
		Flags: []cli.Flag{
			dirFlag(),
			&cli.BoolFlag{Name: "apply", Usage: "Write the planned changes to disk"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			oldS, newS, err := loadSchemaPair(cmd)
			if err != nil {
				return err
			}
			diff := migrate.DiffSchemas(oldS, newS)
			plan, err := migrate.BuildPlan(diff, newS, cmd.String("dir"))
			if err != nil {
				return err
			}
			fmt.Print(plan.Format())
			if !cmd.Bool("apply") || plan.IsEmpty() {
				return nil
			}
			res, err := migrate.Apply(plan)
			if err != nil {
				return err
			}
			for _, w := range res.Warnings {
				fmt.Printf("warning: %s\n", w)
			}
			fmt.Printf("modified %d file(s)\n", len(res.Modified))
			return nil
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Plan (and optionally apply) missing inverse relation fields",
		Flags: []cli.Flag{
			dirFlag(), schemaFlag(),
			&cli.BoolFlag{Name: "apply", Usage: "Write the planned changes to disk"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := loadSchema(cmd)
			if err != nil {
				return err
			}
			g, err := graph.FromDirectory(cmd.String("dir"), s)
			if err != nil {
				return err
			}
			plan, err := relsync.BuildPlan(g)
			if err != nil {
				return err
			}
			fmt.Print(plan.Format())
			for _, w := range plan.Warnings {
				fmt.Printf("warning: %s\n", w)
			}
			if !cmd.Bool("apply") || plan.IsEmpty() {
				return nil
			}
			modified, err := relsync.Apply(plan)
			if err != nil {
				return err
			}
			fmt.Printf("modified %d file(s)\n", len(modified))
			return nil
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search frontmatter fields and body text",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			dirFlag(),
			&cli.StringFlag{Name: "section", Usage: "Restrict to one section"},
			&cli.StringFlag{Name: "field", Usage: "Restrict to one frontmatter field"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Max result documents, 0 for no cap"},
			&cli.BoolFlag{Name: "case-sensitive", Usage: "Match case exactly"},
			formatFlag("Output format: text, json"),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			query := cmd.Args().First()
			if query == "" {
				return fmt.Errorf("query is required")
			}
			opts := search.Options{
				CaseSensitive: cmd.Bool("case-sensitive"),
				Section:       cmd.String("section"),
				Field:         cmd.String("field"),
				MaxResults:    int(cmd.Int("limit")),
			}
			results, err := search.Directory(cmd.String("dir"), query, opts)
			if err != nil {
				return err
			}
			if cmd.String("format") == "json" {
				return printJSON(results)
			}
			for _, r := range results {
				fmt.Printf("%s (%s)\n", r.Path, r.Title)
				for _, m := range r.Matches {
					switch {
					case m.Field != "":
						fmt.Printf("  %s: %s\n", m.Field, m.Context)
					case m.Section != "":
						fmt.Printf("  [%s] line %d: %s\n", m.Section, m.Line, m.Context)
					default:
						fmt.Printf("  line %d: %s\n", m.Line, m.Context)
					}
				}
			}
			return nil
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP server with the watcher-backed validation cache",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config/config.yaml",
				Usage:   "Path to config file",
				Sources: cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := internal.NewDefaultConfig()
			if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
				return fmt.Errorf("failed to parse config: %w", err)
			}
			if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
				return fmt.Errorf("app run error: %w", err)
			}
			return nil
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Run the MCP server on stdio",
		Flags: []cli.Flag{
			dirFlag(), schemaFlag(), usersFlag(),
			&cli.StringFlag{Name: "db", Value: "raido.db", Usage: "Path to the SQLite validation cache"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			v, err := buildValidator(cmd)
			if err != nil {
				return err
			}
			store, err := storage.NewFS(cmd.String("dir"))
			if err != nil {
				return err
			}
			db, err := index.Open(cmd.String("db"))
			if err != nil {
				return err
			}
			defer db.Close()

			logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
			if err := index.Sync(db, store, v, logger); err != nil {
				logger.Warn("initial sync failed", slog.String("error", err.Error()))
			}

			return mcpserver.New(store, db, v.Schema, v).ServeStdio()
		},
	}
}

func loadSchemaPair(cmd *cli.Command) (*schema.Schema, *schema.Schema, error) {
	oldPath := cmd.Args().First()
	newPath := cmd.Args().Get(1)
	if oldPath == "" || newPath == "" {
		return nil, nil, fmt.Errorf("two schema paths are required")
	}
	oldS, err := schema.FromFile(oldPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", oldPath, err)
	}
	newS, err := schema.FromFile(newPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", newPath, err)
	}
	return oldS, newS, nil
}
