// Command dsstub inspects datastore snapshot files.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/andreyvit/dsstub"
	"github.com/andreyvit/dsstub/recfile"
)

func main() {
	app := &cli.App{
		Name:  "dsstub",
		Usage: "inspect datastore snapshot files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "app",
				Usage:    "application id",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "entities",
				Usage: "entity snapshot file",
				Value: recfile.DevNull,
			},
			&cli.StringFlag{
				Name:  "history",
				Usage: "query history file",
				Value: recfile.DevNull,
			},
			&cli.StringFlag{
				Name:  "backend",
				Usage: "snapshot backend, file or bolt",
				Value: "file",
			},
			&cli.BoolFlag{
				Name:  "compress",
				Usage: "snapshot files are zstd-compressed",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "log engine activity to stderr",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "dump",
				Usage: "print every stored entity",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "stats",
						Usage: "include per-kind statistics",
					},
				},
				Action: dumpAction,
			},
			{
				Name:   "stats",
				Usage:  "print per-kind entity counts and sizes",
				Action: statsAction,
			},
			{
				Name:   "schema",
				Usage:  "print the observed property types of every kind",
				Action: schemaAction,
			},
			{
				Name:   "history",
				Usage:  "print recorded queries, most frequent first",
				Action: historyAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "** dsstub: %v\n", err)
		os.Exit(1)
	}
}

func openEngine(c *cli.Context) (*dsstub.Engine, error) {
	backend, err := recfile.ParseBackend(c.String("backend"))
	if err != nil {
		return nil, err
	}
	var logger *slog.Logger
	if c.Bool("verbose") {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
	return dsstub.Open(dsstub.Options{
		AppID:       c.String("app"),
		EntityFile:  c.String("entities"),
		HistoryFile: c.String("history"),
		Backend:     backend,
		Compress:    c.Bool("compress"),
		Logger:      logger,
		Verbose:     c.Bool("verbose"),
	})
}

func dumpAction(c *cli.Context) error {
	eng, err := openEngine(c)
	if err != nil {
		return err
	}
	defer eng.Close()

	flags := dsstub.DumpKindHeaders | dsstub.DumpEntities
	if c.Bool("stats") {
		flags |= dsstub.DumpStats
	}
	fmt.Fprint(c.App.Writer, eng.Dump(flags))
	return nil
}

func statsAction(c *cli.Context) error {
	eng, err := openEngine(c)
	if err != nil {
		return err
	}
	defer eng.Close()

	st := eng.Stats()
	for _, ks := range st.Kinds {
		fmt.Fprintf(c.App.Writer, "%s.%s: entities = %d, data_size = %d\n", ks.App, ks.Kind, ks.Entities, ks.DataSize)
	}
	fmt.Fprintf(c.App.Writer, "total: entities = %d, data_size = %d, queries = %d\n", st.Entities, st.DataSize, st.Queries)
	return nil
}

func schemaAction(c *cli.Context) error {
	eng, err := openEngine(c)
	if err != nil {
		return err
	}
	defer eng.Close()

	for _, ks := range eng.GetSchema("") {
		fmt.Fprintln(c.App.Writer, ks.Kind)
		for _, ps := range ks.Properties {
			fmt.Fprintf(c.App.Writer, "  %s:", ps.Name)
			for _, v := range ps.Values {
				fmt.Fprintf(c.App.Writer, " %v", v.Type)
			}
			fmt.Fprintln(c.App.Writer)
		}
	}
	return nil
}

func historyAction(c *cli.Context) error {
	eng, err := openEngine(c)
	if err != nil {
		return err
	}
	defer eng.Close()

	for _, he := range eng.QueryHistory() {
		fmt.Fprintf(c.App.Writer, "%6d  %s\n", he.Count, he.Query.String())
	}
	return nil
}
