package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func libraryCommand() *cli.Command {
	return &cli.Command{
		Name:  "library",
		Usage: "Manage the document library",
		Commands: []*cli.Command{
			{
				Name:  "scan",
				Usage: "Import every supported document below the library folder",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dir",
						Usage: "Folder to scan, the configured library folder when empty",
					},
				},
				Action: scanLibrary,
			},
			{
				Name:   "list",
				Usage:  "List known documents, most recently read first",
				Action: listLibrary,
			},
		},
	}
}

func scanLibrary(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	dir := cmd.String("dir")
	if dir == "" {
		dir = cfg.Library.Dir
	}
	if dir == "" {
		return fmt.Errorf("no library folder configured")
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.importer.Scan(ctx, dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "imported %d, failed %d\n", result.Imported, result.Failed)
	return nil
}

func listLibrary(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	for _, rec := range a.session.RecentDocuments.Get() {
		fmt.Fprintf(os.Stdout, "%5.1f%%  %-40s %s\n", rec.Progress*100, rec.Title, rec.Path)
	}
	return nil
}
