package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ersonp/spellstock-core/internal/application/handlers"
)

type ingestFlags struct {
	format    string
	pattern   string
	recursive bool
	asJSON    bool
}

func newIngestCmd() *cobra.Command {
	var flags ingestFlags

	cmd := &cobra.Command{
		Use:   "ingest <file|dir|->",
		Short: "Run a prediction feed through the pipeline",
		Long: `Reads classifier predictions, classifies them, admits alerts and proposes actions.
A directory ingests every file matching --pattern. "-" reads the feed from stdin (set --format).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVar(&flags.format, "format", "jsonl", "Feed format for stdin: json, jsonl or csv")
	cmd.Flags().StringVarP(&flags.pattern, "pattern", "p", DefaultFeedPattern, "File pattern in directory mode")
	cmd.Flags().BoolVarP(&flags.recursive, "recursive", "R", false, "Descend into subdirectories")
	cmd.Flags().BoolVar(&flags.asJSON, "json", false, "Print the summary as JSON")

	return cmd
}

func runIngest(cmd *cobra.Command, path string, flags ingestFlags) error {
	ctx := cmd.Context()

	return withDeps(ctx, func(d *Deps) error {
		switch {
		case path == "-":
			summary, err := d.IngestHandler.HandleReader(ctx, os.Stdin, flags.format)
			if err != nil {
				return err
			}
			if flags.asJSON {
				return printJSON(summary)
			}
			displaySummary(summary)

		case handlers.IsDirectory(path):
			result, err := d.IngestHandler.HandleDirectory(ctx, path, flags.pattern, flags.recursive, func(file string) {
				fmt.Printf("Ingesting %s...\n", file)
			})
			if err != nil {
				return err
			}
			if flags.asJSON {
				return printJSON(result.FileResults)
			}
			fmt.Printf("Ingested %d files: %d alerts, %d actions proposed\n", result.TotalFiles, result.TotalAlerts, result.TotalActions)
			for _, e := range result.Errors {
				fmt.Printf("  error: %s\n", e)
			}

		default:
			result, err := d.IngestHandler.Handle(ctx, path, "")
			if err != nil {
				return err
			}
			if flags.asJSON {
				return printJSON(result)
			}
			fmt.Printf("Ingested %s\n", result.FilePath)
			displaySummary(result.Summary)
		}
		return nil
	})
}
