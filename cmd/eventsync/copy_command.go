package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"eventsync/internal/archive"
	"eventsync/internal/bids"
	"eventsync/internal/dataset"
	"eventsync/internal/reconcile"
)

func newCopyCommand(ctx *commandContext) *cobra.Command {
	var pattern string
	var noSave bool

	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Copy events files straight out of the session archives",
		Long: `For datasets without a multi-run design: replace each events file with
the single archive member of its subject/session matching the pattern.
Zero or several matching members fail that events file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.datasetConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if pattern == "" {
				pattern = cfg.Archive.EventsPattern
			}

			lock, err := reconcile.AcquireLock(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = lock.Release() }()

			manager, err := dataset.New(cfg, logger)
			if err != nil {
				return err
			}
			files, err := bids.NewFSLayout(cfg.Paths.DatasetDir).EventFiles()
			if err != nil {
				return err
			}
			copier, err := archive.NewCopier(cfg.Paths.DatasetDir, pattern, manager, logger)
			if err != nil {
				return err
			}
			results, copyErr := copier.CopyEvents(cmd.Context(), files)

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(results))
			for _, res := range results {
				rel, relErr := filepath.Rel(cfg.Paths.DatasetDir, res.Events)
				if relErr != nil {
					rel = res.Events
				}
				rows = append(rows, []string{rel, filepath.Base(res.Archive), res.Member})
			}
			if len(rows) > 0 {
				fmt.Fprintln(out, renderTable([]string{"Events file", "Archive", "Member"}, rows, nil))
			}
			fmt.Fprintf(out, "Copied %d of %d events file(s)\n", len(results), len(files))

			if !noSave && len(results) > 0 {
				touched := make([]string, 0, len(results))
				for _, res := range results {
					touched = append(touched, res.Events)
				}
				if err := saveDataset(cmd.Context(), cfg, manager, touched); err != nil {
					return err
				}
			}
			return copyErr
		},
	}

	cmd.Flags().StringVar(&pattern, "pattern", "", "Archive member pattern (defaults to archive.events_pattern)")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Do not save the dataset afterwards")
	return cmd
}
