package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"zupload/uploader"
)

func newClassifyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <file>...",
		Short: "Show the dataset type, object spec and archive key of file names",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var strategy uploader.Strategy
			if cfg, err := loadConfig(cmd, opts); err == nil {
				if s, err := cfg.ResolveStrategy(); err == nil {
					strategy = s
				}
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"File", "Dataset type", "Object spec", "Key"})
			for _, arg := range args {
				name := filepath.Base(arg)
				cls := uploader.Classify(name)
				key := "-"
				if strategy != nil {
					cls = strategy.Classify(name)
					if info, err := strategy.Key(name); err == nil {
						key = info.Key
					} else {
						key = "error: " + err.Error()
					}
				}
				t.AppendRow(table.Row{name, cls.DatasetType, cls.ObjectSpec, key})
			}
			t.Render()
			return nil
		},
	}
}

func newHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <file>...",
		Short: "Print the SHA-256 sum the portal expects for each file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				sum, err := uploader.HashFile(arg)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", sum, arg)
			}
			return nil
		},
	}
}

func newUploadsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "uploads",
		Short: "List landing pages and PIDs recorded in the archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			a, err := uploader.ReadArchive(cfg.ArchivePath)
			if err != nil {
				return err
			}
			uploader.RenderUploads(cmd.OutOrStdout(), a)
			return nil
		},
	}
}

func newHistoryCmd(opts *options) *cobra.Command {
	var (
		limit int
		runID string
		key   string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past runs, the events of one run, or the latest outcomes for one record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			j, err := uploader.OpenJournal(cfg.JournalPath)
			if err != nil {
				return err
			}
			if j == nil {
				return errors.New("no journal configured")
			}
			defer func() { _ = j.Close() }()

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)

			if key != "" {
				t.AppendHeader(table.Row{"Stage", "Last run", "At", "Status", "Code", "Failures", "Detail"})
				for _, stage := range uploader.AllStages() {
					ev, err := j.LastEvent(key, stage)
					if err != nil {
						return err
					}
					if ev == nil {
						continue
					}
					failed, err := j.FailedAttempts(key, stage)
					if err != nil {
						return err
					}
					t.AppendRow(table.Row{stage.String(), ev.RunID, ev.At.Format(time.RFC3339), ev.Status, ev.StatusCode, failed, shorten(ev.Detail, 60)})
				}
				t.Render()
				return nil
			}

			if runID != "" {
				events, err := j.Events(runID)
				if err != nil {
					return err
				}
				t.AppendHeader(table.Row{"At", "Stage", "Key", "File", "Status", "Code", "Detail"})
				for _, ev := range events {
					t.AppendRow(table.Row{ev.At.Format(time.RFC3339), ev.Stage, ev.Key, ev.FileName, ev.Status, ev.StatusCode, shorten(ev.Detail, 80)})
				}
				t.Render()
				return nil
			}

			runs, err := j.History(limit)
			if err != nil {
				return err
			}
			t.AppendHeader(table.Row{"Run", "Reason", "Stages", "Started", "Took", "Status", "Error"})
			for _, r := range runs {
				took := "-"
				if r.EndedAt != nil {
					took = r.EndedAt.Sub(r.StartedAt).Round(time.Second).String()
				}
				t.AppendRow(table.Row{r.RunID, r.Reason, r.Stages, r.StartedAt.Format(time.RFC3339), took, r.Status, shorten(r.Error, 60)})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	cmd.Flags().StringVar(&runID, "run", "", "show the events of this run id")
	cmd.Flags().StringVar(&key, "key", "", "show the latest outcome per stage for this archive key")
	return cmd
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
