package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/modelmig/internal/audit"
	"github.com/conduit-lang/modelmig/internal/cli/ui"
)

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the latest recorded document migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Audit.Driver == "" {
				fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError("audit.driver is not set, no history is recorded", color.NoColor))
				return errReported
			}

			tracker, err := audit.Open(cfg.Audit.Driver, cfg.Audit.DSN)
			if err != nil {
				return err
			}
			defer tracker.Close()
			if err := tracker.Initialize(cmd.Context()); err != nil {
				return err
			}

			runs, err := tracker.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No migrations recorded")
				return nil
			}

			failed := color.New(color.FgRed)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RECORDED\tBATCH\tFILE\tKIND\tFROM\tTO\tSTATUS")
			for _, r := range runs {
				status := r.Status
				if r.Status == audit.StatusFailed {
					status = failed.Sprintf("%s (%s)", r.Status, r.Code)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					r.RecordedAt.Local().Format(time.DateTime), r.BatchID, r.Filename, r.Kind,
					r.SourceVersion, r.TargetVersion, status)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")

	return cmd
}
