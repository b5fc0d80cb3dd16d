package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sdejongh/assurance/pkg/output"
)

// NewScansCommand creates the scans command
func NewScansCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scans",
		Short: "Browse the scan history",
	}

	cmd.AddCommand(newScansListCommand())
	cmd.AddCommand(newScansShowCommand())
	cmd.AddCommand(newScansDeleteCommand())

	return cmd
}

func newScansListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved scans, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			scans, _ := stores(cfg)

			entries, err := scans.List()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No saved scans")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTARTED\tRESULTS\tSTATUS")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					e.ID, e.Name, humanize.Time(e.StartedAt), humanize.Comma(int64(e.Results)), e.Status)
			}
			return w.Flush()
		},
	}
}

func newScansShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a saved scan and its results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			scans, _ := stores(cfg)

			scan, err := scans.Load(args[0])
			if err != nil {
				return err
			}
			report, err := output.NewReport(cfg.Output.Format, true)
			if err != nil {
				return err
			}
			return report.Write(cmd.OutOrStdout(), scan)
		},
	}
}

func newScansDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a saved scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			scans, _ := stores(cfg)

			if err := scans.Delete(args[0]); err != nil {
				return err
			}
			if !cfg.Output.Quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Scan %s deleted\n", args[0])
			}
			return nil
		},
	}
}
