package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"timesplit/internal/app"
	"timesplit/internal/usecase"
)

var (
	dateFlag   string
	onlyFlag   string
	dryRunFlag bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Check that the Harvest credentials are accepted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		email, err := a.VerifyCredentials(cmd.Context())
		if err != nil {
			return fmt.Errorf("credentials rejected: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", email)
		return nil
	},
}

var timersCmd = &cobra.Command{
	Use:   "timers",
	Short: "List a day's timers and which of them would be split",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		date, err := app.ParseDate(dateFlag, a.Today(), a.Location())
		if err != nil {
			return fmt.Errorf("--date: %w", err)
		}
		p, err := a.Preview(cmd.Context(), date)
		if err != nil {
			return err
		}
		return renderPreview(cmd.OutOrStdout(), p)
	},
}

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Split a day's prefixed timers and send the results to Harvest",
	Long: `Split every timer of the day whose notes start with a configured prefix.
The original timer is updated with its share and the prefix removed from its
notes; a new timer is created for each other project of the rule.

Use --only to split just some timers, and --dry-run to see the result first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		date, err := app.ParseDate(dateFlag, a.Today(), a.Location())
		if err != nil {
			return fmt.Errorf("--date: %w", err)
		}
		only, err := app.ParseIDs(onlyFlag)
		if err != nil {
			return fmt.Errorf("--only: %w", err)
		}

		report, err := a.Split(cmd.Context(), date, usecase.SplitOptions{Only: only, DryRun: dryRunFlag})
		if err != nil {
			return err
		}
		if err := renderReport(cmd.OutOrStdout(), report); err != nil {
			return err
		}
		if failed := report.Failed(); len(failed) > 0 {
			logger.Error("some timers were not saved", slog.Int("failed", len(failed)), slog.Int("total", len(report.Results)))
			return report.Err()
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{timersCmd, splitCmd} {
		c.Flags().StringVar(&dateFlag, "date", "", "Day to work on, YYYY-MM-DD (default: today in SPLIT_TZ)")
	}
	splitCmd.Flags().StringVar(&onlyFlag, "only", "", "Comma separated timer ids to split (default: all prefixed timers)")
	splitCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Show the resulting timers without sending them")
}
