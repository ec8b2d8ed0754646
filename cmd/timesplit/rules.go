package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"timesplit/internal/domain"
	"timesplit/internal/usecase"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage split rules",
	Long: `A split rule maps a notes prefix to the projects a timer is split across.
Notes match a rule when they are exactly the prefix or start with the prefix
followed by a space. The first matching rule wins.`,
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List split rules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRules(cmd, func(rules *usecase.RuleService) error {
			cfg, err := rules.Configuration()
			if err != nil {
				return err
			}
			return renderRules(cmd.OutOrStdout(), cfg)
		})
	},
}

var rulesAddCmd = &cobra.Command{
	Use:   "add PREFIX [PROJECT_ID...]",
	Short: "Add a split rule",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRules(cmd, func(rules *usecase.RuleService) error {
			i, err := rules.AddRule(cmd.Context(), args[0], projectIDs(args[1:]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added rule %d (%s)\n", i, args[0])
			return nil
		})
	},
}

var rulesRemoveCmd = &cobra.Command{
	Use:   "remove INDEX",
	Short: "Remove a split rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		i, err := parseIndex(args[0])
		if err != nil {
			return err
		}
		return withRules(cmd, func(rules *usecase.RuleService) error {
			return rules.RemoveRule(cmd.Context(), i)
		})
	},
}

var rulesRenameCmd = &cobra.Command{
	Use:   "rename INDEX PREFIX",
	Short: "Change a rule's prefix",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		i, err := parseIndex(args[0])
		if err != nil {
			return err
		}
		return withRules(cmd, func(rules *usecase.RuleService) error {
			return rules.RenameRule(cmd.Context(), i, args[1])
		})
	},
}

var rulesSetProjectsCmd = &cobra.Command{
	Use:   "set-projects INDEX [PROJECT_ID...]",
	Short: "Replace a rule's projects",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		i, err := parseIndex(args[0])
		if err != nil {
			return err
		}
		return withRules(cmd, func(rules *usecase.RuleService) error {
			return rules.SetRuleProjects(cmd.Context(), i, projectIDs(args[1:]))
		})
	},
}

var rulesToggleCmd = &cobra.Command{
	Use:   "toggle INDEX PROJECT_ID",
	Short: "Add a project to a rule, or remove it if already there",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		i, err := parseIndex(args[0])
		if err != nil {
			return err
		}
		return withRules(cmd, func(rules *usecase.RuleService) error {
			return rules.ToggleRuleProject(cmd.Context(), i, domain.ProjectID(args[1]))
		})
	},
}

func init() {
	rulesCmd.AddCommand(rulesListCmd, rulesAddCmd, rulesRemoveCmd, rulesRenameCmd, rulesSetProjectsCmd, rulesToggleCmd)
}

// withRules opens the app without requiring Harvest credentials.
func withRules(cmd *cobra.Command, fn func(*usecase.RuleService) error) error {
	a, err := openApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a.Rules())
}

func parseIndex(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("invalid rule index %q", s)
	}
	return i, nil
}

func projectIDs(args []string) []domain.ProjectID {
	out := make([]domain.ProjectID, 0, len(args))
	for _, a := range args {
		out = append(out, domain.ProjectID(a))
	}
	return out
}
