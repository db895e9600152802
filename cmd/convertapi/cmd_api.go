package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/campaigntrip/convertapi/internal/convert"
	"github.com/campaigntrip/convertapi/internal/report"
)

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <accountId> <projectId> <experienceId>",
		Short: "Summarize conversions, traffic split and winners of an experience",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, projectID, experienceID := args[0], args[1], args[2]
			client, err := a.client()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			statsRaw, err := client.GetExperienceStats(ctx, accountID, projectID, experienceID)
			if err != nil {
				return fmt.Errorf("failed to get experience %s in account/project %s/%s: %w",
					experienceID, accountID, projectID, err)
			}
			dailyRaw, err := client.GetDailyReport(ctx, accountID, projectID, experienceID)
			if err != nil {
				return fmt.Errorf("failed to get experience %s report in account/project %s/%s: %w",
					experienceID, accountID, projectID, err)
			}

			stats, err := report.ParseStats(statsRaw)
			if err != nil {
				return err
			}
			daily, err := report.ParseDaily(dailyRaw)
			if err != nil {
				return err
			}

			for _, line := range report.Summarize(stats, daily).Lines() {
				a.logger.Info(line)
			}
			return nil
		},
	}
}

func newReportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "report <accountId> <projectId> <experienceId>",
		Short: "Dump the daily and aggregated reports of an experience",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, projectID, experienceID := args[0], args[1], args[2]
			client, err := a.client()
			if err != nil {
				return err
			}

			reports := []struct {
				title string
				fetch func() (json.RawMessage, error)
			}{
				{"Daily report:", func() (json.RawMessage, error) {
					return client.GetDailyReport(cmd.Context(), accountID, projectID, experienceID)
				}},
				{"Aggregated report:", func() (json.RawMessage, error) {
					return client.GetAggregatedReport(cmd.Context(), accountID, projectID, experienceID)
				}},
			}

			for _, r := range reports {
				raw, err := r.fetch()
				if err != nil {
					return fmt.Errorf("failed to get experience %s report in account/project %s/%s: %w",
						experienceID, accountID, projectID, err)
				}
				fmt.Fprintln(a.stdout, r.title)
				if err := a.printJSON(raw); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newExperiencesCmd(a *app) *cobra.Command {
	var withStats bool

	cmd := &cobra.Command{
		Use:   "experiences <accountId> <projectId>",
		Short: "List the experiences of a project (first page only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}

			opts := convert.WithVariations
			if withStats {
				opts = convert.WithStats
			}
			list, err := client.ListExperiences(cmd.Context(), args[0], args[1], opts)
			if err != nil {
				return fmt.Errorf("failed to list experiences in account/project %s/%s: %w", args[0], args[1], err)
			}
			return a.printJSON(list.Raw)
		},
	}
	cmd.Flags().BoolVar(&withStats, "stats", false, "Include per-experience stats")
	return cmd
}

func newProjectsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "projects <accountId>",
		Short: "List the projects of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			raw, err := client.ListProjects(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to list projects in account %s: %w", args[0], err)
			}
			return a.printJSON(raw)
		},
	}
}
