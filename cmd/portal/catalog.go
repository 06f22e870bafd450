package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/psyportal/portal-client/internal/core/domain"
	"github.com/psyportal/portal-client/internal/core/service"
)

func (c *cli) therapistsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "therapists",
		Short: "Browse the therapist catalog",
	}

	var f domain.TherapistFilters
	list := &cobra.Command{
		Use:   "list",
		Short: "List therapists matching the filters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog := service.NewTherapistCatalog(c.app.client, c.app.log)
			page := f.Page
			if err := catalog.SetFilters(cmd.Context(), f); err != nil {
				return failure(err)
			}
			if page > 1 {
				if err := catalog.SetPage(cmd.Context(), page); err != nil {
					return failure(err)
				}
			}
			printCatalog(c.out, catalog.View())
			return nil
		},
	}
	list.Flags().StringVar(&f.Specialization, "specialization", "", "Specialization contains")
	list.Flags().StringVar(&f.Approach, "approach", "", "Approach contains")
	list.Flags().IntVar(&f.MinExperience, "min-experience", 0, "Minimum years of experience")
	list.Flags().Int64Var(&f.MaxPrice, "max-price", 0, "Maximum price per hour, whole currency units")
	list.Flags().BoolVar(&f.OnlineOnly, "online", false, "Only therapists available online")
	list.Flags().IntVar(&f.Page, "page", 1, "Page number")
	list.Flags().IntVar(&f.PerPage, "per-page", service.DefaultPerPage, "Therapists per page")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one therapist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			env, err := c.app.client.Therapist(cmd.Context(), id)
			if err != nil {
				return failure(err)
			}
			printTherapist(c.out, env.Data)
			return nil
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

func (c *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show platform counters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := c.app.client.Stats(cmd.Context())
			if err != nil {
				return failure(err)
			}
			s := env.Data
			if s == nil {
				s = &domain.Stats{}
			}
			fmt.Fprintf(c.out, "Therapists:  %d (%d online)\n", s.TotalTherapists, s.ActiveTherapists)
			fmt.Fprintf(c.out, "Sessions:    %d\n", s.TotalSessions)
			fmt.Fprintf(c.out, "Avg rating:  %.1f\n", s.AverageRating)
			return nil
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
