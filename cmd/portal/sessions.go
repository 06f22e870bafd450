package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/psyportal/portal-client/internal/core/domain"
	"github.com/psyportal/portal-client/internal/core/service"
)

const dateLayout = "2006-01-02"

func (c *cli) sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage booked therapy sessions",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			return c.app.requireSession(domain.RoleClient, domain.RoleAdmin)
		},
	}
	cmd.AddCommand(c.sessionsListCmd(), c.sessionsBookCmd(), c.sessionsCancelCmd(), c.sessionsRateCmd())
	return cmd
}

func (c *cli) sessionsListCmd() *cobra.Command {
	var status, from, to string
	var f domain.SessionFilters
	var upcoming, completed bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			f.Status = domain.SessionStatus(status)
			if f.DateFrom, err = parseDate(from); err != nil {
				return err
			}
			if f.DateTo, err = parseDate(to); err != nil {
				return err
			}

			board := service.NewSessionBoard(c.app.client, c.app.log)
			if err := board.Refresh(cmd.Context(), f); err != nil {
				return failure(err)
			}
			items := board.Sessions()
			switch {
			case upcoming:
				items = board.Upcoming()
			case completed:
				items = board.Completed()
			}
			printSessions(c.out, items)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "scheduled, confirmed, in_progress, completed, cancelled or no_show")
	cmd.Flags().StringVar(&from, "from", "", "Earliest start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Latest start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&f.Page, "page", 0, "Page number")
	cmd.Flags().IntVar(&f.PerPage, "per-page", 0, "Sessions per page")
	cmd.Flags().BoolVar(&upcoming, "upcoming", false, "Only scheduled or confirmed sessions")
	cmd.Flags().BoolVar(&completed, "completed", false, "Only completed sessions")
	cmd.MarkFlagsMutuallyExclusive("upcoming", "completed")
	return cmd
}

func (c *cli) sessionsBookCmd() *cobra.Command {
	var b domain.Booking
	var start, kind string
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Book a session with a therapist",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := time.Parse(time.RFC3339, start)
			if err != nil {
				return fmt.Errorf("--start: want RFC 3339, e.g. 2026-11-02T10:00:00Z")
			}
			b.StartTime = t
			b.Type = domain.SessionType(kind)

			env, err := c.app.client.BookSession(cmd.Context(), b)
			if err != nil {
				return failure(err)
			}
			if env.Data == nil {
				fmt.Fprintln(c.out, "Session booked")
				return nil
			}
			printSessions(c.out, []domain.TherapySession{*env.Data})
			return nil
		},
	}
	cmd.Flags().Int64Var(&b.TherapistID, "therapist", 0, "Therapist id")
	cmd.Flags().StringVar(&start, "start", "", "Start time, RFC 3339")
	cmd.Flags().StringVar(&kind, "type", string(domain.SessionIndividual), "individual, couple or group")
	cmd.Flags().StringVar(&b.Notes, "notes", "", "Notes for the therapist")
	_ = cmd.MarkFlagRequired("therapist")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func (c *cli) sessionsCancelCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel an upcoming session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			board := service.NewSessionBoard(c.app.client, c.app.log)
			if err := board.Cancel(cmd.Context(), id, reason); err != nil {
				return failure(err)
			}
			fmt.Fprintf(c.out, "Session %d cancelled\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Reason shown to the therapist")
	return cmd
}

func (c *cli) sessionsRateCmd() *cobra.Command {
	var r domain.Rating
	cmd := &cobra.Command{
		Use:   "rate <id>",
		Short: "Rate a session from 1 to 5",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			board := service.NewSessionBoard(c.app.client, c.app.log)
			if err := board.Rate(cmd.Context(), id, r); err != nil {
				return failure(err)
			}
			fmt.Fprintf(c.out, "Session %d rated %d/5\n", id, r.Rating)
			return nil
		},
	}
	cmd.Flags().IntVar(&r.Rating, "rating", 0, "Rating from 1 to 5")
	cmd.Flags().StringVar(&r.Comment, "comment", "", "Optional comment")
	_ = cmd.MarkFlagRequired("rating")
	return cmd
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}
