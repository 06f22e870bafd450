package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/psyportal/portal-client/internal/core/domain"
	"github.com/psyportal/portal-client/internal/core/service"
)

func printUser(w io.Writer, u *domain.User) {
	if u == nil {
		fmt.Fprintln(w, "No user")
		return
	}
	verified := "no"
	if u.IsEmailVerified {
		verified = "yes"
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%d\n", u.ID)
	fmt.Fprintf(tw, "Name:\t%s\n", u.Name)
	fmt.Fprintf(tw, "Email:\t%s (verified: %s)\n", u.Email, verified)
	fmt.Fprintf(tw, "Role:\t%s\n", u.Role)
	if u.Phone != "" {
		fmt.Fprintf(tw, "Phone:\t%s\n", u.Phone)
	}
	if u.LastLoginAt != nil {
		fmt.Fprintf(tw, "Last login:\t%s\n", u.LastLoginAt.Local().Format(time.DateTime))
	}
	_ = tw.Flush()
}

func printCatalog(w io.Writer, v service.CatalogView) {
	if len(v.Therapists) == 0 {
		fmt.Fprintln(w, "No therapists match these filters")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSPECIALIZATION\tYEARS\tPRICE/H\tRATING\tONLINE")
	for _, t := range v.Therapists {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%.1f\t%s\n",
			t.ID, t.User.Name, t.Specialization, t.Experience, price(t.PricePerHour), t.Rating, yesNo(t.IsOnline))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "Page %d of %d, %d therapists\n", v.Page, v.TotalPages, v.Total)
}

func printTherapist(w io.Writer, t *domain.Therapist) {
	if t == nil {
		fmt.Fprintln(w, "No therapist")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Name:\t%s\n", t.User.Name)
	fmt.Fprintf(tw, "Specialization:\t%s\n", t.Specialization)
	fmt.Fprintf(tw, "Approach:\t%s\n", t.Approach)
	fmt.Fprintf(tw, "Experience:\t%d years\n", t.Experience)
	fmt.Fprintf(tw, "Price:\t%s per hour\n", price(t.PricePerHour))
	fmt.Fprintf(tw, "Rating:\t%.1f (%d reviews)\n", t.Rating, t.ReviewCount)
	fmt.Fprintf(tw, "Languages:\t%s\n", strings.Join(t.Languages, ", "))
	fmt.Fprintf(tw, "Online:\t%s\n", yesNo(t.IsOnline))
	if t.NextAvailableSlot != nil {
		fmt.Fprintf(tw, "Next slot:\t%s\n", t.NextAvailableSlot.Local().Format(time.DateTime))
	}
	_ = tw.Flush()
	if t.Bio != "" {
		fmt.Fprintf(w, "\n%s\n", t.Bio)
	}
}

func printSessions(w io.Writer, sessions []domain.TherapySession) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTART\tTHERAPIST\tTYPE\tSTATUS\tRATING")
	for _, s := range sessions {
		therapist := fmt.Sprintf("#%d", s.TherapistID)
		if s.Therapist != nil && s.Therapist.Name != "" {
			therapist = s.Therapist.Name
		}
		rating := "-"
		if s.Rating != nil {
			rating = fmt.Sprintf("%d/5", s.Rating.Rating)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.StartTime.Local().Format("2006-01-02 15:04"), therapist, s.Type, s.Status, rating)
	}
	_ = tw.Flush()
}

// price renders an amount held in minor units.
func price(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
