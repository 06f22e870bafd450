package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/psyportal/portal-client/internal/core/domain"
)

// watchCmd follows the stored session and reports sign-ins and sign-outs
// made by other portal processes sharing the session file.
func (c *cli) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow session changes made by other terminals",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.app.file == nil {
				return errors.New("watch needs STORAGE_DRIVER=file")
			}
			ctx := cmd.Context()

			report := func(s domain.Snapshot) {
				if s.IsAuthenticated {
					fmt.Fprintf(c.out, "signed in: %s <%s>\n", s.User.Name, s.User.Email)
					return
				}
				fmt.Fprintln(c.out, "signed out")
			}
			report(c.app.store.Snapshot())
			cancel := c.app.store.Subscribe(report)
			defer cancel()

			fmt.Fprintf(c.out, "watching %s (Ctrl+C to stop)\n", c.app.file.Path())
			return c.app.file.Watch(ctx, func() { c.app.store.Resync(ctx) })
		},
	}
}
