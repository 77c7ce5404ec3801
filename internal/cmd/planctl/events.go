package planctl

import (
	"fmt"
	"io"
	"time"

	comparesqlite "github.com/louisbranch/planmatch/internal/services/compare/storage/sqlite"
	"github.com/spf13/cobra"
)

func newEventsCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "events <plan-id>",
		Short: "List analytics events recorded for a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd.Context(), func(store *comparesqlite.Store) error {
				events, err := store.ListAnalyticsEvents(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return opts.print(cmd, events, func(w io.Writer) error {
					if len(events) == 0 {
						_, err := fmt.Fprintln(w, "no events")
						return err
					}
					for _, evt := range events {
						if _, err := fmt.Fprintf(w, "%s\t%s\t%s\n",
							evt.OccurredAt.Format(time.RFC3339), evt.Kind, evt.Scope); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	}
}
