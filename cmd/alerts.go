package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/homeswipe/internal/alert"
	"github.com/sells-group/homeswipe/internal/model"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Inspect and acknowledge listing alerts",
}

var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's alerts, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		userID, _ := cmd.Flags().GetString("user")
		unread, _ := cmd.Flags().GetBool("unread")
		limit, _ := cmd.Flags().GetInt("limit")

		st, err := openStore(ctx, "query")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		alerts, err := alert.NewService(st).List(ctx, userID, unread, model.Page{Limit: limit})
		if err != nil {
			return eris.Wrap(err, "alerts list")
		}
		if len(alerts) == 0 {
			fmt.Fprintln(os.Stderr, "No alerts found.")
			return nil
		}

		formatAlertsList(os.Stdout, alerts)
		return nil
	},
}

var alertsReadCmd = &cobra.Command{
	Use:   "read <alert-id>",
	Short: "Mark an alert as read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		userID, _ := cmd.Flags().GetString("user")

		st, err := openStore(ctx, "query")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := alert.NewService(st).MarkRead(ctx, userID, args[0]); err != nil {
			return eris.Wrap(err, "alerts read")
		}
		return nil
	},
}

func init() {
	alertsListCmd.Flags().String("user", "", "user id")
	alertsListCmd.Flags().Bool("unread", false, "only unread alerts")
	alertsListCmd.Flags().Int("limit", 50, "max number of alerts to display")
	_ = alertsListCmd.MarkFlagRequired("user")

	alertsReadCmd.Flags().String("user", "", "user id")
	_ = alertsReadCmd.MarkFlagRequired("user")

	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsReadCmd)
	rootCmd.AddCommand(alertsCmd)
}

func formatAlertsList(out io.Writer, alerts []model.Alert) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTYPE\tLISTING\tOLD\tNEW\tCREATED\tREAD")
	for _, a := range alerts {
		read := "no"
		if a.ReadAt != nil {
			read = "yes"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(a.ID),
			a.Type,
			truncateID(a.ListingID),
			formatPrice(a.OldPrice),
			formatPrice(a.NewPrice),
			a.CreatedAt.Format("2006-01-02 15:04"),
			read,
		)
	}
	_ = w.Flush()
}

func formatPrice(p *int64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *p)
}
