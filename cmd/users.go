package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sells-group/homeswipe/internal/model"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage feed users and their saved searches",
}

var usersAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a user and print its id",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		email, _ := cmd.Flags().GetString("email")
		noAlerts, _ := cmd.Flags().GetBool("no-alerts")

		st, err := openStore(ctx, "query")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		u := &model.User{Email: email, AlertsEnabled: !noAlerts}
		if err := st.CreateUser(ctx, u); err != nil {
			return eris.Wrap(err, "users add")
		}
		fmt.Fprintln(os.Stdout, u.ID)
		return nil
	},
}

var usersSearchCmd = &cobra.Command{
	Use:   "search <user-id> <name>",
	Short: "Save a search that alerts the user about matching new listings",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		filter, err := searchFilterFromFlags(cmd.Flags())
		if err != nil {
			return err
		}

		st, err := openStore(ctx, "query")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ss := &model.SavedSearch{UserID: args[0], Name: args[1], Filter: filter, AlertsEnabled: true}
		if err := st.CreateSavedSearch(ctx, ss); err != nil {
			return eris.Wrap(err, "users search")
		}
		fmt.Fprintln(os.Stdout, ss.ID)
		return nil
	},
}

func init() {
	usersAddCmd.Flags().String("email", "", "user email")
	usersAddCmd.Flags().Bool("no-alerts", false, "create the user with alerts disabled")
	_ = usersAddCmd.MarkFlagRequired("email")

	usersSearchCmd.Flags().Int64("min-price", 0, "minimum price")
	usersSearchCmd.Flags().Int64("max-price", 0, "maximum price")
	usersSearchCmd.Flags().Int("min-beds", 0, "minimum bedrooms")
	usersSearchCmd.Flags().Float64("min-baths", 0, "minimum bathrooms")
	usersSearchCmd.Flags().String("province", "", "province")

	usersCmd.AddCommand(usersAddCmd)
	usersCmd.AddCommand(usersSearchCmd)
	rootCmd.AddCommand(usersCmd)
}

// searchFilterFromFlags builds a filter from the flags that were set.
func searchFilterFromFlags(fs *pflag.FlagSet) (model.FeedFilter, error) {
	var f model.FeedFilter
	if fs.Changed("min-price") {
		v, _ := fs.GetInt64("min-price")
		f.MinPrice = &v
	}
	if fs.Changed("max-price") {
		v, _ := fs.GetInt64("max-price")
		f.MaxPrice = &v
	}
	if fs.Changed("min-beds") {
		v, _ := fs.GetInt("min-beds")
		f.MinBeds = &v
	}
	if fs.Changed("min-baths") {
		v, _ := fs.GetFloat64("min-baths")
		f.MinBaths = &v
	}
	f.Province, _ = fs.GetString("province")

	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return f, eris.New("min-price is greater than max-price")
	}
	return f, nil
}
