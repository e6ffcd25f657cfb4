package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/shelf/pkg/schema"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	cmd.AddCommand(newUserAddCmd(a))
	cmd.AddCommand(newUserListCmd(a))
	return cmd
}

func newUserAddCmd(a *app) *cobra.Command {
	var name, email, password string
	var isAdmin bool
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		Long:  "Create a user directly in storage. Access rules do not apply, so this is\nhow the first admin is created.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.attachBackend()
			if err != nil {
				return err
			}
			defer backend.Detach()

			users, err := backend.GetTable(schema.User)
			if err != nil {
				return systemError("get users table: %w", err)
			}
			ctx := types.Sudo(commandContext(cmd))
			id, err := users.Set(ctx, "", types.NewItem(schema.User, map[string]any{
				"name":     name,
				"email":    email,
				"password": password,
				"isAdmin":  isAdmin,
			}))
			if err != nil {
				return userError("add user: %w", err)
			}
			return a.output(cmd.OutOrStdout(), map[string]string{"id": id}, "%s", id)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "sign-in email, unique")
	cmd.Flags().StringVar(&password, "password", "", "password, at least 8 characters")
	cmd.Flags().BoolVar(&isAdmin, "admin", false, "grant admin rights")
	return cmd
}

func newUserListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.attachBackend()
			if err != nil {
				return err
			}
			defer backend.Detach()

			users, err := backend.GetTable(schema.User)
			if err != nil {
				return systemError("get users table: %w", err)
			}
			items, err := users.Fetch(types.Sudo(commandContext(cmd)), nil)
			if err != nil {
				return systemError("list users: %w", err)
			}

			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), items)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tADMIN")
			for _, u := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", u.ID, u.String("name"), u.String("email"), u.Bool("isAdmin"))
			}
			return tw.Flush()
		},
	}
}
