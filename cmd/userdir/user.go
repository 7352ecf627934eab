package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/prn-tf/userdir/internal/app"
	"github.com/prn-tf/userdir/internal/domain"
	"github.com/prn-tf/userdir/internal/repository"
)

func newUserCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage and look up users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(
		newUserAddCmd(opts),
		newUserGetCmd(opts),
		newUserLookupCmd(opts),
		newUserListCmd(opts),
	)
	return cmd
}

func newUserAddCmd(opts *rootOptions) *cobra.Command {
	var (
		uid, name, email, realm string
		admin, inactive         bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a user to the store",
		Example: `  userdir user add --uid alice --name "Alice Liddell" --email alice@example.com
  userdir user add --uid root --admin --realm local`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			authRealm, err := domain.ParseAuthRealm(realm)
			if err != nil {
				return err
			}

			user := domain.NewUser(uid)
			user.Name = name
			user.Email = email
			user.Admin = admin
			user.Active = !inactive
			user.AuthRealm = authRealm

			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				if err := a.Directory.AddUser(ctx, user); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), user)
			})
		},
	}

	cmd.Flags().StringVar(&uid, "uid", "", "External identifier of the user")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&realm, "realm", domain.AuthRealmLocal.String(), "Authentication realm (ldap, local, external)")
	cmd.Flags().BoolVar(&admin, "admin", false, "Grant directory admin")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "Create the user deactivated")
	_ = cmd.MarkFlagRequired("uid")

	return cmd
}

func newUserGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a user by numeric id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user id %q: %w", args[0], err)
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				user, err := a.Directory.GetUserByID(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), user)
			})
		},
	}
}

func newUserLookupCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <uid>",
		Short: "Resolve a uid, provisioning it from LDAP if unknown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				user, err := a.Directory.GetUserByUID(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), user)
			})
		},
	}
}

func newUserListCmd(opts *rootOptions) *cobra.Command {
	var (
		uidPattern string
		include    []string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List users ordered by uid",
		Example: `  userdir user list --uid '^a'`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := repository.UserFilter{repository.FilterUID: uidPattern}

			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				users, err := a.Directory.ListUsers(ctx, repository.ListInclude(include), filter)
				if err != nil {
					return err
				}
				if users == nil {
					users = []*domain.User{}
				}
				return printJSON(cmd.OutOrStdout(), users)
			})
		},
	}

	cmd.Flags().StringVar(&uidPattern, "uid", "", "Regular expression matched against uid")
	cmd.Flags().StringSliceVar(&include, "include", nil, "Related data to include (reserved)")

	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
