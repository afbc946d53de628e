package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mmynk/splitledger/internal/id"
	"github.com/mmynk/splitledger/internal/models"
)

// NewDirectoryCommand creates the directory command group. It provisions users
// and memberships in the local directory tables, standing in for the external
// membership system during development and operations.
func NewDirectoryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "directory",
		Short: "Provision users and group memberships",
	}

	user := &cobra.Command{Use: "user", Short: "Manage users"}
	user.AddCommand(newUserAddCommand(rootOpts))

	group := &cobra.Command{Use: "group", Short: "Manage groups"}
	group.AddCommand(newGroupAddCommand(rootOpts))
	group.AddCommand(newGroupMemberCommand(rootOpts, "join", "Add a user to a group"))
	group.AddCommand(newGroupMemberCommand(rootOpts, "leave", "Remove a user from a group (they stay a historical member)"))
	group.AddCommand(newGroupShowCommand(rootOpts))

	cmd.AddCommand(user, group)
	return cmd
}

func newUserAddCommand(rootOpts *RootOptions) *cobra.Command {
	var name, email string

	cmd := &cobra.Command{
		Use:   "add [user-id]",
		Short: "Create a user (ID generated when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := id.NewUserID()
			if len(args) == 1 {
				userID = args[0]
			}
			if name == "" {
				name = userID
			}

			b, err := openBackend(rootOpts, nil)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to initialize storage", err)
			}
			defer b.Close()

			if err := b.dir.CreateUser(cmd.Context(), models.NewUser(userID, name, email)); err != nil {
				return WrapExitError(ExitCommandError, "failed to create user", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), userID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name (default: the ID)")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	return cmd
}

func newGroupAddCommand(rootOpts *RootOptions) *cobra.Command {
	var name string
	var members []string

	cmd := &cobra.Command{
		Use:   "add [group-id]",
		Short: "Create a group (ID generated when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			groupID := id.NewGroupID()
			if len(args) == 1 {
				groupID = args[0]
			}
			if name == "" {
				name = groupID
			}

			b, err := openBackend(rootOpts, nil)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to initialize storage", err)
			}
			defer b.Close()

			group := &models.Group{ID: groupID, Name: name, Members: members}
			if err := b.dir.CreateGroup(cmd.Context(), group); err != nil {
				return WrapExitError(ExitCommandError, "failed to create group", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), groupID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name (default: the ID)")
	cmd.Flags().StringSliceVar(&members, "member", nil, "initial members (repeatable or comma-separated)")
	return cmd
}

func newGroupMemberCommand(rootOpts *RootOptions, use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <group-id> <user-id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend(rootOpts, nil)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to initialize storage", err)
			}
			defer b.Close()

			if use == "join" {
				err = b.dir.AddMember(cmd.Context(), args[0], args[1])
			} else {
				err = b.dir.RemoveMember(cmd.Context(), args[0], args[1])
			}
			if err != nil {
				return WrapExitError(ExitCommandError, fmt.Sprintf("failed to %s group", use), err)
			}
			return nil
		},
	}
}

func newGroupShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <group-id>",
		Short: "Show a group and its current members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend(rootOpts, nil)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to initialize storage", err)
			}
			defer b.Close()

			group, err := b.dir.GetGroup(cmd.Context(), args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to get group", err)
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"id":         group.ID,
					"name":       group.Name,
					"members":    group.Members,
					"created_at": group.CreatedAt,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): %s\n", group.ID, group.Name, strings.Join(group.Members, ", "))
			return nil
		},
	}
}
