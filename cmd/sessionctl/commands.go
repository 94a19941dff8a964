package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var errBadAssignment = errors.New("expected name=value")

type sessionView struct {
	ID         string         `json:"id"`
	ExpiresAt  time.Time      `json:"expires_at"`
	Attributes map[string]any `json:"attributes"`
}

func newCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create an empty session and print its id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			sess, err := a.registry.Create(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), sess.ID())
			return err
		},
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print a session as JSON",
		Long:  "Print a session as JSON. Reading counts as an access and may refresh the stored expiry.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			sess, err := a.registry.Load(ctx, args[0])
			if err != nil {
				return err
			}

			view := sessionView{ID: sess.ID(), Attributes: sess.Attributes()}
			view.ExpiresAt = sess.ExpiresAt().UTC()
			if err := sess.Save(ctx); err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		},
	}
}

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <id> name=value...",
		Short: "Set string attributes on a session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs := make([][2]string, 0, len(args)-1)
			for _, arg := range args[1:] {
				name, value, ok := strings.Cut(arg, "=")
				if !ok || name == "" {
					return fmt.Errorf("%w: %q", errBadAssignment, arg)
				}
				pairs = append(pairs, [2]string{name, value})
			}

			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			sess, err := a.registry.Load(ctx, args[0])
			if err != nil {
				return err
			}
			for _, p := range pairs {
				sess.Set(p[0], p[1])
			}
			return sess.Save(ctx)
		},
	}
}

func newUnsetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unset <id> name...",
		Short: "Remove attributes from a session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			sess, err := a.registry.Load(ctx, args[0])
			if err != nil {
				return err
			}
			for _, name := range args[1:] {
				sess.Remove(name)
			}
			return sess.Save(ctx)
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a session from every tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			return a.registry.Delete(cmd.Context(), args[0])
		},
	}
}

func newRenewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "renew <id>",
		Short: "Move a session to a fresh id and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			sess, err := a.registry.Load(ctx, args[0])
			if err != nil {
				return err
			}
			renewed, err := a.registry.RenewID(ctx, sess)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renewed.ID())
			return err
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List live sessions and their expiry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			all, err := a.registry.List(cmd.Context())
			if err != nil {
				return err
			}

			ids := make([]string, 0, len(all))
			for id := range all {
				ids = append(ids, id)
			}
			slices.Sort(ids)

			out := cmd.OutOrStdout()
			for _, id := range ids {
				if _, err := fmt.Fprintf(out, "%s\t%s\n", id, all[id].ExpiresAt.UTC().Format(time.RFC3339)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Prepare the durable backend schema or indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			return a.migrate(cmd.Context())
		},
	}
}
