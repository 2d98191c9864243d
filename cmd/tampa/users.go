package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/djarekg/tampa-taffy/internal/errors"
	"github.com/djarekg/tampa-taffy/pkg/api"
)

func usersCmd(g *globals) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "users [id]",
		Short: "List users, or show one user",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 1 {
				return errors.New(errors.CodeBadArguments).
					WithDetailf("users takes at most one id, got %d arguments", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			g.logger(cfg, cmd.ErrOrStderr())
			client, err := g.client(cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				u, err := client.User(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(out, u)
				}
				printUsers(out, []api.User{*u})
				return nil
			}

			users, err := client.Users(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(out, users)
			}
			printUsers(out, users)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")

	return cmd
}

func printUsers(w io.Writer, users []api.User) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tJOB\tACTIVE")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n", u.ID, u.FullName(), u.Email, u.Job, u.IsActive)
	}
	tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
