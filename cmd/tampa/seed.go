package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/djarekg/tampa-taffy/internal/store"
)

func seedCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create demo users in an empty database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.config()
			if err != nil {
				return err
			}
			g.logger(cfg, os.Stderr)

			st, err := store.Open(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := st.Seed(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if n == 0 {
				info(out, "database already has users, nothing to do")
				return nil
			}
			success(out, "created %d users (password %q)", n, store.SeedPassword)
			return nil
		},
	}
}
