package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPurgeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete templates older than the configured retention",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup(*configPath)
			if err != nil {
				return err
			}

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := st.templates.PurgeOlderThan(cmd.Context(), cfg.Templates.Retention)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Purged %d template(s) older than %s\n", n, cfg.Templates.Retention)
			return nil
		},
	}
}
