package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/congo-pay/simwallet/internal/config"
	"github.com/congo-pay/simwallet/internal/infra"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Schema migration helpers",
	}
	cmd.AddCommand(
		migrateDirectionCmd("up [count]", "Migrates database up [count] migrations", true, cobra.MaximumNArgs(1)),
		migrateDirectionCmd("down count", "Migrates database down count migrations", false, cobra.ExactArgs(1)),
	)
	return cmd
}

func migrateDirectionCmd(use, short string, up bool, args cobra.PositionalArgs) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			var count int
			if len(args) > 0 {
				var err error
				count, err = strconv.Atoi(args[0])
				if err != nil || count < 0 {
					return fmt.Errorf("invalid [count] argument: %s", args[0])
				}
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			n, err := infra.Migrate(cfg.DatabaseURL, up, count)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migrations\n", n)
			return nil
		},
	}
}
