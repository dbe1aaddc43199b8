package main

import (
	"fmt"
	"os/user"

	"github.com/spf13/cobra"

	"github.com/congo-pay/simwallet/internal/authority"
	"github.com/congo-pay/simwallet/internal/salt"
)

func newSaltCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "salt",
		Short: "Manage the identifier salt. Only fingerprints are ever printed.",
	}
	cmd.AddCommand(saltInitCmd(), saltRotateCmd(), saltShowCmd())
	return cmd
}

func saltInitCmd() *cobra.Command {
	var hexValue string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Set the salt once; fails if one is already set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			next, err := saltOrRandom(hexValue)
			if err != nil {
				return err
			}
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()
			if err := e.salts.Initialize(cmd.Context(), next); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "salt initialized: %s\n", next.Fingerprint())
			return nil
		},
	}
	cmd.Flags().StringVar(&hexValue, "hex", "", "hex-encoded 16-byte salt (random when empty)")
	return cmd
}

func saltRotateCmd() *cobra.Command {
	var hexValue string
	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Replace the salt; every previously derived wallet becomes stale",
		RunE: func(cmd *cobra.Command, _ []string) error {
			next, err := saltOrRandom(hexValue)
			if err != nil {
				return err
			}
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()
			if err := e.salts.Rotate(cmd.Context(), authority.Admin(operator()), next); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "salt rotated: %s\n", next.Fingerprint())
			return nil
		},
	}
	cmd.Flags().StringVar(&hexValue, "hex", "", "hex-encoded 16-byte salt (random when empty)")
	return cmd
}

func saltShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current salt fingerprint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()
			current, err := e.salts.Current()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), current.Fingerprint())
			return nil
		},
	}
}

func saltOrRandom(hexValue string) (salt.Salt, error) {
	if hexValue == "" {
		return salt.Random()
	}
	return salt.ParseHex(hexValue)
}

func operator() string {
	if u, err := user.Current(); err == nil {
		return "walletctl:" + u.Username
	}
	return "walletctl"
}
