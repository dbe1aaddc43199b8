package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/congo-pay/simwallet/internal/alias"
	"github.com/congo-pay/simwallet/internal/config"
	"github.com/congo-pay/simwallet/internal/derive"
	"github.com/congo-pay/simwallet/internal/logging"
	"github.com/congo-pay/simwallet/internal/phone"
	"github.com/congo-pay/simwallet/internal/routes"
	"github.com/congo-pay/simwallet/internal/salt"
)

type deriveOptions struct {
	phone   string
	region  string
	alias   string
	saltHex string
	program string
}

func newDeriveCmd() *cobra.Command {
	var opts deriveOptions
	cmd := &cobra.Command{
		Use:   "derive",
		Short: "Compute the wallet address for a phone number, or the reservation address for an alias",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (opts.phone == "") == (opts.alias == "") {
				return fmt.Errorf("exactly one of --phone or --alias is required")
			}
			if opts.region != "" && !phone.ValidRegion(opts.region) {
				return fmt.Errorf("--region must be an ISO 3166-1 alpha-2 code")
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if opts.program != "" {
				cfg.ProgramID, cfg.ProgramName = "", opts.program
			}
			program, err := routes.ProgramAddress(cfg)
			if err != nil {
				return err
			}
			region := opts.region
			if region == "" {
				region = cfg.DefaultRegion
			}
			deriver := derive.NewPDADeriver(program, logging.Discard())
			out := cmd.OutOrStdout()

			if opts.alias != "" {
				seed, err := alias.Pad(opts.alias)
				if err != nil {
					return err
				}
				addr, bump, err := deriver.Derive(derive.DomainAlias, seed[:])
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "reservation: %s\nbump: %d\n", addr, bump)
				return nil
			}

			current, err := resolveSalt(cmd, opts.saltHex)
			if err != nil {
				return err
			}
			identifier := phone.Normalize(opts.phone, region)
			if identifier == "" {
				return fmt.Errorf("phone number has no digits")
			}
			digest := derive.HashIdentifier(identifier, current)
			addr, bump, err := deriver.Derive(derive.DomainWallet, digest[:])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "identifier: %s\ncanonical: %t\naddress: %s\nbump: %d\nsalt: %s\n",
				identifier, phone.IsCanonical(identifier), addr, bump, current.Fingerprint())
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.phone, "phone", "", "phone number in any common format")
	cmd.Flags().StringVar(&opts.region, "region", "", "ISO 3166-1 alpha-2 region for national numbers (defaults to DEFAULT_REGION)")
	cmd.Flags().StringVar(&opts.alias, "alias", "", "alias to compute the reservation address for")
	cmd.Flags().StringVar(&opts.saltHex, "salt", "", "hex salt to derive under instead of the stored one")
	cmd.Flags().StringVar(&opts.program, "program", "", "program name (defaults to PROGRAM_ID, then PROGRAM_NAME)")
	return cmd
}

func resolveSalt(cmd *cobra.Command, saltHex string) (salt.Salt, error) {
	if saltHex != "" {
		return salt.ParseHex(saltHex)
	}
	e, err := openEnv(cmd.Context())
	if err != nil {
		return salt.Salt{}, err
	}
	defer e.close()
	return e.salts.Current()
}
