package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/congo-pay/simwallet/internal/credential"
)

func newPINCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pin",
		Short: "PIN policy helpers",
	}
	cmd.AddCommand(pinCheckCmd())
	return cmd
}

func pinCheckCmd() *cobra.Command {
	var policyName string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check a PIN against a strength policy. The PIN is read from the terminal without echo, or from stdin.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			policy, err := credential.PolicyByName(policyName)
			if err != nil {
				return err
			}
			pin, err := readPIN(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			err = credential.ValidateStrength(pin, policy)
			var violation *credential.PolicyViolation
			if errors.As(err, &violation) {
				fmt.Fprintf(cmd.OutOrStdout(), "rejected: %s\n", violation.Rule)
				return err
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: satisfies %s\n", policy.Name())
			return nil
		},
	}
	cmd.Flags().StringVar(&policyName, "policy", credential.PolicyAlphanumeric, "policy name: alphanumeric or numeric6")
	return cmd
}

func readPIN(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "PIN: ")
		raw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read pin: %w", err)
		}
		return string(raw), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read pin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
