package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/simwallet/internal/credential"
	"github.com/congo-pay/simwallet/internal/derive"
	"github.com/congo-pay/simwallet/internal/logging"
	"github.com/congo-pay/simwallet/internal/salt"
	"github.com/congo-pay/simwallet/internal/wallet"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func TestDeriveWithExplicitSalt(t *testing.T) {
	first, err := run(t, "", "derive", "--phone", "(650) 253-0000", "--region", "US", "--salt", "000102030405060708090a0b0c0d0e0f")
	require.NoError(t, err)
	assert.Contains(t, first, "identifier: +16502530000")
	assert.Contains(t, first, "canonical: true")

	second, err := run(t, "", "derive", "--phone", "+1 650-253-0000", "--salt", "000102030405060708090a0b0c0d0e0f")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	rotated, err := run(t, "", "derive", "--phone", "+16502530000", "--salt", "ffeeddccbbaa99887766554433221100")
	require.NoError(t, err)
	assert.NotEqual(t, first, rotated)
}

func TestDeriveFollowsServerConfig(t *testing.T) {
	const saltHex = "000102030405060708090a0b0c0d0e0f"
	program := derive.ProgramFromName("congo-mainnet")
	t.Setenv("APP_ENV", "test")
	t.Setenv("PROGRAM_ID", program.String())
	t.Setenv("PROGRAM_NAME", "ignored-when-id-set")
	t.Setenv("DEFAULT_REGION", "CG")

	current, err := salt.ParseHex(saltHex)
	require.NoError(t, err)
	salts := salt.NewManager(salt.NewMemoryStore(), nil, logging.Discard())
	require.NoError(t, salts.Initialize(context.Background(), current))
	wallets, err := wallet.NewService(wallet.NewMemoryRepository(), derive.NewPDADeriver(program, logging.Discard()), salts, 8)
	require.NoError(t, err)
	want, err := wallets.Resolve("+242066123456")
	require.NoError(t, err)

	out, err := run(t, "", "derive", "--phone", "06 612 3456", "--salt", saltHex)
	require.NoError(t, err)
	assert.Contains(t, out, "identifier: +242066123456\n")
	assert.Contains(t, out, "address: "+want.Address+"\n")

	named, err := run(t, "", "derive", "--phone", "06 612 3456", "--salt", saltHex, "--program", "other")
	require.NoError(t, err)
	assert.NotContains(t, named, want.Address)
}

func TestDeriveAlias(t *testing.T) {
	out, err := run(t, "", "derive", "--alias", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "reservation: ")

	_, err = run(t, "", "derive", "--alias", strings.Repeat("a", 33))
	assert.Error(t, err)

	_, err = run(t, "", "derive")
	assert.Error(t, err)
}

func TestPINCheck(t *testing.T) {
	out, err := run(t, "482915\n", "pin", "check", "--policy", "numeric6")
	require.NoError(t, err)
	assert.Contains(t, out, "ok: satisfies numeric6")

	out, err = run(t, "111111\n", "pin", "check", "--policy", "numeric6")
	assert.ErrorIs(t, err, credential.ErrPolicyViolation)
	assert.Contains(t, out, "rejected: repeated_character")
	assert.NotContains(t, out, "111111")
}
