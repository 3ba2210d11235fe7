package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/context-factory/interfaces"
)

func TestMinimumDeposit(t *testing.T) {
	a := NewAccountant(interfaces.NewFunds(10))

	assert.Equal(t, "0", a.MinimumDeposit(0).String())
	assert.Equal(t, "10", a.MinimumDeposit(1).String())
	assert.Equal(t, "10000", a.MinimumDeposit(1000).String())

	// Monotonically non-decreasing in the payload size.
	prev := a.MinimumDeposit(0)
	for _, size := range []int{1, 2, 100, 1000, 1 << 20} {
		cur := a.MinimumDeposit(size)
		assert.LessOrEqual(t, prev.Cmp(cur), 0)
		prev = cur
	}
}

func TestMinimumDepositLargePayload(t *testing.T) {
	// Per-byte costs near uint64 bounds must not overflow.
	cost, err := interfaces.FundsFromString("18446744073709551615")
	require.NoError(t, err)
	a := NewAccountant(cost)

	deposit := a.MinimumDeposit(1000)
	assert.Equal(t, "18446744073709551615000", deposit.String())
}

func TestValidateDeposit(t *testing.T) {
	a := NewAccountant(interfaces.NewFunds(10))
	required := a.MinimumDeposit(1000)

	require.NoError(t, a.ValidateDeposit(interfaces.NewFunds(10000), required))
	require.NoError(t, a.ValidateDeposit(interfaces.NewFunds(20000), required))

	err := a.ValidateDeposit(interfaces.NewFunds(9999), required)
	require.Error(t, err)

	var insufficientErr *interfaces.InsufficientFundsError
	require.ErrorAs(t, err, &insufficientErr)
	assert.Equal(t, "10000", insufficientErr.Required.String())
	assert.Equal(t, "9999", insufficientErr.Attached.String())
}

func TestValidateDepositZeroRequired(t *testing.T) {
	a := NewAccountant(interfaces.NewFunds(10))

	// An empty payload requires no deposit; zero attached passes.
	require.NoError(t, a.ValidateDeposit(interfaces.Funds{}, a.MinimumDeposit(0)))
}
