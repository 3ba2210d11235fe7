package platform

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/context-factory/interfaces"
)

var (
	factoryID = interfaces.ContextName("factory.test")
	childID   = interfaces.ContextName("sub.factory.test")
)

func provisioningBatch(t *testing.T, amount uint64, code []byte) interfaces.Batch {
	t.Helper()
	return interfaces.Batch{
		ID:     uuid.Must(uuid.NewRandom()),
		Source: factoryID,
		Target: childID,
		Ops: []interfaces.BatchOp{
			interfaces.CreateContextOp(),
			interfaces.TransferOp(interfaces.NewFunds(amount)),
			interfaces.DeployPayloadOp(code),
			interfaces.InvokeInitOp("init", json.RawMessage(`{"owner":"alice.test"}`), 10_000_000),
		},
	}
}

func TestMockPlatformSuccessfulBatch(t *testing.T) {
	m := NewMockPlatform()
	m.Fund(factoryID, interfaces.NewFunds(10000))

	code := []byte("payload code")
	var receipt interfaces.BatchReceipt
	calls := 0

	_, err := m.SubmitBatch(context.Background(), provisioningBatch(t, 10000, code), func(r interfaces.BatchReceipt) {
		receipt = r
		calls++
	})
	require.NoError(t, err)

	// Nothing observable before settlement.
	assert.False(t, m.ContextExists(childID))
	assert.Equal(t, 0, calls)
	assert.Equal(t, 1, m.PendingBatches())

	require.True(t, m.SettleNext())

	assert.Equal(t, 1, calls)
	assert.True(t, receipt.Succeeded())
	assert.True(t, m.ContextExists(childID))
	assert.Equal(t, code, m.ContextCode(childID))
	assert.True(t, m.ContextInitialized(childID))
	assert.Equal(t, 0, m.Balance(childID).Cmp(interfaces.NewFunds(10000)))
	assert.True(t, m.Balance(factoryID).IsZero())
}

func TestMockPlatformRollbackOnDeployFailure(t *testing.T) {
	m := NewMockPlatform()
	m.Fund(factoryID, interfaces.NewFunds(10000))
	m.FailOn(interfaces.OpDeployPayload)

	var receipt interfaces.BatchReceipt
	_, err := m.SubmitBatch(context.Background(), provisioningBatch(t, 10000, []byte("code")), func(r interfaces.BatchReceipt) {
		receipt = r
	})
	require.NoError(t, err)
	require.True(t, m.SettleNext())

	// Whole-batch rollback: no child context was persisted.
	assert.False(t, m.ContextExists(childID))
	assert.False(t, receipt.Succeeded())

	// Execution stopped at the failed step.
	require.Len(t, receipt.Steps, 3)
	assert.True(t, receipt.Steps[0].OK)
	assert.True(t, receipt.Steps[1].OK)
	assert.False(t, receipt.Steps[2].OK)

	// The first result is not retrievable from a rolled-back batch even
	// though the step itself ran before the fault.
	_, err = receipt.First()
	assert.ErrorIs(t, err, interfaces.ErrBatchFault)

	// The transferred funds did not return to the source; they are stranded
	// in the platform escrow.
	assert.True(t, m.Balance(factoryID).IsZero())
	assert.Equal(t, 0, m.Escrow().Cmp(interfaces.NewFunds(10000)))
}

func TestMockPlatformContinuationExactlyOnce(t *testing.T) {
	m := NewMockPlatform()
	m.Fund(factoryID, interfaces.NewFunds(100))

	calls := 0
	_, err := m.SubmitBatch(context.Background(), provisioningBatch(t, 100, []byte("code")), func(interfaces.BatchReceipt) {
		calls++
	})
	require.NoError(t, err)

	require.True(t, m.SettleNext())
	assert.False(t, m.SettleNext())
	assert.Equal(t, 0, m.SettleAll())
	assert.Equal(t, 1, calls)
}

func TestMockPlatformCreateExistingContext(t *testing.T) {
	m := NewMockPlatform()
	m.Fund(factoryID, interfaces.NewFunds(200))
	m.Fund(childID, interfaces.NewFunds(1)) // child already exists

	var receipt interfaces.BatchReceipt
	_, err := m.SubmitBatch(context.Background(), provisioningBatch(t, 100, []byte("code")), func(r interfaces.BatchReceipt) {
		receipt = r
	})
	require.NoError(t, err)
	require.True(t, m.SettleNext())

	require.NotEmpty(t, receipt.Steps)
	assert.False(t, receipt.Steps[0].OK)
	// First step failed, so nothing was debited.
	assert.Equal(t, 0, m.Balance(factoryID).Cmp(interfaces.NewFunds(200)))
	assert.True(t, m.Escrow().IsZero())
	// The pre-existing context's state is untouched.
	assert.Equal(t, 0, m.Balance(childID).Cmp(interfaces.NewFunds(1)))
}

func TestMockPlatformInsufficientSourceBalance(t *testing.T) {
	m := NewMockPlatform()
	m.Fund(factoryID, interfaces.NewFunds(50))

	var receipt interfaces.BatchReceipt
	_, err := m.SubmitBatch(context.Background(), provisioningBatch(t, 100, []byte("code")), func(r interfaces.BatchReceipt) {
		receipt = r
	})
	require.NoError(t, err)
	require.True(t, m.SettleNext())

	require.Len(t, receipt.Steps, 2)
	assert.True(t, receipt.Steps[0].OK)
	assert.False(t, receipt.Steps[1].OK)
	assert.False(t, m.ContextExists(childID))
	assert.Equal(t, 0, m.Balance(factoryID).Cmp(interfaces.NewFunds(50)))
}

func TestMockPlatformAutoSettle(t *testing.T) {
	m := NewMockPlatform()
	m.SetAutoSettle(true)
	m.Fund(factoryID, interfaces.NewFunds(100))

	calls := 0
	_, err := m.SubmitBatch(context.Background(), provisioningBatch(t, 100, []byte("code")), func(interfaces.BatchReceipt) {
		calls++
	})
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.True(t, m.ContextExists(childID))
}

func TestMockPlatformCredentialGrant(t *testing.T) {
	m := NewMockPlatform()
	m.Fund(factoryID, interfaces.NewFunds(100))

	cred, err := interfaces.NewCredentialFromHex("0f1e2d3c4b5a69788796a5b4c3d2e1f00f1e2d3c4b5a69788796a5b4c3d2e1f0")
	require.NoError(t, err)

	batch := provisioningBatch(t, 100, []byte("code"))
	batch.Ops = append(batch.Ops, interfaces.GrantCredentialOp(cred))

	_, err = m.SubmitBatch(context.Background(), batch, func(interfaces.BatchReceipt) {})
	require.NoError(t, err)
	require.True(t, m.SettleNext())

	creds := m.ContextCredentials(childID)
	require.Len(t, creds, 1)
	assert.Equal(t, cred.String(), creds[0].String())
}
