package interfaces

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChildName(t *testing.T) {
	parent := ContextName("factory.test")

	tests := []struct {
		name      string
		shortName string
		want      ContextName
		wantErr   bool
	}{
		{"simple", "sub", "sub.factory.test", false},
		{"with dash", "my-app", "my-app.factory.test", false},
		{"with underscore", "my_app", "my_app.factory.test", false},
		{"empty", "", "", true},
		{"contains separator", "a.b", "", true},
		{"uppercase", "Sub", "", true},
		{"invalid character", "sub!", "", true},
		{"leading dash", "-sub", "", true},
		{"trailing underscore", "sub_", "", true},
		{"too long", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewChildName(tt.shortName, parent)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidName)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.IsChildOf(parent))
		})
	}
}

func TestContextNameIsChildOf(t *testing.T) {
	parent := ContextName("factory.test")

	assert.True(t, ContextName("sub.factory.test").IsChildOf(parent))
	// Grandchildren are not direct children.
	assert.False(t, ContextName("a.b.factory.test").IsChildOf(parent))
	assert.False(t, ContextName("factory.test").IsChildOf(parent))
	assert.False(t, ContextName("sub.other.test").IsChildOf(parent))
}

func TestContextNameValidate(t *testing.T) {
	require.NoError(t, ContextName("factory.test").Validate())
	require.NoError(t, ContextName("a0").Validate())

	assert.Error(t, ContextName("a").Validate())
	assert.Error(t, ContextName("").Validate())
	assert.Error(t, ContextName("double..dot").Validate())
	assert.Error(t, ContextName(".leading").Validate())
	assert.Error(t, ContextName("trailing.").Validate())
}

func TestFundsParsing(t *testing.T) {
	f, err := FundsFromString("10000")
	require.NoError(t, err)
	assert.Equal(t, "10000", f.String())
	assert.Equal(t, 0, f.Cmp(NewFunds(10000)))

	// Amounts beyond uint64 must parse cleanly.
	big, err := FundsFromString("340282366920938463463374607431768211456")
	require.NoError(t, err)
	assert.Equal(t, 1, big.Cmp(f))

	_, err = FundsFromString("-5")
	assert.Error(t, err)
	_, err = FundsFromString("12a")
	assert.Error(t, err)

	assert.True(t, Funds{}.IsZero())
	assert.Equal(t, "0", Funds{}.String())
}

func TestFundsJSONRoundTrip(t *testing.T) {
	f := NewFunds(12345)
	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.Equal(t, `"12345"`, string(data))

	var back Funds
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, 0, f.Cmp(back))
}

func TestNewCredentialFromHex(t *testing.T) {
	hexKey := "0f1e2d3c4b5a69788796a5b4c3d2e1f00f1e2d3c4b5a69788796a5b4c3d2e1f0"

	cred, err := NewCredentialFromHex(hexKey)
	require.NoError(t, err)
	assert.Equal(t, hexKey, cred.String())

	// 0x prefix is accepted.
	_, err = NewCredentialFromHex("0x" + hexKey)
	require.NoError(t, err)

	_, err = NewCredentialFromHex("abcd")
	assert.Error(t, err)
	_, err = NewCredentialFromHex("zz1e2d3c4b5a69788796a5b4c3d2e1f00f1e2d3c4b5a69788796a5b4c3d2e1f0")
	assert.Error(t, err)
}

func TestBatchReceiptFirst(t *testing.T) {
	rcpt := BatchReceipt{Steps: []StepResult{
		{Kind: OpCreateContext, OK: true},
		{Kind: OpTransfer, OK: true},
	}}
	step, err := rcpt.First()
	require.NoError(t, err)
	assert.Equal(t, OpCreateContext, step.Kind)

	faulted := BatchReceipt{Steps: []StepResult{
		{Kind: OpCreateContext, OK: false, Detail: "context exists"},
	}}
	_, err = faulted.First()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBatchFault)

	// A failure later in the chain rolled the first step back too, so the
	// first result must not be retrievable.
	midFault := BatchReceipt{Steps: []StepResult{
		{Kind: OpCreateContext, OK: true},
		{Kind: OpTransfer, OK: true},
		{Kind: OpDeployPayload, OK: false, Detail: "injected failure"},
	}}
	_, err = midFault.First()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBatchFault)
	assert.Contains(t, err.Error(), "deploy_payload")

	empty := BatchReceipt{}
	_, err = empty.First()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBatchFault)
	assert.False(t, empty.Succeeded())
}
