package factory

import (
	"github.com/ruteri/context-factory/interfaces"
)

// DefaultCostPerByte is the protocol-level long-term storage cost of one
// byte of installed code in a new context, in atomic currency units.
const DefaultCostPerByte = 10

// Accountant computes and validates the funding a provisioning request must
// attach to cover the child's code storage deposit.
type Accountant struct {
	costPerByte interfaces.Funds
}

// NewAccountant creates an accountant with the given per-byte storage cost.
func NewAccountant(costPerByte interfaces.Funds) *Accountant {
	return &Accountant{costPerByte: costPerByte}
}

// CostPerByte returns the configured per-byte storage cost.
func (a *Accountant) CostPerByte() interfaces.Funds {
	return a.costPerByte
}

// MinimumDeposit returns costPerByte * payloadSizeBytes. Pure function,
// monotonically non-decreasing in the payload size. A zero-length payload
// requires no deposit.
func (a *Accountant) MinimumDeposit(payloadSizeBytes int) interfaces.Funds {
	return interfaces.MulFunds(a.costPerByte, int64(payloadSizeBytes))
}

// ValidateDeposit fails with an InsufficientFundsError carrying the computed
// requirement if attached does not cover required. It must run after name
// validation and before any batch is dispatched, so a failing request never
// reaches the platform's irreversible context-creation step.
func (a *Accountant) ValidateDeposit(attached, required interfaces.Funds) error {
	if attached.Cmp(required) < 0 {
		return &interfaces.InsufficientFundsError{Required: required, Attached: attached}
	}
	return nil
}
