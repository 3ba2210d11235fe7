package interfaces

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// OpKind discriminates batch operations.
type OpKind int

const (
	// OpCreateContext creates the child context.
	OpCreateContext OpKind = iota
	// OpTransfer moves funds from the batch source into the child.
	OpTransfer
	// OpDeployPayload installs executable code into the child.
	OpDeployPayload
	// OpInvokeInit calls the child's initialization entry point.
	OpInvokeInit
	// OpGrantCredential grants the child an independent control key.
	OpGrantCredential
)

// String returns the operation kind name.
func (k OpKind) String() string {
	switch k {
	case OpCreateContext:
		return "create_context"
	case OpTransfer:
		return "transfer"
	case OpDeployPayload:
		return "deploy_payload"
	case OpInvokeInit:
		return "invoke_init"
	case OpGrantCredential:
		return "grant_credential"
	default:
		return "unknown"
	}
}

// BatchOp is one platform operation within a batch. Only the fields relevant
// to its kind are set.
type BatchOp struct {
	Kind OpKind `json:"kind"`

	// Amount funds the transfer for OpTransfer.
	Amount Funds `json:"amount,omitzero"`

	// Code carries the payload bytes for OpDeployPayload.
	Code []byte `json:"code,omitempty"`

	// Method and Args describe the entry point call for OpInvokeInit.
	Method string          `json:"method,omitempty"`
	Args   json.RawMessage `json:"args,omitempty"`

	// Budget bounds the execution resources of OpInvokeInit so a
	// misbehaving initializer cannot drain the factory's own call budget.
	Budget uint64 `json:"budget,omitempty"`

	// Key is the credential for OpGrantCredential.
	Key Credential `json:"key,omitempty"`
}

// CreateContextOp builds a child-context creation step.
func CreateContextOp() BatchOp {
	return BatchOp{Kind: OpCreateContext}
}

// TransferOp builds a funding transfer step.
func TransferOp(amount Funds) BatchOp {
	return BatchOp{Kind: OpTransfer, Amount: amount}
}

// DeployPayloadOp builds a code installation step.
func DeployPayloadOp(code []byte) BatchOp {
	return BatchOp{Kind: OpDeployPayload, Code: code}
}

// InvokeInitOp builds an initialization call step with a bounded execution
// budget and zero attached currency.
func InvokeInitOp(method string, args json.RawMessage, budget uint64) BatchOp {
	return BatchOp{Kind: OpInvokeInit, Method: method, Args: args, Budget: budget}
}

// GrantCredentialOp builds a credential grant step.
func GrantCredentialOp(key Credential) BatchOp {
	return BatchOp{Kind: OpGrantCredential, Key: key}
}

// Batch is an ordered, all-or-nothing sequence of operations against a single
// target context. Sub-operations execute in order; the platform rolls the
// whole batch back if any step fails, as seen by the target context.
type Batch struct {
	// ID correlates the batch with its settlement receipt.
	ID uuid.UUID `json:"id"`

	// Source is the context whose balance funds transfer steps, i.e. the
	// factory itself.
	Source ContextName `json:"source"`

	// Target is the context all operations apply to.
	Target ContextName `json:"target"`

	Ops []BatchOp `json:"ops"`
}

// BatchHandle is returned to the caller at dispatch time, before the batch
// settles.
type BatchHandle struct {
	ID     uuid.UUID   `json:"id"`
	Target ContextName `json:"target"`
}

// StepResult records the outcome of one batch operation.
type StepResult struct {
	Kind   OpKind `json:"kind"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// BatchReceipt describes a settled batch. It is handed to the registered
// continuation exactly once.
type BatchReceipt struct {
	BatchID uuid.UUID    `json:"batch_id"`
	Target  ContextName  `json:"target"`
	Steps   []StepResult `json:"steps"`
}

// First inspects the settled batch through its leading operation. Because
// the batch is all-or-nothing, the first result is only retrievable when the
// whole chain completed: a failure at any step rolled every step back, so
// First returns an error wrapping ErrBatchFault naming the step that
// faulted. This is the reconciler's only inspection primitive; it never
// re-derives platform state.
func (r BatchReceipt) First() (StepResult, error) {
	if len(r.Steps) == 0 {
		return StepResult{}, fmt.Errorf("%w: no step results in receipt", ErrBatchFault)
	}
	for _, step := range r.Steps {
		if !step.OK {
			return StepResult{}, fmt.Errorf("%w: %s failed: %s", ErrBatchFault, step.Kind, step.Detail)
		}
	}
	return r.Steps[0], nil
}

// Succeeded reports whether every step of the batch completed.
func (r BatchReceipt) Succeeded() bool {
	if len(r.Steps) == 0 {
		return false
	}
	for _, s := range r.Steps {
		if !s.OK {
			return false
		}
	}
	return true
}

// Continuation runs strictly after a batch settles, receiving its receipt.
// Implementations must invoke it exactly once per batch, for success and
// fault alike.
type Continuation func(BatchReceipt)

// Platform is the execution environment the factory provisions children on.
// SubmitBatch hands an ordered batch over for asynchronous execution and
// registers a continuation keyed to its settlement; it must not block
// waiting for the batch. A dispatched batch is not cancellable.
type Platform interface {
	SubmitBatch(ctx context.Context, batch Batch, cont Continuation) (BatchHandle, error)
}

// PayloadBackend persists the factory's payload blob across restarts.
// Load returns ErrPayloadNotFound when nothing has been saved yet.
type PayloadBackend interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, payload []byte) error
	LocationURI() string
}
