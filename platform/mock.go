package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"

	"github.com/ruteri/context-factory/interfaces"
)

// mockContext is the simulated state of one execution context.
type mockContext struct {
	balance     *big.Int
	code        []byte
	initialized bool
	initArgs    json.RawMessage
	credentials []interfaces.Credential
}

type pendingBatch struct {
	batch interfaces.Batch
	cont  interfaces.Continuation
}

// MockPlatform is a simple in-memory implementation of the Platform
// interface for testing without a platform node. It stores contexts and
// balances in memory and simulates atomic batch execution.
//
// Batches are queued on SubmitBatch and applied by SettleNext or SettleAll,
// so tests can observe the window between dispatch and settlement. With
// auto-settle enabled, batches settle inline during SubmitBatch.
type MockPlatform struct {
	mu         sync.Mutex
	contexts   map[interfaces.ContextName]*mockContext
	escrow     *big.Int
	pending    []pendingBatch
	failOn     map[interfaces.OpKind]bool
	autoSettle bool
}

// NewMockPlatform creates a mock platform with no contexts.
func NewMockPlatform() *MockPlatform {
	return &MockPlatform{
		contexts: make(map[interfaces.ContextName]*mockContext),
		escrow:   new(big.Int),
		failOn:   make(map[interfaces.OpKind]bool),
	}
}

// SetAutoSettle makes SubmitBatch settle batches inline instead of queueing
// them.
func (m *MockPlatform) SetAutoSettle(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoSettle = enabled
}

// FailOn forces every subsequent operation of the given kind to fail at
// apply time, so tests can exercise mid-batch faults.
func (m *MockPlatform) FailOn(kind interfaces.OpKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn[kind] = true
}

// Fund credits a context's balance, creating the context if needed. Used to
// seed the factory's own balance in tests and local runs.
func (m *MockPlatform) Fund(name interfaces.ContextName, amount interfaces.Funds) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cc := m.getOrCreate(name)
	cc.balance.Add(cc.balance, amount.Int())
}

// SubmitBatch implements interfaces.Platform.
func (m *MockPlatform) SubmitBatch(ctx context.Context, batch interfaces.Batch, cont interfaces.Continuation) (interfaces.BatchHandle, error) {
	m.mu.Lock()
	m.pending = append(m.pending, pendingBatch{batch: batch, cont: cont})
	auto := m.autoSettle
	m.mu.Unlock()

	if auto {
		m.SettleNext()
	}

	return interfaces.BatchHandle{ID: batch.ID, Target: batch.Target}, nil
}

// SettleNext applies the oldest pending batch and delivers its continuation.
// Returns false if no batch was pending.
func (m *MockPlatform) SettleNext() bool {
	m.mu.Lock()
	if len(m.pending) == 0 {
		m.mu.Unlock()
		return false
	}
	next := m.pending[0]
	m.pending = m.pending[1:]

	receipt := m.apply(next.batch)
	m.mu.Unlock()

	// Continuation runs outside the lock, exactly once per batch.
	next.cont(receipt)
	return true
}

// SettleAll settles every pending batch in submission order and returns how
// many were settled.
func (m *MockPlatform) SettleAll() int {
	n := 0
	for m.SettleNext() {
		n++
	}
	return n
}

// PendingBatches returns the number of dispatched but unsettled batches.
func (m *MockPlatform) PendingBatches() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// apply executes a batch atomically against the target context. On a step
// failure the target's state rolls back wholesale, but funds already debited
// from the source are moved to the platform escrow rather than returned.
// Callers hold the lock.
func (m *MockPlatform) apply(batch interfaces.Batch) interfaces.BatchReceipt {
	receipt := interfaces.BatchReceipt{BatchID: batch.ID, Target: batch.Target}

	_, targetExisted := m.contexts[batch.Target]
	staged := &mockContext{balance: new(big.Int)}
	if targetExisted {
		staged = m.cloneContext(batch.Target)
	}

	debited := new(big.Int)
	failed := false
	for _, op := range batch.Ops {
		step := interfaces.StepResult{Kind: op.Kind, OK: true}
		if err := m.applyOp(batch, op, staged, &targetExisted, debited); err != nil {
			step.OK = false
			step.Detail = err.Error()
			failed = true
		}
		receipt.Steps = append(receipt.Steps, step)
		if failed {
			break
		}
	}

	if source, ok := m.contexts[batch.Source]; ok {
		source.balance.Sub(source.balance, debited)
	}

	if failed {
		// Whole-batch rollback: the staged target state is discarded, so no
		// partial application is ever observable. Funds already debited from
		// the source do not flow back; they sit in the platform escrow until
		// an explicit recovery operation, which this simulator does not
		// offer.
		m.escrow.Add(m.escrow, debited)
		return receipt
	}

	m.contexts[batch.Target] = staged
	return receipt
}

// applyOp applies one operation to the staged target context.
func (m *MockPlatform) applyOp(batch interfaces.Batch, op interfaces.BatchOp, staged *mockContext, targetExists *bool, debited *big.Int) error {
	if m.failOn[op.Kind] {
		return fmt.Errorf("injected failure for %s", op.Kind)
	}

	switch op.Kind {
	case interfaces.OpCreateContext:
		if *targetExists {
			return fmt.Errorf("context %s already exists", batch.Target)
		}
		*targetExists = true
		return nil

	case interfaces.OpTransfer:
		if !*targetExists {
			return fmt.Errorf("context %s does not exist", batch.Target)
		}
		source, ok := m.contexts[batch.Source]
		if !ok {
			return fmt.Errorf("source context %s does not exist", batch.Source)
		}
		amount := op.Amount.Int()
		if source.balance.Cmp(new(big.Int).Add(debited, amount)) < 0 {
			return fmt.Errorf("source %s has insufficient balance", batch.Source)
		}
		debited.Add(debited, amount)
		staged.balance.Add(staged.balance, amount)
		return nil

	case interfaces.OpDeployPayload:
		if !*targetExists {
			return fmt.Errorf("context %s does not exist", batch.Target)
		}
		staged.code = append([]byte(nil), op.Code...)
		return nil

	case interfaces.OpInvokeInit:
		if !*targetExists {
			return fmt.Errorf("context %s does not exist", batch.Target)
		}
		if staged.code == nil {
			return fmt.Errorf("context %s has no code installed", batch.Target)
		}
		if op.Budget == 0 {
			return fmt.Errorf("init call has no execution budget")
		}
		staged.initialized = true
		staged.initArgs = op.Args
		return nil

	case interfaces.OpGrantCredential:
		if !*targetExists {
			return fmt.Errorf("context %s does not exist", batch.Target)
		}
		staged.credentials = append(staged.credentials, op.Key)
		return nil

	default:
		return fmt.Errorf("unsupported operation kind %d", op.Kind)
	}
}

// getOrCreate returns the context, creating an empty one if absent. Callers
// hold the lock.
func (m *MockPlatform) getOrCreate(name interfaces.ContextName) *mockContext {
	cc, ok := m.contexts[name]
	if !ok {
		cc = &mockContext{balance: new(big.Int)}
		m.contexts[name] = cc
	}
	return cc
}

func (m *MockPlatform) contains(name interfaces.ContextName) bool {
	_, ok := m.contexts[name]
	return ok
}

// cloneContext deep-copies a context's state for staged mutation. Callers
// hold the lock.
func (m *MockPlatform) cloneContext(name interfaces.ContextName) *mockContext {
	cc := m.contexts[name]
	clone := &mockContext{
		balance:     new(big.Int).Set(cc.balance),
		initialized: cc.initialized,
		initArgs:    append(json.RawMessage(nil), cc.initArgs...),
		credentials: append([]interfaces.Credential(nil), cc.credentials...),
	}
	if cc.code != nil {
		clone.code = append([]byte(nil), cc.code...)
	}
	return clone
}

// ContextExists reports whether a context exists on the simulated platform.
func (m *MockPlatform) ContextExists(name interfaces.ContextName) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.contains(name)
}

// Balance returns a context's balance, or zero if the context is absent.
func (m *MockPlatform) Balance(name interfaces.ContextName) interfaces.Funds {
	m.mu.Lock()
	defer m.mu.Unlock()

	cc, ok := m.contexts[name]
	if !ok {
		return interfaces.Funds{}
	}
	f, _ := interfaces.FundsFromString(cc.balance.String())
	return f
}

// Escrow returns the funds stranded by failed batches.
func (m *MockPlatform) Escrow() interfaces.Funds {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, _ := interfaces.FundsFromString(m.escrow.String())
	return f
}

// ContextCode returns the code installed in a context, or nil.
func (m *MockPlatform) ContextCode(name interfaces.ContextName) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	cc, ok := m.contexts[name]
	if !ok || cc.code == nil {
		return nil
	}
	return append([]byte(nil), cc.code...)
}

// ContextInitialized reports whether a context's init entry point ran.
func (m *MockPlatform) ContextInitialized(name interfaces.ContextName) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	cc, ok := m.contexts[name]
	return ok && cc.initialized
}

// ContextCredentials returns the credentials granted to a context.
func (m *MockPlatform) ContextCredentials(name interfaces.ContextName) []interfaces.Credential {
	m.mu.Lock()
	defer m.mu.Unlock()

	cc, ok := m.contexts[name]
	if !ok {
		return nil
	}
	return append([]interfaces.Credential(nil), cc.credentials...)
}
