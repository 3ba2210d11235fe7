package platform

import (
	"context"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/google/uuid"

	"github.com/ruteri/context-factory/interfaces"
)

// DefaultPollInterval is how often a dispatched batch is polled for
// settlement.
const DefaultPollInterval = 2 * time.Second

// batchStatus is the platform node's settlement report for one batch.
type batchStatus struct {
	Settled bool                    `json:"settled"`
	Steps   []interfaces.StepResult `json:"steps"`
}

// RPCPlatform talks to a remote platform node over JSON-RPC. Batches are
// submitted with factory_submitBatch and polled for settlement with
// factory_batchStatus; once a batch settles, the registered continuation is
// delivered exactly once from a background goroutine.
type RPCPlatform struct {
	client       *rpc.Client
	log          *slog.Logger
	pollInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// DialRPCPlatform connects to the platform node at the given URL.
func DialRPCPlatform(ctx context.Context, url string, log *slog.Logger) (*RPCPlatform, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}

	bg, cancel := context.WithCancel(context.Background())
	return &RPCPlatform{
		client:       client,
		log:          log,
		pollInterval: DefaultPollInterval,
		ctx:          bg,
		cancel:       cancel,
	}, nil
}

// SetPollInterval overrides the settlement polling interval.
func (p *RPCPlatform) SetPollInterval(d time.Duration) {
	p.pollInterval = d
}

// SubmitBatch implements interfaces.Platform. The submit call is
// synchronous; settlement polling and continuation delivery happen on a
// background goroutine tied to the platform's lifetime, not the request
// context, since a dispatched batch is not cancellable.
func (p *RPCPlatform) SubmitBatch(ctx context.Context, batch interfaces.Batch, cont interfaces.Continuation) (interfaces.BatchHandle, error) {
	if err := p.client.CallContext(ctx, nil, "factory_submitBatch", batch); err != nil {
		return interfaces.BatchHandle{}, err
	}

	go p.awaitSettlement(batch.ID, batch.Target, cont)

	return interfaces.BatchHandle{ID: batch.ID, Target: batch.Target}, nil
}

// awaitSettlement polls the node until the batch settles, then delivers the
// continuation once. If the platform client is closed first, the
// continuation is delivered with an empty receipt, which reads as a fault.
func (p *RPCPlatform) awaitSettlement(id uuid.UUID, target interfaces.ContextName, cont interfaces.Continuation) {
	receipt := interfaces.BatchReceipt{BatchID: id, Target: target}
	defer func() { cont(receipt) }()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			p.log.Error("Platform client closed before batch settled", "batchID", id.String())
			return
		case <-ticker.C:
		}

		var status batchStatus
		if err := p.client.CallContext(p.ctx, &status, "factory_batchStatus", id); err != nil {
			p.log.Debug("Batch status poll failed, retrying", "err", err, "batchID", id.String())
			continue
		}
		if status.Settled {
			receipt.Steps = status.Steps
			return
		}
	}
}

// Close stops settlement polling and releases the RPC connection. Batches
// already settled have had their continuations delivered; in-flight polls
// deliver a fault receipt.
func (p *RPCPlatform) Close() {
	p.cancel()
	p.client.Close()
}
