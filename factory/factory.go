package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ruteri/context-factory/interfaces"
	"github.com/ruteri/context-factory/metrics"
	"github.com/ruteri/context-factory/payload"
)

// InitMethod is the entry point invoked on every freshly deployed child.
const InitMethod = "init"

// DefaultInitBudget bounds the execution resources of the child's init call
// so a misbehaving initializer cannot consume the factory's own budget.
const DefaultInitBudget = 10_000_000_000_000

// Config carries the factory's construction parameters.
type Config struct {
	// Identity is the factory's own context name. Children are provisioned
	// as direct sub-names of it.
	Identity interfaces.ContextName

	// Store holds the payload deployed into children.
	Store *payload.Store

	// Platform executes dispatched batches.
	Platform interfaces.Platform

	// Accountant prices the child's storage deposit. Defaults to
	// DefaultCostPerByte if nil.
	Accountant *Accountant

	// InitBudget is the execution-resource budget for the init call.
	// Defaults to DefaultInitBudget if zero.
	InitBudget uint64

	Log *slog.Logger
}

// Factory provisions child execution contexts: it installs the stored
// payload into a newly created direct child, funds it from the attached
// deposit, initializes it, and reconciles the asynchronous outcome.
type Factory struct {
	identity   interfaces.ContextName
	store      *payload.Store
	platform   interfaces.Platform
	accountant *Accountant
	initBudget uint64
	log        *slog.Logger
}

// New creates a factory from the given configuration.
func New(cfg *Config) (*Factory, error) {
	if err := cfg.Identity.Validate(); err != nil {
		return nil, fmt.Errorf("invalid factory identity: %w", err)
	}
	if cfg.Store == nil {
		return nil, errors.New("payload store is required")
	}
	if cfg.Platform == nil {
		return nil, errors.New("platform is required")
	}

	accountant := cfg.Accountant
	if accountant == nil {
		accountant = NewAccountant(interfaces.NewFunds(DefaultCostPerByte))
	}
	initBudget := cfg.InitBudget
	if initBudget == 0 {
		initBudget = DefaultInitBudget
	}
	log := cfg.Log
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Factory{
		identity:   cfg.Identity,
		store:      cfg.Store,
		platform:   cfg.Platform,
		accountant: accountant,
		initBudget: initBudget,
		log:        log,
	}, nil
}

// Identity returns the factory's own context name.
func (f *Factory) Identity() interfaces.ContextName {
	return f.identity
}

// Accountant returns the factory's deposit accountant.
func (f *Factory) Accountant() *Accountant {
	return f.accountant
}

// Store returns the factory's payload store.
func (f *Factory) Store() *payload.Store {
	return f.store
}

// Provision runs the synchronous half of the provisioning protocol and
// dispatches the asynchronous half.
//
// The two synchronous gates run in fixed order: child name derivation and
// validation first, deposit accounting second. A failure in either aborts
// the request with no resources committed and no batch scheduled. On
// success an ordered, all-or-nothing batch is handed to the platform:
// create the child, transfer the attached funds, install the current
// payload, invoke init with the caller's beneficiary parameters under a
// bounded budget, and optionally grant an independent control credential.
// The reconciler is registered as the batch's continuation with the child
// name, requester, and attached funds captured now, at dispatch time.
//
// Provision returns without waiting for the batch; the eventual outcome is
// reported by the reconciler.
func (f *Factory) Provision(ctx context.Context, req interfaces.ProvisionRequest) (interfaces.BatchHandle, error) {
	childName, err := interfaces.NewChildName(req.ShortName, f.identity)
	if err != nil {
		metrics.ProvisionRejected.WithLabelValues("invalid_name").Inc()
		f.log.Info("Rejected provisioning request", "err", err, "shortName", req.ShortName, "requester", req.Requester.String())
		return interfaces.BatchHandle{}, err
	}

	code := f.store.Bytes()
	required := f.accountant.MinimumDeposit(len(code))
	if err := f.accountant.ValidateDeposit(req.AttachedFunds, required); err != nil {
		metrics.ProvisionRejected.WithLabelValues("insufficient_funds").Inc()
		f.log.Info("Rejected provisioning request", "err", err, "childName", childName.String(), "requester", req.Requester.String())
		return interfaces.BatchHandle{}, err
	}

	ops := []interfaces.BatchOp{
		interfaces.CreateContextOp(),
		interfaces.TransferOp(req.AttachedFunds),
		interfaces.DeployPayloadOp(code),
		interfaces.InvokeInitOp(InitMethod, req.BeneficiaryParams, f.initBudget),
	}
	if req.Credential != nil {
		// Additive: the factory retains no residual control over the child
		// whether or not a credential is granted.
		ops = append(ops, interfaces.GrantCredentialOp(req.Credential))
	}

	batch := interfaces.Batch{
		ID:     uuid.Must(uuid.NewRandom()),
		Source: f.identity,
		Target: childName,
		Ops:    ops,
	}

	outcome := Outcome{
		ChildName:     childName,
		Requester:     req.Requester,
		AttachedFunds: req.AttachedFunds,
	}

	handle, err := f.platform.SubmitBatch(ctx, batch, func(receipt interfaces.BatchReceipt) {
		f.Reconcile(outcome, receipt)
	})
	if err != nil {
		metrics.ProvisionRejected.WithLabelValues("submit_failed").Inc()
		return interfaces.BatchHandle{}, fmt.Errorf("failed to submit provisioning batch: %w", err)
	}

	metrics.ProvisionDispatched.Inc()
	f.log.Info("Dispatched provisioning batch",
		"batchID", batch.ID.String(),
		"childName", childName.String(),
		"requester", req.Requester.String(),
		"attachedFunds", req.AttachedFunds.String(),
		"payloadSize", len(code),
		"credential", req.Credential != nil)

	return handle, nil
}
