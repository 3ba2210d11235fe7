package factory

import (
	"github.com/ruteri/context-factory/interfaces"
	"github.com/ruteri/context-factory/metrics"
)

// Outcome carries the provisioning facts captured at dispatch time, before
// the batch runs. The reconciler consumes it exactly once after settlement
// and never re-reads live state.
type Outcome struct {
	ChildName     interfaces.ContextName
	Requester     interfaces.ContextName
	AttachedFunds interfaces.Funds
}

// Reconcile inspects a settled provisioning batch and decides final
// success or failure. It looks only at the result of the batch's first
// operation; if that result is retrievable, the whole creation chain
// completed and a success record is emitted. If the inspection faults, a
// failure record naming the child, the attached funds, and the requester is
// emitted instead.
//
// Reconcile reports the disposition as a boolean and never raises,
// converting platform-level batch faults into an observable record rather
// than a propagated failure.
//
// On the failure branch, the funds transferred into the child during the
// failed batch are NOT returned to the requester: the platform rolls the
// child back, and the amount stays in its escrow. Only this record names
// the amount and its intended owner; recovering the funds requires a
// further explicit operation outside this protocol.
func (f *Factory) Reconcile(outcome Outcome, receipt interfaces.BatchReceipt) bool {
	if _, err := receipt.First(); err != nil {
		metrics.ProvisionSettled.WithLabelValues("failure").Inc()
		f.log.Error("Provisioning failed",
			"err", err,
			"childName", outcome.ChildName.String(),
			"requester", outcome.Requester.String(),
			"attachedFunds", outcome.AttachedFunds.String())
		return false
	}

	metrics.ProvisionSettled.WithLabelValues("success").Inc()
	f.log.Info("Provisioning succeeded", "childName", outcome.ChildName.String())
	return true
}
