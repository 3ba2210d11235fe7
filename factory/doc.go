// Package factory implements the child-context provisioning protocol: the
// state machine that takes a request through name validation, storage
// deposit accounting, batch dispatch, and asynchronous outcome
// reconciliation.
//
// A request moves through Validating -> Accounting -> Dispatched
// synchronously. Both gates abort the whole request before anything
// observable happens. Dispatched means an ordered, all-or-nothing batch of
// platform operations has been handed over for asynchronous execution, with
// the reconciler registered as a continuation keyed to its settlement. The
// reconciler converts the settled batch into a structured success/failure
// outcome; it never raises and never dispatches further batches.
package factory
