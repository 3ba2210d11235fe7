// Package platform provides implementations of the interfaces.Platform
// contract: an in-memory simulator for tests and local development, and a
// JSON-RPC client for a remote platform node.
//
// Both implementations guarantee the batch contract: operations within a
// batch apply in order and atomically with respect to the target context,
// and the registered continuation is invoked exactly once after the batch
// settles, whether it succeeded or faulted.
package platform
