// Package api defines the wire types of the context factory HTTP API and a
// client for it.
package api

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/ruteri/context-factory/interfaces"
)

// CallerIdentityHeader carries the caller's context name. Authenticating the
// header is the deployment's concern (mTLS, gateway signatures); the factory
// enforces its owner check against the value presented here.
const CallerIdentityHeader = "X-Caller-Identity"

// PayloadInfo describes the currently stored payload.
type PayloadInfo struct {
	Digest hexutil.Bytes `json:"digest"`
	Size   int           `json:"size"`
}

// InfoResponse describes the factory's public parameters.
type InfoResponse struct {
	FactoryID      string           `json:"factory_id"`
	PayloadSize    int              `json:"payload_size"`
	PayloadDigest  hexutil.Bytes    `json:"payload_digest"`
	CostPerByte    interfaces.Funds `json:"cost_per_byte"`
	MinimumDeposit interfaces.Funds `json:"minimum_deposit"`
}

// ProvisionRequest is the JSON body of a provisioning call. The payload
// bytes themselves are never part of this structure; the factory installs
// its own stored payload.
type ProvisionRequest struct {
	// BeneficiaryParams are forwarded verbatim to the child's init call.
	BeneficiaryParams json.RawMessage `json:"beneficiary_params"`

	// PublicKey optionally grants the child an independent full-control
	// credential, hex-encoded.
	PublicKey string `json:"public_key,omitempty"`

	// AttachedFunds must cover the child's storage deposit.
	AttachedFunds interfaces.Funds `json:"attached_funds"`
}

// ProvisionResponse acknowledges a dispatched provisioning batch. The batch
// outcome is asynchronous; this only confirms dispatch.
type ProvisionResponse struct {
	BatchID   string `json:"batch_id"`
	ChildName string `json:"child_name"`
}

// ErrorResponse is the JSON error body. Required is set for
// insufficient-funds rejections so callers learn the computed deposit.
type ErrorResponse struct {
	Error    string            `json:"error"`
	Required *interfaces.Funds `json:"required,omitempty"`
}
