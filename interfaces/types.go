package interfaces

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

// Context name limits imposed by the platform naming grammar.
const (
	MinNameLength = 2
	MaxNameLength = 64

	// NameSeparator joins a short name to its parent to form the
	// fully-qualified name of a direct child context.
	NameSeparator = "."
)

// namePartRegex matches a single dot-separated name part: lowercase
// alphanumeric with interior dashes or underscores.
var namePartRegex = regexp.MustCompile(`^([a-z0-9]+[-_])*[a-z0-9]+$`)

// ContextName identifies an isolated execution context on the platform.
// Contexts form a hierarchy: "sub.factory.test" is a direct child of
// "factory.test".
type ContextName string

// NewContextName creates a context name, validating it against the platform
// naming grammar.
func NewContextName(name string) (ContextName, error) {
	cn := ContextName(name)
	if err := cn.Validate(); err != nil {
		return "", err
	}
	return cn, nil
}

// NewChildName derives the fully-qualified name of a prospective direct
// child of parent from a short name. The short name must be a single name
// part; anything containing the separator, empty, or failing the grammar is
// rejected with ErrInvalidName. This is the first gate of provisioning and
// must run before any funds are accounted.
func NewChildName(shortName string, parent ContextName) (ContextName, error) {
	if shortName == "" {
		return "", fmt.Errorf("%w: empty short name", ErrInvalidName)
	}
	if strings.Contains(shortName, NameSeparator) {
		return "", fmt.Errorf("%w: short name %q must not contain %q", ErrInvalidName, shortName, NameSeparator)
	}
	if !namePartRegex.MatchString(shortName) {
		return "", fmt.Errorf("%w: short name %q has invalid characters", ErrInvalidName, shortName)
	}

	child := ContextName(shortName + NameSeparator + string(parent))
	if err := child.Validate(); err != nil {
		return "", err
	}
	if !child.IsChildOf(parent) {
		return "", fmt.Errorf("%w: %q is not a direct child of %q", ErrInvalidName, child, parent)
	}
	return child, nil
}

// Validate checks the name against the platform grammar: bounded length and
// dot-separated lowercase alphanumeric parts.
func (n ContextName) Validate() error {
	if len(n) < MinNameLength || len(n) > MaxNameLength {
		return fmt.Errorf("%w: %q length %d outside [%d, %d]", ErrInvalidName, n, len(n), MinNameLength, MaxNameLength)
	}
	for _, part := range strings.Split(string(n), NameSeparator) {
		if !namePartRegex.MatchString(part) {
			return fmt.Errorf("%w: %q has invalid part %q", ErrInvalidName, n, part)
		}
	}
	return nil
}

// IsChildOf reports whether n is a direct child of parent.
func (n ContextName) IsChildOf(parent ContextName) bool {
	suffix := NameSeparator + string(parent)
	if !strings.HasSuffix(string(n), suffix) {
		return false
	}
	short := strings.TrimSuffix(string(n), suffix)
	return short != "" && !strings.Contains(short, NameSeparator)
}

// String returns the name as a plain string.
func (n ContextName) String() string {
	return string(n)
}

// Funds is an amount of platform currency in atomic units. Amounts are
// arbitrary-precision and never negative.
type Funds struct {
	v *big.Int
}

// NewFunds creates a funds amount from a uint64.
func NewFunds(amount uint64) Funds {
	return Funds{v: new(big.Int).SetUint64(amount)}
}

// FundsFromString parses a non-negative base-10 amount of atomic units.
func FundsFromString(s string) (Funds, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Funds{}, fmt.Errorf("invalid funds amount %q", s)
	}
	if v.Sign() < 0 {
		return Funds{}, fmt.Errorf("negative funds amount %q", s)
	}
	return Funds{v: v}, nil
}

// MulFunds returns a*b for a scalar byte count, used for storage deposit
// computation.
func MulFunds(a Funds, b int64) Funds {
	return Funds{v: new(big.Int).Mul(a.Int(), big.NewInt(b))}
}

// Int returns a copy of the underlying integer. A zero-value Funds is zero.
func (f Funds) Int() *big.Int {
	if f.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(f.v)
}

// Cmp compares f and other, returning -1, 0 or 1.
func (f Funds) Cmp(other Funds) int {
	return f.Int().Cmp(other.Int())
}

// IsZero reports whether the amount is zero.
func (f Funds) IsZero() bool {
	return f.v == nil || f.v.Sign() == 0
}

// String returns the base-10 representation.
func (f Funds) String() string {
	return f.Int().String()
}

// MarshalJSON encodes the amount as a decimal string to avoid precision loss
// in JSON numbers.
func (f Funds) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

// UnmarshalJSON decodes a decimal string amount.
func (f *Funds) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := FundsFromString(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// Credential is a public key granting independent full control over a
// context, separate from whatever created it.
type Credential ed25519.PublicKey

// NewCredentialFromHex parses a hex-encoded 32-byte ed25519 public key.
func NewCredentialFromHex(s string) (Credential, error) {
	clean := strings.TrimPrefix(s, "0x")
	raw, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid credential hex: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid credential length: must be %d bytes", ed25519.PublicKeySize)
	}
	return Credential(raw), nil
}

// String returns the hex representation of the credential.
func (c Credential) String() string {
	return hex.EncodeToString(c)
}

// ProvisionRequest carries one child provisioning invocation. It is built at
// request entry, consumed synchronously by the orchestrator, and never
// persisted.
type ProvisionRequest struct {
	// ShortName is the requested child name without the parent suffix.
	ShortName string

	// BeneficiaryParams are opaque initialization arguments forwarded
	// verbatim to the child's init entry point.
	BeneficiaryParams json.RawMessage

	// Credential optionally grants the child an independent full-control
	// key. Nil means no credential step is dispatched.
	Credential Credential

	// AttachedFunds is the amount the requester attached to cover the
	// child's storage deposit.
	AttachedFunds Funds

	// Requester identifies the caller, recorded for outcome reconciliation.
	Requester ContextName
}
