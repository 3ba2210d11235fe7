// Package interfaces defines the core types and contracts shared by the
// context factory components. It specifies the provisioning request model,
// the platform batch model, and the error taxonomy without any
// implementation details.
package interfaces
