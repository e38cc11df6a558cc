// Package keyring defines the credential-storage contract bindings
// use to resolve a token handle into a bearer credential. The core is
// runnable against the file-backed implementation here; wiring a real
// OS keychain library is a named follow-up (see DESIGN.md).
package keyring

import "context"

// Store retrieves, sets, and deletes a credential by (service,
// account). service is the forge kind ("github", "linear"); account
// is the binding's token reference (Binding.TokenRef).
type Store interface {
	Get(ctx context.Context, service, account string) (string, error)
	Set(ctx context.Context, service, account, secret string) error
	Delete(ctx context.Context, service, account string) error
}

// notFoundError is returned by Get when no credential is stored for the
// given (service, account) pair.
type notFoundError struct{ service, account string }

func (e *notFoundError) Error() string {
	return "no credential for " + e.service + "/" + e.account
}

func newNotFound(service, account string) error {
	return &notFoundError{service: service, account: account}
}
