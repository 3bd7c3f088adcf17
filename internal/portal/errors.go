// File: internal/portal/errors.go
package portal

import (
	"errors"
	"fmt"
)

// Sentinel errors for the portal error taxonomy. Callers classify failures
// with errors.Is; the wrapped message carries the human-readable detail.
var (
	// ErrConfiguration means no base URL or credentials are configured.
	// Fatal, never retried.
	ErrConfiguration = errors.New("portal is not configured")

	// ErrAuthentication means the login sequence failed: the login form was
	// missing, the portal rendered an explicit error, or the positive
	// logged-in marker never appeared.
	ErrAuthentication = errors.New("authentication failed")

	// ErrProtocolState means a view-state token, form id, or component id
	// could not be extracted at a step that structurally requires it. The
	// portal's markup has drifted beyond the extractor's heuristics.
	ErrProtocolState = errors.New("could not extract form state")

	// ErrNotFound means no slot matched the requested time/court. Fatal for
	// the booking, but the caller is expected to offer nearby alternatives.
	ErrNotFound = errors.New("no matching slot")

	// ErrTransport means a request returned a non-success HTTP status or
	// timed out.
	ErrTransport = errors.New("transport failure")
)

// StateError reports which protocol step broke and what was expected there.
// It wraps ErrProtocolState so errors.Is still classifies it.
type StateError struct {
	Step     string
	Expected string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("could not extract form state at step %q: expected %s", e.Step, e.Expected)
}

func (e *StateError) Unwrap() error { return ErrProtocolState }

// TransportError carries the HTTP status that aborted the sequence.
type TransportError struct {
	Step   string
	Status int
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("step %q failed with HTTP status %d", e.Step, e.Status)
}

func (e *TransportError) Unwrap() error { return ErrTransport }

// IsTransient reports whether the failure is worth retrying later: network
// trouble and markup-extraction misses can clear up on their own, while
// configuration and authentication failures cannot.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrProtocolState)
}
