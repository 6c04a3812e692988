// Package novaerr collects the sentinel errors shared across package
// boundaries and groups them into the kinds spec §7 names, so a caller
// at the outer edge (cmd/novanet-node, a client API) can classify an
// error without importing every internal package that might produce
// one. Grounded on the teacher's common/errors.go: a flat var block of
// errors.New sentinels, one per failure a caller needs to compare
// against with errors.Is. Internal packages keep their own local
// sentinels (chunkstore.ErrNotEnoughChunksRetrieved,
// selfencryption.ErrSpotPaddingNeeded, and so on) where the error only
// matters within that package's own tests and call sites; novaerr adds
// the kinds that cross package boundaries and need a propagation policy.
package novaerr

import "errors"

// Kind groups sentinel errors the way spec §7 does, so a caller can
// decide whether an error is retryable, terminal, or fatal without a
// type switch over every concrete error.
type Kind int

const (
	// KindValidation errors are returned to the caller and terminate
	// the current update; they are never swallowed.
	KindValidation Kind = iota
	// KindRouting errors mean the message has no resolvable destination.
	KindRouting
	// KindDelivery errors are recovered locally by AE bounce, reconnect,
	// or fan-out to the next ranked recipient; only exhaustion
	// propagates as FailedSend.
	KindDelivery
	// KindData errors are surfaced to the client so it can retry or
	// widen its search.
	KindData
	// KindMembership errors, in particular RemovedFromSection, are
	// fatal: the process publishes one MembershipEvent and unwinds.
	KindMembership
	// KindUnexpected covers responses that should be unreachable given
	// the current protocol state.
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindRouting:
		return "routing"
	case KindDelivery:
		return "delivery"
	case KindData:
		return "data"
	case KindMembership:
		return "membership"
	case KindUnexpected:
		return "unexpected"
	default:
		return "unknown"
	}
}

// Validation errors (spec §7): returned to the caller, never swallowed.
var (
	ErrUntrustedSAP          = errors.New("novaerr: untrusted section authority provider")
	ErrUntrustedChain        = errors.New("novaerr: untrusted section chain")
	ErrInvalidSignatureShare = errors.New("novaerr: invalid signature share")
	ErrInvalidPayload        = errors.New("novaerr: invalid payload")
)

// Routing errors (spec §7): the message has no resolvable destination.
var (
	ErrNoMatchingSection  = errors.New("novaerr: no matching section")
	ErrEmptyRecipientList = errors.New("novaerr: empty recipient list")
	ErrCannotRoute        = errors.New("novaerr: cannot route")
)

// Delivery errors (spec §7): recovered locally where possible; only
// exhaustion of retries surfaces one of these to the caller.
var (
	ErrConnectionClosed      = errors.New("novaerr: connection closed")
	ErrAddressNotReachable   = errors.New("novaerr: address not reachable")
	ErrRetryAttemptsExceeded = errors.New("novaerr: retry attempts exceeded")
)

// Data errors (spec §7).
var (
	ErrChunkNotFound = errors.New("novaerr: chunk not found")
	ErrDataExists    = errors.New("novaerr: data exists")
)

// Membership errors (spec §7). RemovedFromSection is fatal.
var (
	ErrRemovedFromSection = errors.New("novaerr: removed from section")
	ErrBootstrapFailed    = errors.New("novaerr: bootstrap failed")
)

// Unexpected errors (spec §7).
var ErrUnexpectedQueryResponse = errors.New("novaerr: unexpected query response")

// FailedSend wraps the peer a send ultimately failed against, produced
// once delivery's local recovery (AE bounce, reconnect, fan-out to the
// next ranked recipient) is exhausted.
type FailedSend struct {
	Peer string
	Err  error
}

func (e *FailedSend) Error() string {
	return "novaerr: failed send to " + e.Peer + ": " + e.Err.Error()
}

func (e *FailedSend) Unwrap() error { return e.Err }

// NotEnoughChunksRetrieved reports how many chunk holders replied
// against how many were expected, surfaced to a client so it can retry
// or widen its search.
type NotEnoughChunksRetrieved struct {
	Expected, Retrieved int
}

func (e *NotEnoughChunksRetrieved) Error() string {
	return "novaerr: not enough chunks retrieved"
}

// KindOf classifies err into one of the kinds above by walking its
// errors.Is chain against the sentinels declared here. It returns
// KindUnexpected, false when err does not match any known sentinel or
// wrapped type, signalling the caller should fall back to its own
// classification (e.g. a package-local sentinel novaerr does not know
// about).
func KindOf(err error) (Kind, bool) {
	switch {
	case errors.Is(err, ErrUntrustedSAP), errors.Is(err, ErrUntrustedChain),
		errors.Is(err, ErrInvalidSignatureShare), errors.Is(err, ErrInvalidPayload):
		return KindValidation, true
	case errors.Is(err, ErrNoMatchingSection), errors.Is(err, ErrEmptyRecipientList),
		errors.Is(err, ErrCannotRoute):
		return KindRouting, true
	case errors.Is(err, ErrConnectionClosed), errors.Is(err, ErrAddressNotReachable),
		errors.Is(err, ErrRetryAttemptsExceeded):
		return KindDelivery, true
	case errors.Is(err, ErrChunkNotFound), errors.Is(err, ErrDataExists):
		return KindData, true
	case errors.Is(err, ErrRemovedFromSection), errors.Is(err, ErrBootstrapFailed):
		return KindMembership, true
	case errors.Is(err, ErrUnexpectedQueryResponse):
		return KindUnexpected, true
	}
	var fs *FailedSend
	if errors.As(err, &fs) {
		return KindDelivery, true
	}
	var nec *NotEnoughChunksRetrieved
	if errors.As(err, &nec) {
		return KindData, true
	}
	return KindUnexpected, false
}
