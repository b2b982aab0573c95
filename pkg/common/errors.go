package common

import "errors"

var (
	// ErrTimeout reports that an external call ran out of time. It is
	// distinct from an empty result so callers can tell "service is
	// slow" apart from "nothing found".
	ErrTimeout = errors.New("external call timed out")

	// ErrNoResults reports that an initial search produced nothing.
	// Non-initial expansions treat zero neighbors as a terminal success
	// instead of returning this.
	ErrNoResults = errors.New("no results found")

	// ErrLegacyDocument reports a persisted graph document whose node
	// ids are not integers. Loading one would corrupt canonicalization,
	// so it is refused outright.
	ErrLegacyDocument = errors.New("incompatible legacy graph document")
)
