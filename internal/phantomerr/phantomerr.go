// Package phantomerr defines the error-kind taxonomy shared across the
// detection engine. Every signal and enrichment function returns a value
// plus a reasons list and never panics; these sentinels exist only for the
// handful of places (orchestrator, public ScorePackage) that must classify
// a failure rather than simply log and continue.
package phantomerr

import "github.com/pkg/errors"

// ErrNotFound means the registry returned a definitive 404 for a name.
var ErrNotFound = errors.New("not found in registry")

// ErrTimeout means a single call or the overall deadline was exceeded.
var ErrTimeout = errors.New("timed out")

// ErrParse means a registry or feed response could not be decoded.
var ErrParse = errors.New("parse error")

// ErrPolicy means the policy or corpus configuration was invalid. Fatal
// at start-up only.
var ErrPolicy = errors.New("invalid policy")

// ErrInternal is an uncategorised bug; the affected item is skipped.
var ErrInternal = errors.New("internal error")

// ErrScoringFailed is the single opaque error ScorePackage returns for any
// internal failure kind other than timeout.
var ErrScoringFailed = errors.New("scoring failed")
