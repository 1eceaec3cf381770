// Package cerrors defines the error kinds shared by every consensus-engine
// stage (spec section 7): EmptyCluster, InvalidAlignment, DegenerateCluster,
// InferenceFailed, WorkerShutdown, and ConfigurationError.
//
// Messages are composed with github.com/grailbio/base/errors.E, the same
// context-string-plus-wrapped-error idiom used throughout the teacher
// (markduplicates/metrics.go, encoding/fastq/downsample.go). Kind is a
// separate, domain-specific discriminator layered on top since these six
// kinds have no equivalent among grailbio/base/errors' own Kind values
// (Invalid, NotExist, Precondition, ...); callers that need to distinguish
// them use Is, not a type switch on the underlying grailbio error.
package cerrors

import (
	goerrors "errors"

	"github.com/grailbio/base/errors"
)

// Kind discriminates the handful of error conditions the consensus engine
// can raise, per spec section 7.
type Kind int

const (
	// Other is the zero value; it should not be constructed directly.
	Other Kind = iota
	// EmptyCluster is returned when MsaBuilder receives no reads.
	EmptyCluster
	// InvalidAlignment is returned when a ReadRecord's CIGAR is
	// inconsistent with its base string or reference span.
	InvalidAlignment
	// DegenerateCluster is returned when no read survives the MSA
	// post-build transforms.
	DegenerateCluster
	// InferenceFailed is returned when an Inferencer call errors. It fails
	// only the cluster whose call errored: DeepLearningConsensusWorker logs
	// it, emits no read for that cluster, and still emits the rest of the
	// batch.
	InferenceFailed
	// WorkerShutdown is returned by handle_work after shutdown() has run.
	WorkerShutdown
	// ConfigurationError is returned at worker/strategy construction when
	// a configuration knob is out of range.
	ConfigurationError
)

func (k Kind) String() string {
	switch k {
	case EmptyCluster:
		return "EmptyCluster"
	case InvalidAlignment:
		return "InvalidAlignment"
	case DegenerateCluster:
		return "DegenerateCluster"
	case InferenceFailed:
		return "InferenceFailed"
	case WorkerShutdown:
		return "WorkerShutdown"
	case ConfigurationError:
		return "ConfigurationError"
	default:
		return "Other"
	}
}

// Error pairs a Kind with the underlying grailbio/base/errors.Error built
// from the call site's context arguments.
type Error struct {
	Kind Kind
	err  error
}

func (e *Error) Error() string { return e.Kind.String() + ": " + e.err.Error() }
func (e *Error) Unwrap() error { return e.err }

// E builds an error of the given Kind, composing args the same way
// github.com/grailbio/base/errors.E does (context strings interleaved with
// an optional wrapped error).
func E(kind Kind, args ...interface{}) error {
	return &Error{Kind: kind, err: errors.E(args...)}
}

// Is reports whether err is (or wraps) a *Error of the given Kind.
func Is(kind Kind, err error) bool {
	var e *Error
	if goerrors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
