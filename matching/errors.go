package matching

import "github.com/pkg/errors"

// ErrorKind is the machine-readable tag surfaced on coordinated abort, per
// the error table: BallOverflow and soft BudgetExceeded recover locally,
// everything else is fatal by design.
type ErrorKind string

const (
	KindBallOverflow      ErrorKind = "BallOverflow"
	KindBudgetSoft        ErrorKind = "BudgetExceededSoft"
	KindBudgetHard        ErrorKind = "BudgetExceededHard"
	KindInvariantViolation ErrorKind = "InvariantViolation"
	KindSymmetricIdFailure ErrorKind = "SymmetricIdFailure"
	KindFabricError       ErrorKind = "FabricError"
	KindMalformedGraph    ErrorKind = "MalformedGraph"
	KindProgressStall     ErrorKind = "ProgressStall"
)

// EngineError is a typed, wrapped error carrying the kind a caller (or the
// CLI's exit-status mapping) branches on. Only BallOverflow and soft
// BudgetExceeded are ever handled internally; every other kind propagates
// out of Engine.Run and triggers a coordinated abort.
type EngineError struct {
	Kind  ErrorKind
	cause error
}

func (e *EngineError) Error() string {
	if e.cause != nil {
		return string(e.Kind) + ": " + e.cause.Error()
	}
	return string(e.Kind)
}

func (e *EngineError) Unwrap() error { return e.cause }

// Fatal reports whether this kind always triggers a coordinated abort.
func (e *EngineError) Fatal() bool {
	switch e.Kind {
	case KindBallOverflow, KindBudgetSoft:
		return false
	default:
		return true
	}
}

func newErr(kind ErrorKind, msg string) *EngineError {
	return &EngineError{Kind: kind, cause: errors.New(msg)}
}

func wrapErr(kind ErrorKind, cause error, msg string) *EngineError {
	return &EngineError{Kind: kind, cause: errors.Wrap(cause, msg)}
}
