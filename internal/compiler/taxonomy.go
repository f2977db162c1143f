package compiler

// ErrorKind identifies one member of the closed runtime error taxonomy.
// Every compiled procedure surfaces failures as one of these codes in the
// envelope's error_code field; only error_code is a stable contract,
// error_message is human-readable elaboration.
type ErrorKind string

const (
	// ErrValidationFailed: a Validate predicate was false. The envelope
	// carries the caller-supplied code instead of the kind name.
	ErrValidationFailed ErrorKind = "validation_failed"

	// ErrNotFound: identity resolution failed, or a mutating statement's
	// row-matching condition affected zero rows.
	ErrNotFound ErrorKind = "not_found"

	// ErrConstraintViolation: a storage-level uniqueness/foreign-key/check
	// failure surfaced from Insert or Update.
	ErrConstraintViolation ErrorKind = "constraint_violation"

	// ErrSequenceLimitExceeded: human-identifier collision count exceeded
	// the configured maximum.
	ErrSequenceLimitExceeded ErrorKind = "sequence_limit_exceeded"

	// ErrPermissionDenied is reserved for future authorization integration.
	// No current step emits it, but it is part of the closed set so
	// consumers can handle it uniformly.
	ErrPermissionDenied ErrorKind = "permission_denied"

	// ErrInternal: any failure not classifiable above.
	ErrInternal ErrorKind = "internal_error"
)

// Kinds lists the closed taxonomy in stable order.
var Kinds = []ErrorKind{
	ErrValidationFailed,
	ErrNotFound,
	ErrConstraintViolation,
	ErrSequenceLimitExceeded,
	ErrPermissionDenied,
	ErrInternal,
}

// Reserved SQLSTATEs used by generated code to carry taxonomy kinds through
// RAISE EXCEPTION. The exception MESSAGE always carries the concrete
// error_code, DETAIL the human-readable message.
const (
	sqlstateValidationFailed = "SF400"
	sqlstatePermissionDenied = "SF403"
	sqlstateNotFound         = "SF404"
	sqlstateSequenceLimit    = "SF423"

	// sqlstateCallFailed propagates a callee's error_code as-is when a
	// Call step's callee returns an error envelope.
	sqlstateCallFailed = "SF460"
)

// SQLState returns the reserved SQLSTATE for kinds that generated code
// raises explicitly. Constraint violations use the native PostgreSQL error
// classes and internal_error is the WHEN OTHERS fallback, so neither has a
// reserved state; both return "".
func (k ErrorKind) SQLState() string {
	switch k {
	case ErrValidationFailed:
		return sqlstateValidationFailed
	case ErrPermissionDenied:
		return sqlstatePermissionDenied
	case ErrNotFound:
		return sqlstateNotFound
	case ErrSequenceLimitExceeded:
		return sqlstateSequenceLimit
	default:
		return ""
	}
}
