package zapd

import "zapd/internal/core"

// Error kinds the engine surfaces to callers. Each is a distinct type
// implementing error; use errors.As to recover the structured fields (the
// offending column, table, or frame). They are declared once in
// internal/core (shared by every internal package that can raise them) and
// aliased here so external callers never need to import an internal
// package to catch a specific kind.
type (
	TableExistsError             = core.TableExistsError
	NoSuchTableError             = core.NoSuchTableError
	NoSuchColumnError            = core.NoSuchColumnError
	BadSchemaError               = core.BadSchemaError
	TypeMismatchError            = core.TypeMismatchError
	NotNullViolationError        = core.NotNullViolationError
	UniqueViolationError         = core.UniqueViolationError
	ForeignKeyViolationError     = core.ForeignKeyViolationError
	UnsupportedOperatorError     = core.UnsupportedOperatorError
	AggregateOverNonNumericError = core.AggregateOverNonNumericError
	IOError                      = core.IOError
	BadFormatError               = core.BadFormatError
	BadMagicError                = core.BadMagicError
	VersionMismatchError         = core.VersionMismatchError
	AuthenticationFailedError    = core.AuthenticationFailedError
	DecompressionFailedError     = core.DecompressionFailedError
	DeserializationFailedError   = core.DeserializationFailedError
	IntegrityFailureError        = core.IntegrityFailureError
	TransactionAbortedError      = core.TransactionAbortedError
)
