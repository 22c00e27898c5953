package mdib

import (
	"fmt"

	"github.com/sdcgo/sdc-core/internal/model"
	"github.com/sdcgo/sdc-core/internal/soap"
)

// ErrorKind is the closed set of transaction-rejection reasons from
// spec.md §7.
type ErrorKind string

const (
	UnknownHandle      ErrorKind = "UnknownHandle"
	HandleCollision    ErrorKind = "HandleCollision"
	TypeMismatch       ErrorKind = "TypeMismatch"
	InvariantViolation ErrorKind = "InvariantViolation"
)

// TransactionError is returned by Tx.Commit (and by the typed add/update/
// remove calls that can fail eagerly) when a mutation cannot be applied.
// It is never returned for reasons outside this closed set.
type TransactionError struct {
	Kind    ErrorKind
	Handle  model.Handle
	Message string
}

func (e *TransactionError) Error() string {
	if e.Handle != "" {
		return fmt.Sprintf("mdib: %s: %s (%s)", e.Kind, e.Message, e.Handle)
	}
	return fmt.Sprintf("mdib: %s: %s", e.Kind, e.Message)
}

func newErr(kind ErrorKind, h model.Handle, msg string) *TransactionError {
	return &TransactionError{Kind: kind, Handle: h, Message: msg}
}

// FaultCode and FaultSubcode let soap.ToFault map a TransactionError onto
// its SOAP fault without a type-switch special case.
func (e *TransactionError) FaultCode() soap.FaultCode    { return soap.CodeSender }
func (e *TransactionError) FaultSubcode() soap.Subcode { return soap.SubTransactionError }

// FaultCode and FaultSubcode for VersionGapError.
func (e *VersionGapError) FaultCode() soap.FaultCode    { return soap.CodeSender }
func (e *VersionGapError) FaultSubcode() soap.Subcode { return soap.SubVersionGap }

// VersionGapError describes a report whose MdibVersion does not
// immediately follow the last known version. Package consumer does not
// return it: on a gap its mirror is rebuilt via Bootstrap instead. It
// lives here because it shares the same versioning vocabulary as
// TransactionError.
type VersionGapError struct {
	Expected uint64
	Got      uint64
}

func (e *VersionGapError) Error() string {
	return fmt.Sprintf("mdib: version gap: expected %d, got %d", e.Expected, e.Got)
}
