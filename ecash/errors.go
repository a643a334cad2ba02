package ecash

import "fmt"

// ErrCode numbers each validation error the core can return, mirroring
// the teacher's CashuErrCode pattern so a caller can switch on a stable
// integer instead of comparing error values across a process boundary.
type ErrCode int

const (
	ZeroAmountCode ErrCode = iota + 10001
	UnmatchingAmountCode
	UnknownKeysetCode
	UnknownAmountForKeysetCode
	UnknownProofsCode
	UnmergeableProofsCode
	ProofsAlreadySpentCode
	QuoteAlreadyResolvedCode
	KeysetAlreadyExistsCode
)

// Error is a validation failure: something about the request itself was
// wrong, as opposed to a dependency (repository, crypto library) failing.
// It carries a stable Code so callers across a wire boundary don't have
// to string-match Detail.
type Error struct {
	Detail string
	Code   ErrCode
}

func (e Error) Error() string {
	return e.Detail
}

func BuildError(detail string, code ErrCode) Error {
	return Error{Detail: detail, Code: code}
}

var (
	ErrZeroAmount            = BuildError("amount cannot be zero", ZeroAmountCode)
	ErrUnmatchingAmount      = BuildError("sum of inputs does not match sum of outputs", UnmatchingAmountCode)
	ErrUnknownProofs         = BuildError("could not verify proofs", UnknownProofsCode)
	ErrUnmergeableProofs     = BuildError("inputs resolve to different replacement keysets", UnmergeableProofsCode)
	ErrProofsAlreadySpent    = BuildError("proofs already spent", ProofsAlreadySpentCode)
	ErrQuoteAlreadyResolved  = BuildError("quote has already been resolved", QuoteAlreadyResolvedCode)
	ErrKeysetAlreadyExists   = BuildError("keyset already exists", KeysetAlreadyExistsCode)
)

// ErrUnknownKeyset reports that a keyset id had no matching keyset.
func ErrUnknownKeyset(id fmt.Stringer) Error {
	return BuildError(fmt.Sprintf("unknown keyset: %s", id), UnknownKeysetCode)
}

// ErrUnknownAmountForKeyset reports that a keyset exists but does not
// carry a key for the requested amount.
func ErrUnknownAmountForKeyset(id fmt.Stringer, amount uint64) Error {
	return BuildError(fmt.Sprintf("keyset %s has no key for amount %d", id, amount), UnknownAmountForKeysetCode)
}
