package entities

import "errors"

// Error taxonomy for ledger reads and claim writes
var (
	// ErrNetwork means the ledger RPC was unreachable or timed out
	ErrNetwork = errors.New("ledger unreachable")
	// ErrRejectedByUser means the signer declined the request
	ErrRejectedByUser = errors.New("signer rejected request")
	// ErrRevertedOnChain means the operation was simulated or mined with a revert
	ErrRevertedOnChain = errors.New("reverted on chain")
	// ErrConfirmationTimeout means a write was submitted but its outcome is unknown
	ErrConfirmationTimeout = errors.New("confirmation timed out")
	// ErrSubmissionUncertain means a signed transaction may or may not have reached the ledger
	ErrSubmissionUncertain = errors.New("submission outcome unknown")
	// ErrInconsistentLog means purchase logs could not be aligned to ticket records
	ErrInconsistentLog = errors.New("inconsistent purchase log")

	ErrBatchTooLarge     = errors.New("claim batch exceeds maximum size")
	ErrInvalidTransition = errors.New("invalid claim batch transition")
	ErrNothingToClaim    = errors.New("nothing to claim")
	ErrAlreadyClaimed    = errors.New("round already claimed")
	ErrNoSigner          = errors.New("no signing key configured")
)

// FailureReason classifies why a claim batch did not confirm
type FailureReason string

const (
	FailureReasonNone           FailureReason = ""
	FailureReasonNetwork        FailureReason = "network"
	FailureReasonRejectedByUser FailureReason = "rejected_by_user"
	FailureReasonReverted       FailureReason = "reverted_on_chain"
	FailureReasonTimeout        FailureReason = "confirmation_timeout"
	FailureReasonUnknown        FailureReason = "unknown"
)

// FailureReasonOf maps an error onto the failure taxonomy
func FailureReasonOf(err error) FailureReason {
	switch {
	case err == nil:
		return FailureReasonNone
	case errors.Is(err, ErrRejectedByUser):
		return FailureReasonRejectedByUser
	case errors.Is(err, ErrRevertedOnChain):
		return FailureReasonReverted
	case errors.Is(err, ErrConfirmationTimeout), errors.Is(err, ErrSubmissionUncertain):
		return FailureReasonTimeout
	case errors.Is(err, ErrNetwork):
		return FailureReasonNetwork
	default:
		return FailureReasonUnknown
	}
}
