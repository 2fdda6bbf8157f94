package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"lottoclaim/domain/entities"

	"github.com/ethereum/go-ethereum/rpc"
)

// JSON-RPC error codes with a fixed meaning
const (
	rpcCodeExecutionReverted = 3
	rpcCodeUserRejected      = 4001
)

var (
	rejectedMarkers = []string{"user rejected", "user denied", "rejected by user", "request rejected"}
	revertMarkers   = []string{"execution reverted", "reverted", "revert"}
	knownTxMarkers  = []string{"already known", "known transaction"}
	networkMarkers  = []string{"connection refused", "connection reset", "no such host", "i/o timeout", "timeout", "eof", "dial tcp", "503", "502", "429"}
)

// ClassifySubmitError wraps a signer or RPC error with the matching taxonomy sentinel.
// Errors that fit no category are returned unchanged and classify as unknown.
func ClassifySubmitError(err error) error {
	if err == nil {
		return nil
	}
	if entities.FailureReasonOf(err) != entities.FailureReasonUnknown {
		return err
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case rpcCodeUserRejected:
			return fmt.Errorf("%w: %w", entities.ErrRejectedByUser, err)
		case rpcCodeExecutionReverted:
			return fmt.Errorf("%w: %w", entities.ErrRevertedOnChain, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", entities.ErrNetwork, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, rejectedMarkers):
		return fmt.Errorf("%w: %w", entities.ErrRejectedByUser, err)
	case containsAny(msg, revertMarkers):
		return fmt.Errorf("%w: %w", entities.ErrRevertedOnChain, err)
	case containsAny(msg, networkMarkers):
		return fmt.Errorf("%w: %w", entities.ErrNetwork, err)
	}
	return err
}

// ClassifyLedgerError classifies a failed read. Reverts keep their meaning; anything else is a network failure.
func ClassifyLedgerError(err error) error {
	if err == nil {
		return nil
	}
	classified := ClassifySubmitError(err)
	if errors.Is(classified, entities.ErrRevertedOnChain) || errors.Is(classified, entities.ErrNetwork) {
		return classified
	}
	return fmt.Errorf("%w: %w", entities.ErrNetwork, err)
}

// isNodeRejection reports whether the node answered a send with a JSON-RPC error,
// which means the transaction was not accepted
func isNodeRejection(err error) bool {
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr)
}

// isAlreadyKnown reports whether the node already holds the transaction
func isAlreadyKnown(err error) bool {
	return containsAny(strings.ToLower(err.Error()), knownTxMarkers)
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
