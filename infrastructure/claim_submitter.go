package infrastructure

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"time"

	"lottoclaim/domain/entities"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	log "github.com/sirupsen/logrus"
)

const (
	defaultConfirmTimeout    = 2 * time.Minute
	defaultConfirmRetryDelay = 2 * time.Second
	defaultConfirmRetries    = 5
)

// ClaimBackend is the subset of ethclient.Client used to send and confirm claims
type ClaimBackend interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// ClaimSubmitterConfig bounds confirmation waiting
type ClaimSubmitterConfig struct {
	ConfirmTimeout time.Duration
	// RetryDelay is the receipt polling interval
	RetryDelay time.Duration
	// Retries caps consecutive receipt lookup errors before giving up
	Retries int
}

// EthereumClaimSubmitter signs claims with a local key and sends them to the lottery contract
type EthereumClaimSubmitter struct {
	backend  ClaimBackend
	contract common.Address
	abi      abi.ABI
	key      *ecdsa.PrivateKey
	chainID  *big.Int
	sender   common.Address
	cfg      ClaimSubmitterConfig
}

// NewEthereumClaimSubmitter creates a submitter for contract on chainID
func NewEthereumClaimSubmitter(backend ClaimBackend, contract common.Address, key *ecdsa.PrivateKey, chainID *big.Int, cfg ClaimSubmitterConfig) (*EthereumClaimSubmitter, error) {
	if key == nil {
		return nil, entities.ErrNoSigner
	}
	parsed, err := LotteryABI()
	if err != nil {
		return nil, err
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = defaultConfirmTimeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultConfirmRetryDelay
	}
	if cfg.Retries <= 0 {
		cfg.Retries = defaultConfirmRetries
	}
	return &EthereumClaimSubmitter{
		backend:  backend,
		contract: contract,
		abi:      parsed,
		key:      key,
		chainID:  chainID,
		sender:   crypto.PubkeyToAddress(key.PublicKey),
		cfg:      cfg,
	}, nil
}

func (s *EthereumClaimSubmitter) Sender() common.Address {
	return s.sender
}

// SimulateClaim runs the claim as an eth_call from the sender
func (s *EthereumClaimSubmitter) SimulateClaim(ctx context.Context, roundIDs []uint64) error {
	method, args, err := claimCall(roundIDs)
	if err != nil {
		return err
	}
	data, err := s.abi.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("failed to pack %s: %w", method, err)
	}
	if _, err := s.backend.CallContract(ctx, ethereum.CallMsg{From: s.sender, To: &s.contract, Data: data}, nil); err != nil {
		return fmt.Errorf("preflight %s: %w", method, ClassifySubmitError(err))
	}
	return nil
}

// SubmitClaim signs the claim transaction and broadcasts it.
// The hash is fixed before broadcast, so a send whose outcome is unknown still returns it
// together with ErrSubmissionUncertain.
func (s *EthereumClaimSubmitter) SubmitClaim(ctx context.Context, roundIDs []uint64) (common.Hash, error) {
	method, args, err := claimCall(roundIDs)
	if err != nil {
		return common.Hash{}, err
	}
	opts, err := bind.NewKeyedTransactorWithChainID(s.key, s.chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to create transactor: %w", err)
	}
	opts.Context = ctx
	opts.NoSend = true

	contract := bind.NewBoundContract(s.contract, s.abi, s.backend, s.backend, s.backend)
	tx, err := contract.Transact(opts, method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign %s: %w", method, ClassifySubmitError(err))
	}

	fields := log.Fields{
		"tx_hash": tx.Hash().Hex(),
		"method":  method,
		"rounds":  len(roundIDs),
		"nonce":   tx.Nonce(),
	}
	if err := s.backend.SendTransaction(ctx, tx); err != nil {
		switch {
		case isAlreadyKnown(err):
			log.WithFields(fields).Info("Claim transaction already in mempool")
			return tx.Hash(), nil
		case isNodeRejection(err):
			return common.Hash{}, fmt.Errorf("send %s: %w", method, ClassifySubmitError(err))
		}
		log.WithError(err).WithFields(fields).Warn("Claim transaction broadcast outcome unknown")
		return tx.Hash(), fmt.Errorf("%w: send %s: %w", entities.ErrSubmissionUncertain, method, ClassifySubmitError(err))
	}

	log.WithFields(fields).Info("Claim transaction sent")
	return tx.Hash(), nil
}

// ReceiptStatus looks the receipt up once. A transaction that is not mined yet returns nil.
func (s *EthereumClaimSubmitter) ReceiptStatus(ctx context.Context, txRef common.Hash) (*entities.ClaimConfirmation, error) {
	receipt, err := s.backend.TransactionReceipt(ctx, txRef)
	switch {
	case errors.Is(err, ethereum.NotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to get receipt for %s: %w", txRef.Hex(), ClassifyLedgerError(err))
	case receipt == nil:
		return nil, nil
	}
	return confirmationOf(txRef, receipt), nil
}

// AwaitConfirmation polls for the receipt until the confirm timeout.
// It never resubmits; an unknown outcome is reported as ErrConfirmationTimeout.
func (s *EthereumClaimSubmitter) AwaitConfirmation(ctx context.Context, txRef common.Hash) (*entities.ClaimConfirmation, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(s.cfg.RetryDelay)
	defer ticker.Stop()

	failures := 0
	for {
		receipt, err := s.backend.TransactionReceipt(waitCtx, txRef)
		switch {
		case err == nil && receipt != nil:
			return confirmationOf(txRef, receipt), nil
		case err != nil && !errors.Is(err, ethereum.NotFound):
			failures++
			log.WithError(err).WithFields(log.Fields{
				"tx_hash":  txRef.Hex(),
				"failures": failures,
			}).Debug("Receipt lookup failed")
			if failures >= s.cfg.Retries {
				return nil, fmt.Errorf("%w: tx %s after %d receipt lookup errors: %w", entities.ErrConfirmationTimeout, txRef.Hex(), failures, err)
			}
		default:
			failures = 0
		}

		select {
		case <-waitCtx.Done():
			return nil, fmt.Errorf("%w: tx %s not mined within %s", entities.ErrConfirmationTimeout, txRef.Hex(), s.cfg.ConfirmTimeout)
		case <-ticker.C:
		}
	}
}

func confirmationOf(txRef common.Hash, receipt *types.Receipt) *entities.ClaimConfirmation {
	conf := &entities.ClaimConfirmation{
		TxHash:    txRef,
		GasUsed:   receipt.GasUsed,
		Succeeded: receipt.Status == types.ReceiptStatusSuccessful,
	}
	if receipt.BlockNumber != nil {
		conf.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return conf
}

// claimCall picks claimWinnings for one round and claimWinningsMultiple otherwise
func claimCall(roundIDs []uint64) (string, []interface{}, error) {
	switch len(roundIDs) {
	case 0:
		return "", nil, entities.ErrNothingToClaim
	case 1:
		return "claimWinnings", []interface{}{new(big.Int).SetUint64(roundIDs[0])}, nil
	}
	if len(roundIDs) > entities.MaxClaimBatchSize {
		return "", nil, fmt.Errorf("%w: %d rounds", entities.ErrBatchTooLarge, len(roundIDs))
	}
	ids := make([]*big.Int, len(roundIDs))
	for i, id := range roundIDs {
		ids[i] = new(big.Int).SetUint64(id)
	}
	return "claimWinningsMultiple", []interface{}{ids}, nil
}
