package infrastructure

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"lottoclaim/domain/entities"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	log "github.com/sirupsen/logrus"
)

// LedgerBackend is the subset of ethclient.Client used for reads
type LedgerBackend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// EthereumLedger implements LedgerLogSource and LedgerReader over JSON-RPC.
// Logs are read from every configured contract; contract calls go to the first.
type EthereumLedger struct {
	backend   LedgerBackend
	contracts []common.Address
	abi       abi.ABI
}

// NewEthereumLedger creates a ledger reader for the given lottery contracts
func NewEthereumLedger(backend LedgerBackend, contracts []common.Address) (*EthereumLedger, error) {
	if len(contracts) == 0 {
		return nil, fmt.Errorf("at least one lottery contract address is required")
	}
	parsed, err := LotteryABI()
	if err != nil {
		return nil, err
	}
	return &EthereumLedger{
		backend:   backend,
		contracts: contracts,
		abi:       parsed,
	}, nil
}

// DialLedger connects to rpcURL and returns the client with a ledger bound to it
func DialLedger(ctx context.Context, rpcURL string, contracts []common.Address) (*ethclient.Client, *EthereumLedger, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dial ledger rpc: %w", ClassifyLedgerError(err))
	}
	ledger, err := NewEthereumLedger(client, contracts)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return client, ledger, nil
}

// Target returns the contract that receives calls and claims
func (l *EthereumLedger) Target() common.Address {
	return l.contracts[0]
}

func (l *EthereumLedger) LatestBlock(ctx context.Context) (uint64, error) {
	n, err := l.backend.BlockNumber(ctx)
	if err != nil {
		return 0, ClassifyLedgerError(err)
	}
	return n, nil
}

func (l *EthereumLedger) BlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error) {
	header, err := l.backend.HeaderByNumber(ctx, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return time.Time{}, ClassifyLedgerError(err)
	}
	return time.Unix(int64(header.Time), 0).UTC(), nil
}

// FetchEvents queries purchase and claim logs indexed by player in [fromBlock, toBlock].
// Removed logs are dropped; a log that fails to decode is skipped with a warning.
func (l *EthereumLedger) FetchEvents(ctx context.Context, player common.Address, fromBlock, toBlock uint64) ([]*entities.RawEvent, error) {
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: l.contracts,
		Topics: [][]common.Hash{
			{TopicTicketsPurchased, TopicTicketsPurchasedForRounds, TopicWinningsClaimed},
			{common.BytesToHash(player.Bytes())},
		},
	}

	logs, err := l.backend.FilterLogs(ctx, q)
	if err != nil {
		return nil, ClassifyLedgerError(err)
	}

	out := make([]*entities.RawEvent, 0, len(logs))
	for _, vLog := range logs {
		if vLog.Removed {
			continue
		}
		ev, err := DecodeLotteryLog(l.abi, vLog)
		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"tx_hash":   vLog.TxHash.Hex(),
				"log_index": vLog.Index,
				"block":     vLog.BlockNumber,
			}).Warn("Skipping undecodable lottery log")
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (l *EthereumLedger) GetRound(ctx context.Context, roundID uint64) (*entities.RoundRecord, error) {
	out, err := l.call(ctx, "getRound", new(big.Int).SetUint64(roundID))
	if err != nil {
		return nil, err
	}
	if len(out) != 4 {
		return nil, fmt.Errorf("getRound(%d): unexpected outputs len=%d", roundID, len(out))
	}

	winning, ok := out[1].([6]uint8)
	if !ok {
		return nil, fmt.Errorf("getRound(%d): unexpected winning numbers type %T", roundID, out[1])
	}
	brackets, ok := abi.ConvertType(out[2], new([6]bracketTuple)).(*[6]bracketTuple)
	if !ok {
		return nil, fmt.Errorf("getRound(%d): unexpected brackets type %T", roundID, out[2])
	}
	state, ok := out[3].(uint8)
	if !ok {
		return nil, fmt.Errorf("getRound(%d): unexpected state type %T", roundID, out[3])
	}

	round := &entities.RoundRecord{
		RoundID: roundID,
		State:   entities.RoundState(state),
	}
	if numbers := entities.Numbers(winning); numbers != (entities.Numbers{}) {
		if err := numbers.Validate(); err != nil {
			return nil, fmt.Errorf("getRound(%d): %w", roundID, err)
		}
		round.WinningNumbers = &numbers
	}
	for i, b := range brackets {
		if b.WinnerCount == nil || !b.WinnerCount.IsUint64() {
			return nil, fmt.Errorf("getRound(%d): bracket %d winner count out of range", roundID, i)
		}
		pool := b.PoolAmount
		if pool == nil {
			pool = new(big.Int)
		}
		round.Brackets[i] = entities.Bracket{
			MatchCount:  b.MatchCount,
			PoolAmount:  pool,
			WinnerCount: b.WinnerCount.Uint64(),
		}
	}
	return round, nil
}

func (l *EthereumLedger) PlayerTickets(ctx context.Context, roundID uint64, player common.Address) ([]*entities.Ticket, error) {
	out, err := l.call(ctx, "getPlayerTickets", new(big.Int).SetUint64(roundID), player)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("getPlayerTickets(%d): unexpected outputs len=%d", roundID, len(out))
	}
	raw, ok := abi.ConvertType(out[0], new([]ticketTuple)).(*[]ticketTuple)
	if !ok {
		return nil, fmt.Errorf("getPlayerTickets(%d): unexpected type %T", roundID, out[0])
	}

	tickets := make([]*entities.Ticket, 0, len(*raw))
	for _, t := range *raw {
		id, err := toUint64(t.TicketId, "ticketId")
		if err != nil {
			return nil, fmt.Errorf("getPlayerTickets(%d): %w", roundID, err)
		}
		tickets = append(tickets, &entities.Ticket{
			TicketID: id,
			RoundID:  roundID,
			Numbers:  entities.Numbers(t.Numbers),
			IsFree:   t.IsFreeTicket,
		})
	}
	return tickets, nil
}

func (l *EthereumLedger) HasClaimed(ctx context.Context, roundID uint64, player common.Address) (bool, error) {
	out, err := l.call(ctx, "hasClaimed", new(big.Int).SetUint64(roundID), player)
	if err != nil {
		return false, err
	}
	claimed, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("hasClaimed(%d): unexpected type %T", roundID, out[0])
	}
	return claimed, nil
}

func (l *EthereumLedger) ClaimableWinnings(ctx context.Context, roundID uint64, player common.Address) (*big.Int, error) {
	out, err := l.call(ctx, "getClaimableWinnings", new(big.Int).SetUint64(roundID), player)
	if err != nil {
		return nil, err
	}
	amount, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("getClaimableWinnings(%d): unexpected type %T", roundID, out[0])
	}
	return amount, nil
}

func (l *EthereumLedger) CurrentRound(ctx context.Context) (uint64, error) {
	out, err := l.call(ctx, "currentRoundId")
	if err != nil {
		return 0, err
	}
	id, ok := out[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("currentRoundId: unexpected type %T", out[0])
	}
	return toUint64(id, "currentRoundId")
}

// call packs, executes and unpacks a view method on the target contract
func (l *EthereumLedger) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := l.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}
	target := l.Target()
	raw, err := l.backend.CallContract(ctx, ethereum.CallMsg{To: &target, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, ClassifyLedgerError(err))
	}
	out, err := l.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: empty result", method)
	}
	return out, nil
}
