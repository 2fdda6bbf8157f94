package infrastructure

import (
	"fmt"
	"math/big"

	"lottoclaim/domain/entities"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Decoded event layouts. Field names follow the ABI argument names.
type ticketsPurchasedLog struct {
	Player          common.Address
	RoundId         *big.Int
	TicketCount     *big.Int
	FreeTicketsUsed *big.Int
	MorbiusSpent    *big.Int
}

type ticketsPurchasedForRoundsLog struct {
	Player       common.Address
	RoundIds     []*big.Int
	TicketCounts []*big.Int
	MorbiusSpent *big.Int
}

type winningsClaimedLog struct {
	Player  common.Address
	RoundId *big.Int
	Amount  *big.Int
}

// DecodeLotteryLog decodes a TicketsPurchased, TicketsPurchasedForRounds or WinningsClaimed log
// with the parsed contract ABI. Malformed logs are reported as ErrInconsistentLog.
func DecodeLotteryLog(contractABI abi.ABI, vLog types.Log) (*entities.RawEvent, error) {
	if len(vLog.Topics) < 2 {
		return nil, fmt.Errorf("%w: unexpected topics len=%d", entities.ErrInconsistentLog, len(vLog.Topics))
	}

	ev := &entities.RawEvent{
		Contract:    vLog.Address,
		TxHash:      vLog.TxHash,
		BlockNumber: vLog.BlockNumber,
		LogIndex:    vLog.Index,
	}

	switch vLog.Topics[0] {
	case TopicTicketsPurchased:
		var out ticketsPurchasedLog
		if err := unpackLog(contractABI, &out, "TicketsPurchased", vLog); err != nil {
			return nil, err
		}
		round, err := toUint64(out.RoundId, "roundId")
		if err != nil {
			return nil, err
		}
		count, err := toUint64(out.TicketCount, "ticketCount")
		if err != nil {
			return nil, err
		}
		free, err := toUint64(out.FreeTicketsUsed, "freeTicketsUsed")
		if err != nil {
			return nil, err
		}
		ev.Kind = entities.EventKindPurchaseSingle
		ev.Player = out.Player
		ev.RoundIDs = []uint64{round}
		ev.TicketCounts = []uint64{count}
		ev.FreeTicketsUsed = free
		ev.AmountSpent = out.MorbiusSpent

	case TopicTicketsPurchasedForRounds:
		var out ticketsPurchasedForRoundsLog
		if err := unpackLog(contractABI, &out, "TicketsPurchasedForRounds", vLog); err != nil {
			return nil, err
		}
		if len(out.RoundIds) == 0 || len(out.RoundIds) != len(out.TicketCounts) {
			return nil, malformed(vLog)
		}
		ev.Kind = entities.EventKindPurchaseMulti
		ev.Player = out.Player
		for i := range out.RoundIds {
			round, err := toUint64(out.RoundIds[i], "roundIds")
			if err != nil {
				return nil, err
			}
			count, err := toUint64(out.TicketCounts[i], "ticketCounts")
			if err != nil {
				return nil, err
			}
			ev.RoundIDs = append(ev.RoundIDs, round)
			ev.TicketCounts = append(ev.TicketCounts, count)
		}
		ev.AmountSpent = out.MorbiusSpent

	case TopicWinningsClaimed:
		var out winningsClaimedLog
		if err := unpackLog(contractABI, &out, "WinningsClaimed", vLog); err != nil {
			return nil, err
		}
		round, err := toUint64(out.RoundId, "roundId")
		if err != nil {
			return nil, err
		}
		ev.Kind = entities.EventKindClaim
		ev.Player = out.Player
		ev.RoundIDs = []uint64{round}
		ev.TicketCounts = []uint64{0}
		ev.AmountSpent = out.Amount

	default:
		return nil, fmt.Errorf("%w: unknown event topic %s", entities.ErrInconsistentLog, vLog.Topics[0].Hex())
	}

	if ev.AmountSpent == nil {
		return nil, malformed(vLog)
	}
	return ev, nil
}

// unpackLog fills out from the log data and its indexed topics, like a generated binding's UnpackLog
func unpackLog(contractABI abi.ABI, out interface{}, event string, vLog types.Log) error {
	evABI, ok := contractABI.Events[event]
	if !ok {
		return fmt.Errorf("%w: event %s missing from abi", entities.ErrInconsistentLog, event)
	}
	if len(vLog.Data)%32 != 0 {
		return malformed(vLog)
	}
	if err := contractABI.UnpackIntoInterface(out, event, vLog.Data); err != nil {
		return fmt.Errorf("%w: unpack %s in tx %s: %v", entities.ErrInconsistentLog, event, vLog.TxHash.Hex(), err)
	}
	var indexed abi.Arguments
	for _, arg := range evABI.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if err := abi.ParseTopics(out, indexed, vLog.Topics[1:]); err != nil {
		return fmt.Errorf("%w: topics of %s in tx %s: %v", entities.ErrInconsistentLog, event, vLog.TxHash.Hex(), err)
	}
	return nil
}

func malformed(vLog types.Log) error {
	return fmt.Errorf("%w: malformed log tx=%s index=%d topics=%d data=%d",
		entities.ErrInconsistentLog, vLog.TxHash.Hex(), vLog.Index, len(vLog.Topics), len(vLog.Data))
}

func toUint64(v *big.Int, field string) (uint64, error) {
	if v == nil || !v.IsUint64() {
		return 0, fmt.Errorf("%w: %s out of range", entities.ErrInconsistentLog, field)
	}
	return v.Uint64(), nil
}
