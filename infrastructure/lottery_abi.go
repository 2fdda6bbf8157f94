package infrastructure

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

const lotteryABIJSON = `[
  {"anonymous":false,"inputs":[
    {"indexed":true,"internalType":"address","name":"player","type":"address"},
    {"indexed":true,"internalType":"uint256","name":"roundId","type":"uint256"},
    {"indexed":false,"internalType":"uint256","name":"ticketCount","type":"uint256"},
    {"indexed":false,"internalType":"uint256","name":"freeTicketsUsed","type":"uint256"},
    {"indexed":false,"internalType":"uint256","name":"morbiusSpent","type":"uint256"}
  ],"name":"TicketsPurchased","type":"event"},
  {"anonymous":false,"inputs":[
    {"indexed":true,"internalType":"address","name":"player","type":"address"},
    {"indexed":false,"internalType":"uint256[]","name":"roundIds","type":"uint256[]"},
    {"indexed":false,"internalType":"uint256[]","name":"ticketCounts","type":"uint256[]"},
    {"indexed":false,"internalType":"uint256","name":"morbiusSpent","type":"uint256"}
  ],"name":"TicketsPurchasedForRounds","type":"event"},
  {"anonymous":false,"inputs":[
    {"indexed":true,"internalType":"address","name":"player","type":"address"},
    {"indexed":true,"internalType":"uint256","name":"roundId","type":"uint256"},
    {"indexed":false,"internalType":"uint256","name":"amount","type":"uint256"}
  ],"name":"WinningsClaimed","type":"event"},
  {"inputs":[{"internalType":"uint256","name":"roundId","type":"uint256"}],"name":"getRound","outputs":[
    {"internalType":"uint256","name":"roundId","type":"uint256"},
    {"internalType":"uint8[6]","name":"winningNumbers","type":"uint8[6]"},
    {"components":[
      {"internalType":"uint8","name":"matchCount","type":"uint8"},
      {"internalType":"uint256","name":"poolAmount","type":"uint256"},
      {"internalType":"uint256","name":"winnerCount","type":"uint256"}
    ],"internalType":"struct Bracket[6]","name":"brackets","type":"tuple[6]"},
    {"internalType":"uint8","name":"state","type":"uint8"}
  ],"stateMutability":"view","type":"function"},
  {"inputs":[
    {"internalType":"uint256","name":"roundId","type":"uint256"},
    {"internalType":"address","name":"player","type":"address"}
  ],"name":"getPlayerTickets","outputs":[
    {"components":[
      {"internalType":"uint256","name":"ticketId","type":"uint256"},
      {"internalType":"uint8[6]","name":"numbers","type":"uint8[6]"},
      {"internalType":"bool","name":"isFreeTicket","type":"bool"}
    ],"internalType":"struct Ticket[]","name":"","type":"tuple[]"}
  ],"stateMutability":"view","type":"function"},
  {"inputs":[
    {"internalType":"uint256","name":"roundId","type":"uint256"},
    {"internalType":"address","name":"player","type":"address"}
  ],"name":"hasClaimed","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"view","type":"function"},
  {"inputs":[
    {"internalType":"uint256","name":"roundId","type":"uint256"},
    {"internalType":"address","name":"player","type":"address"}
  ],"name":"getClaimableWinnings","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"currentRoundId","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"uint256","name":"roundId","type":"uint256"}],"name":"claimWinnings","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"internalType":"uint256[]","name":"roundIds","type":"uint256[]"}],"name":"claimWinningsMultiple","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

// Event signatures as emitted by the lottery contract
const (
	ticketsPurchasedSig          = "TicketsPurchased(address,uint256,uint256,uint256,uint256)"
	ticketsPurchasedForRoundsSig = "TicketsPurchasedForRounds(address,uint256[],uint256[],uint256)"
	winningsClaimedSig           = "WinningsClaimed(address,uint256,uint256)"
)

var (
	TopicTicketsPurchased          = crypto.Keccak256Hash([]byte(ticketsPurchasedSig))
	TopicTicketsPurchasedForRounds = crypto.Keccak256Hash([]byte(ticketsPurchasedForRoundsSig))
	TopicWinningsClaimed           = crypto.Keccak256Hash([]byte(winningsClaimedSig))
)

var (
	lotteryABIOnce sync.Once
	lotteryABI     abi.ABI
	lotteryABIErr  error
)

// LotteryABI returns the parsed contract ABI
func LotteryABI() (abi.ABI, error) {
	lotteryABIOnce.Do(func() {
		lotteryABI, lotteryABIErr = abi.JSON(strings.NewReader(lotteryABIJSON))
		if lotteryABIErr != nil {
			lotteryABIErr = fmt.Errorf("failed to parse lottery abi: %w", lotteryABIErr)
		}
	})
	return lotteryABI, lotteryABIErr
}

// bracketTuple mirrors the Bracket struct returned by getRound
type bracketTuple struct {
	MatchCount  uint8
	PoolAmount  *big.Int
	WinnerCount *big.Int
}

// ticketTuple mirrors the Ticket struct returned by getPlayerTickets
type ticketTuple struct {
	TicketId     *big.Int
	Numbers      [6]uint8
	IsFreeTicket bool
}
