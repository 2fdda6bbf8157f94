package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"lottoclaim/cmd"
	"lottoclaim/config"
	"lottoclaim/database"

	log "github.com/sirupsen/logrus"
)

const usage = `usage: lottoclaim [command]

commands:
  (none)               run the reconciliation worker and status server
  reconcile            reconcile once and print claimable rounds
  claim [round...]     claim the given rounds, or every claimable round
  claim-round <round>  claim one round
  migrate up|down [n]|status`

func main() {
	// Check for migration subcommands
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := handleMigrationCommand(); err != nil {
			log.Fatal("Migration error: ", err)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	if err := dispatch(ctx, os.Args[1:]); err != nil {
		log.Fatal("Application error: ", err)
	}
}

func dispatch(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return cmd.Run(ctx)
	}

	switch args[0] {
	case "reconcile":
		return cmd.Reconcile(ctx)
	case "claim":
		roundIDs, err := parseRoundIDs(args[1:])
		if err != nil {
			return err
		}
		return cmd.Claim(ctx, roundIDs)
	case "claim-round":
		if len(args) != 2 {
			return fmt.Errorf("usage: lottoclaim claim-round <round>")
		}
		roundIDs, err := parseRoundIDs(args[1:])
		if err != nil {
			return err
		}
		return cmd.ClaimRound(ctx, roundIDs[0])
	case "help", "-h", "--help":
		fmt.Println(usage)
		return nil
	default:
		return fmt.Errorf("unknown command: %s\n%s", args[0], usage)
	}
}

func parseRoundIDs(args []string) ([]uint64, error) {
	ids := make([]uint64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseUint(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid round id %q: %w", a, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func handleMigrationCommand() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: lottoclaim migrate [up|down|status] [args...]")
	}

	url, err := config.MigrationDatabaseURL()
	if err != nil {
		return err
	}

	command := os.Args[2]
	switch command {
	case "up":
		return database.MigrateUp(url)
	case "down":
		steps := 1
		if len(os.Args) > 3 {
			n, err := strconv.Atoi(os.Args[3])
			if err != nil {
				return fmt.Errorf("invalid step count %q: %w", os.Args[3], err)
			}
			steps = n
		}
		return database.MigrateDown(url, steps)
	case "status":
		return database.MigrateStatus(url)
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}
}
