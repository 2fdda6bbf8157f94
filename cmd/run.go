package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"lottoclaim/application"
	"lottoclaim/config"
	"lottoclaim/database"
	"lottoclaim/domain/events"
	"lottoclaim/domain/interfaces"
	"lottoclaim/domain/services"
	"lottoclaim/infrastructure"
	"lottoclaim/infrastructure/observability"
	"lottoclaim/repository"

	log "github.com/sirupsen/logrus"
)

const natsConnectTimeout = 10 * time.Second

// App is the wired component graph for one player
type App struct {
	Config  *config.Config
	Worker  *application.ClaimWorker
	Metrics *observability.MetricsProvider

	closers []func()
}

// Build connects to the ledger and every configured side service and wires the worker
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	metrics, err := observability.NewMetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	app.Metrics = metrics

	// Ledger
	log.WithFields(log.Fields{
		"rpc":       cfg.RPCURL,
		"contracts": len(cfg.LotteryAddresses),
	}).Info("Connecting to ledger...")
	client, ledger, err := infrastructure.DialLedger(ctx, cfg.RPCURL, cfg.LotteryAddresses)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, client.Close)
	log.WithField("target", ledger.Target().Hex()).Info("Ledger connection established")

	// Events
	eventPublisher, err := app.buildEventPublisher(ctx, cfg, metrics)
	if err != nil {
		return nil, err
	}

	// Claim receipt cache
	var receipts interfaces.ClaimReceiptStore
	if cfg.HasDatabase() {
		log.Info("Running database migrations...")
		if err := database.RunMigrationsWithURL(cfg.GetDatabaseURL()); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		app.closers = append(app.closers, db.Close)
		receipts = repository.NewClaimReceiptStore(db, metrics)
		log.Info("Claim receipt cache enabled")
	}

	// Services
	ingestor := services.NewEventIngestor(ledger, cfg.DeployBlock, cfg.LogChunkSize)
	resolver := services.NewClaimStatusResolver(ledger, cfg.StatusQueryConcurrency, cfg.StatusBatchDelay)
	reconciler := services.NewReconciliationService(
		ingestor,
		ledger,
		resolver,
		receipts,
		eventPublisher,
		cfg.StatusQueryConcurrency,
		cfg.ClaimableMaxAge,
	)

	var orchestrator interfaces.BatchClaimOrchestrator
	key, err := cfg.SigningKey()
	if err != nil {
		return nil, err
	}
	if key != nil {
		chainID, err := client.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read chain id: %w", infrastructure.ClassifyLedgerError(err))
		}
		submitter, err := infrastructure.NewEthereumClaimSubmitter(client, ledger.Target(), key, chainID, infrastructure.ClaimSubmitterConfig{
			ConfirmTimeout: cfg.ConfirmTimeout,
			RetryDelay:     cfg.ConfirmRetryDelay,
			Retries:        cfg.ConfirmRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create claim submitter: %w", err)
		}
		orchestrator = services.NewBatchClaimOrchestrator(submitter, ledger, receipts, eventPublisher, cfg.ClaimBatchSize)
		log.WithFields(log.Fields{
			"sender":   submitter.Sender().Hex(),
			"chain_id": chainID.String(),
		}).Info("Claim signer configured")
	} else {
		log.Info("No PRIVATE_KEY configured; running read-only")
	}

	app.Worker = application.NewClaimWorker(reconciler, orchestrator, metrics, cfg.PlayerAddress, cfg.ReconcileInterval, cfg.AutoClaim)
	ok = true
	return app, nil
}

// buildEventPublisher returns a NATS-backed publisher when NATS or Discord is configured,
// otherwise a no-op publisher
func (a *App) buildEventPublisher(ctx context.Context, cfg *config.Config, metrics *observability.MetricsProvider) (interfaces.EventPublisher, error) {
	if cfg.NATSServers == "" && cfg.DiscordToken == "" {
		return infrastructure.NewNoopEventPublisher(), nil
	}

	mapper := infrastructure.NewEventSubjectMapper()
	var bus infrastructure.MessagePublisher
	var natsClient *infrastructure.NATSClient
	if cfg.NATSServers != "" {
		natsClient = infrastructure.NewNATSClient(cfg.NATSServers, "lottoclaim")
		connectCtx, cancel := context.WithTimeout(ctx, natsConnectTimeout)
		err := natsClient.Connect(connectCtx)
		cancel()
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			if err := natsClient.Close(); err != nil {
				log.WithError(err).Warn("Error closing NATS connection")
			}
		})
		bus = natsClient
	}

	publisher := infrastructure.NewNATSEventPublisher(bus, mapper)
	publisher.SetMetrics(metrics)
	if natsClient != nil {
		if err := publisher.EnsureLotteryEventStream(natsClient); err != nil {
			return nil, fmt.Errorf("failed to ensure event stream: %w", err)
		}
	}

	if cfg.DiscordToken != "" {
		session, err := infrastructure.OpenDiscordSession(cfg.DiscordToken)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			if err := session.Close(); err != nil {
				log.WithError(err).Warn("Error closing Discord session")
			}
		})
		notifier := infrastructure.NewDiscordNotifier(session, cfg.DiscordChannelID)
		publisher.RegisterLocalHandler(events.EventTypeClaimRunCompleted, notifier.HandleClaimRunCompleted)
	}
	return publisher, nil
}

// Close releases connections in reverse order of acquisition
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Run starts the reconciliation worker and status server until ctx is cancelled
func Run(ctx context.Context) error {
	cfg := config.Get()
	cfg.ConfigureLogging()
	log.WithFields(log.Fields{
		"player":      cfg.PlayerAddress.Hex(),
		"environment": cfg.Environment,
	}).Info("Starting lottoclaim...")

	app, err := Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	stopWorker := app.Worker.Start(ctx)

	stopServer := func() {}
	if cfg.MetricsAddr != "" {
		server := application.NewStatusServer(cfg.MetricsAddr, app.Worker, app.Metrics, cfg.Environment == "development")
		stopServer = server.Start()
	}

	<-ctx.Done()
	log.Info("Shutting down...")

	stopServer()
	stopWorker()
	log.Info("Shutdown completed")
	return nil
}

// Reconcile runs a single reconciliation and prints the result
func Reconcile(ctx context.Context) error {
	app, err := buildFromConfig(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	snap, err := app.Worker.RunOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Println(app.Worker.Status())
	for _, rec := range snap.Claimable {
		line := fmt.Sprintf("  round %d: %s", rec.RoundID, formatAmount(rec))
		if rec.QueryFailed {
			line += " (status unverified)"
		}
		fmt.Println(line)
	}
	for _, w := range snap.Warnings {
		fmt.Println("  warning:", w)
	}
	return nil
}

// Claim claims roundIDs, or every claimable round when none are given
func Claim(ctx context.Context, roundIDs []uint64) error {
	app, err := buildFromConfig(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if _, err := app.Worker.RunOnce(ctx); err != nil {
		return err
	}
	report, err := app.Worker.Claim(ctx, roundIDs)
	return finishClaim(os.Stdout, report, err)
}

// ClaimRound claims one round after live checks
func ClaimRound(ctx context.Context, roundID uint64) error {
	app, err := buildFromConfig(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	report, err := app.Worker.ClaimRound(ctx, roundID)
	return finishClaim(os.Stdout, report, err)
}

func buildFromConfig(ctx context.Context) (*App, error) {
	cfg := config.Get()
	cfg.ConfigureLogging()
	return Build(ctx, cfg)
}
