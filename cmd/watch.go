package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cardforge/cardforge/internal/config"
	"github.com/cardforge/cardforge/internal/forge"
	"github.com/cardforge/cardforge/internal/ledger"
	"github.com/cardforge/cardforge/internal/pipeline"
	"github.com/cardforge/cardforge/internal/sui"
	"github.com/cardforge/cardforge/internal/walrus"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the pipeline daemon",
	Long: `Watch polls the card contract's CardCreated events, generates
artwork for each new card and writes the stored image URL back on-chain.
The daemon runs until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch()
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.ValidateWatch(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger(cfg)
	logger.Info("starting cardforge pipeline", "version", AppVersion)

	signer, err := sui.NewSigner(cfg.SignerKey)
	if err != nil {
		return fmt.Errorf("loading signer key: %w", err)
	}
	logger.Info("signer loaded", "address", signer.Address())

	chain, err := sui.NewClient(sui.ClientConfig{
		RPCURL:    cfg.SuiRPCURL,
		PackageID: cfg.CardPackageID,
		Signer:    signer,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("creating fullnode client: %w", err)
	}

	// Fail fast on an unreachable or misconfigured fullnode.
	chainID, err := chain.ChainIdentifier(ctx)
	if err != nil {
		return fmt.Errorf("probing fullnode: %w", err)
	}
	logger.Info("fullnode reachable", "chain", chainID, "rpc", cfg.SuiRPCURL)

	synth, err := forge.New(ctx, forge.Config{
		APIKey:     cfg.GeminiAPIKey,
		TextModel:  cfg.TextModel,
		ImageModel: cfg.ImageModel,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("creating forge: %w", err)
	}

	blobs, err := walrus.New(walrus.Config{
		PublisherURL:  cfg.WalrusPublisherURL,
		AggregatorURL: cfg.WalrusAggregatorURL,
		MaxAttempts:   cfg.UploadMaxAttempts,
		BackoffUnit:   cfg.UploadBackoffUnit,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("creating walrus client: %w", err)
	}

	handled, err := ledger.Open(cfg.LedgerPath)
	if err != nil {
		return fmt.Errorf("opening event ledger: %w", err)
	}
	defer func() {
		if closeErr := handled.Close(); closeErr != nil {
			logger.Warn("closing ledger", "error", closeErr)
		}
	}()

	watcher, err := pipeline.New(pipeline.Deps{
		Source:  chain,
		Cards:   chain,
		Updater: chain,
		Synth:   synth,
		Blobs:   blobs,
		Ledger:  handled,
		Logger:  logger,
	}, pipeline.Config{
		EventType:         chain.CardCreatedEventType(),
		PollInterval:      cfg.PollInterval,
		PollErrorInterval: cfg.PollErrorInterval,
		PollLimit:         cfg.PollLimit,
		PrimeLimit:        cfg.PrimeLimit,
		ReferenceDir:      cfg.ReferenceDir,
		StoreOptions: walrus.StoreOptions{
			Epochs:    cfg.WalrusEpochs,
			Deletable: cfg.WalrusDeletable,
		},
	})
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}

	// Run primes the backlog itself before the first poll.
	return watcher.Run(ctx)
}
