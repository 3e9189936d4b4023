package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cardforge/cardforge/api"
	"github.com/cardforge/cardforge/internal/config"
	"github.com/cardforge/cardforge/internal/forge"
	"github.com/cardforge/cardforge/internal/sui"
	"github.com/cardforge/cardforge/internal/walrus"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Serve exposes card generation and upload over HTTP for the
game frontend. The server holds no signer; minting stays with the
player's own wallet.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.ValidateServe(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger(cfg)
	logger.Info("starting HTTP API server", "version", AppVersion)

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

	// Read-only fullnode access for the readiness probe.
	var pinger api.Pinger
	if chain, chainErr := sui.NewClient(sui.ClientConfig{
		RPCURL:    cfg.SuiRPCURL,
		PackageID: cfg.CardPackageID,
		Logger:    logger,
	}); chainErr == nil {
		pinger = chain
	}

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:       logger,
		Metadata:     synth,
		Artwork:      synth,
		Blobs:        blobs,
		Pinger:       pinger,
		ReferenceDir: cfg.ReferenceDir,
		StoreEpochs:  cfg.WalrusEpochs,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.ServeAddr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: api.ReadHeaderTimeout,
		ReadTimeout:       api.ReadTimeout,
		WriteTimeout:      api.WriteTimeout,
		IdleTimeout:       api.IdleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", cfg.ServeAddr,
		"api", "/api/*",
		"health", "/health, /ready",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), api.ShutdownTimeout)
		defer shutdownCancel()
		if err = srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		return nil
	case err = <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	}
}
