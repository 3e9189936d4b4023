package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cardforge/cardforge/internal/config"
	"github.com/cardforge/cardforge/internal/forge"
	"github.com/cardforge/cardforge/internal/sui"
)

var forgeCmd = &cobra.Command{
	Use:   "forge <prompt...>",
	Short: "Mint a card from a prompt",
	Long: `Forge generates card metadata from the prompt and submits a
create_card transaction. The pipeline daemon picks up the resulting
CardCreated event and fills in the artwork.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runForge(strings.Join(args, " "))
	},
}

func init() {
	rootCmd.AddCommand(forgeCmd)
}

func runForge(prompt string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.ValidateForge(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger(cfg)

	signer, err := sui.NewSigner(cfg.SignerKey)
	if err != nil {
		return fmt.Errorf("loading signer key: %w", err)
	}

	chain, err := sui.NewClient(sui.ClientConfig{
		RPCURL:    cfg.SuiRPCURL,
		PackageID: cfg.CardPackageID,
		Signer:    signer,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("creating fullnode client: %w", err)
	}

	synth, err := forge.New(ctx, forge.Config{
		APIKey:     cfg.GeminiAPIKey,
		TextModel:  cfg.TextModel,
		ImageModel: cfg.ImageModel,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("creating forge: %w", err)
	}

	meta, err := synth.GenerateMetadata(ctx, prompt)
	if err != nil {
		return fmt.Errorf("generating metadata: %w", err)
	}
	fmt.Printf("Name:    %s\n", meta.Name)
	fmt.Printf("Element: %s\n", meta.Element)

	digest, cardID, err := chain.CreateCard(ctx, prompt, meta)
	if err != nil {
		return fmt.Errorf("submitting create_card: %w", err)
	}
	fmt.Printf("Card:    %s\n", cardID)
	fmt.Printf("Tx:      %s\n", digest)
	return nil
}
