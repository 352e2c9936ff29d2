package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dcastillo/soltrade/internal/aggregator"
	"github.com/dcastillo/soltrade/internal/tokens"
	"github.com/dcastillo/soltrade/internal/venue"
	"github.com/dcastillo/soltrade/pkg/config"
	"github.com/dcastillo/soltrade/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Fetch the best route for a swap without executing",
	Long: `Runs one aggregation round across all venues and prints the best
route as JSON. Amount is a UI amount and is scaled by the input mint's
decimals from the token list.`,
	RunE: runQuote,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(quoteCmd)
	quoteCmd.Flags().String("input-mint", "", "Input token mint address")
	quoteCmd.Flags().String("output-mint", "", "Output token mint address")
	quoteCmd.Flags().Float64("amount", 0, "Amount of the input token, UI units")
	quoteCmd.Flags().String("side", "buy", "Trade side: buy or sell")
	_ = quoteCmd.MarkFlagRequired("input-mint")
	_ = quoteCmd.MarkFlagRequired("output-mint")
	_ = quoteCmd.MarkFlagRequired("amount")
}

func runQuote(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	inputMint, _ := cmd.Flags().GetString("input-mint")
	outputMint, _ := cmd.Flags().GetString("output-mint")
	uiAmount, _ := cmd.Flags().GetFloat64("amount")
	sideStr, _ := cmd.Flags().GetString("side")

	side := types.Side(sideStr)
	if side != types.SideBuy && side != types.SideSell {
		return fmt.Errorf("side must be 'buy' or 'sell', got %q", sideStr)
	}

	ctx := context.Background()

	registry := tokens.NewRegistry(&tokens.Config{
		BaseURL: cfg.TokenListURL,
		Timeout: cfg.VenueTimeout,
		Logger:  logger,
	})

	amount, err := registry.ToBaseUnits(ctx, inputMint, uiAmount)
	if err != nil {
		return fmt.Errorf("scale amount: %w", err)
	}

	agg := aggregator.New(&aggregator.Config{
		Adapters: []venue.Adapter{
			venue.NewJupiter(&venue.JupiterConfig{
				BaseURL:       cfg.JupiterBaseURL,
				Timeout:       cfg.VenueTimeout,
				SlippageBps:   cfg.SlippageBps,
				QuoteValidity: cfg.QuoteValidity,
				Logger:        logger,
			}),
			venue.NewRaydium(&venue.RaydiumConfig{
				BaseURL:       cfg.RaydiumBaseURL,
				Timeout:       cfg.VenueTimeout,
				SlippageBps:   cfg.SlippageBps,
				QuoteValidity: cfg.QuoteValidity,
				Logger:        logger,
			}),
		},
		Health:            venue.NewHealthTracker(cfg.UnhealthyAfter),
		AggregateDeadline: cfg.AggregateDeadline,
		Logger:            logger,
	})

	quote, err := agg.BestQuote(ctx,
		types.Pair{InputMint: inputMint, OutputMint: outputMint},
		amount, side, nil)
	if err != nil {
		return fmt.Errorf("aggregate quotes: %w", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(quote)
}
