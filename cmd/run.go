package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dcastillo/soltrade/internal/app"
	"github.com/dcastillo/soltrade/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the trading engine",
	Long: `Starts the trading engine, which will:
1. Connect to the price feed and watch mints with active orders
2. Fire conditional orders when their trigger prices are crossed
3. Aggregate quotes across venues and pick the best net route
4. Sign, shape and submit the winning transaction

Signing keys come from SIGNER_ACCOUNT / SIGNER_KEY or the matching flags.`,
	RunE: runEngine,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("signer-account", "", "Account label for the local signing key")
	runCmd.Flags().String("signer-key", "", "Base64 ed25519 private key for the local signer")
}

func runEngine(cmd *cobra.Command, args []string) error {
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

	signerAccount, _ := cmd.Flags().GetString("signer-account")
	signerKey, _ := cmd.Flags().GetString("signer-key")

	opts := &app.Options{
		SignerAccount: signerAccount,
		SignerKey:     signerKey,
	}

	application, err := app.New(cfg, logger, opts)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
