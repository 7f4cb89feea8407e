// zcash-lightwallet CLI - Sapling light wallet and PCZT tool
//
// Example usage:
//
//	# Create a wallet and print its mnemonic and address
//	zcash-lightwallet init
//
//	# Scan a file of length-delimited compact blocks
//	zcash-lightwallet scan --blocks blocks.bin
//
//	# Build, sign and combine a PCZT
//	zcash-lightwallet pay --uri "zcash:<hex address>?amount=0.5" --out tx.pczt
//	zcash-lightwallet add-spend --in tx.pczt --amount 0.5 --out tx.pczt
//	zcash-lightwallet sign --in tx.pczt --out signed.pczt
//	zcash-lightwallet verify --in signed.pczt
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/suffix-labs/zcash-lightwallet/internal/config"
	"github.com/suffix-labs/zcash-lightwallet/internal/logging"
	"github.com/suffix-labs/zcash-lightwallet/pkg/sapling"
)

// Set with -ldflags "-X main.version=...".
var version = "dev"

var (
	cfg    *config.Config
	logger = zap.NewNop()
	params *sapling.Params
)

var rootCmd = &cobra.Command{
	Use:           "zcash-lightwallet",
	Short:         "Sapling light wallet and PCZT tool",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		logger, err = logging.New(logging.Options{
			Level:      cfg.LogLevel,
			File:       cfg.LogFile,
			MaxSizeMB:  cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAgeDays: cfg.LogMaxAgeDays,
			Compress:   cfg.LogCompress,
		})
		if err != nil {
			return err
		}
		params = sapling.NewParams()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "zcash-lightwallet %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd, addressCmd, balanceCmd, scanCmd)
	rootCmd.AddCommand(addOutputCmd, payCmd, addSpendCmd, releaseCmd, signCmd, combineCmd, verifyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
