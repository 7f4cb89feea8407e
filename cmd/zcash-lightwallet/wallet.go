package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/tyler-smith/go-bip39"
	"go.uber.org/zap"

	"github.com/suffix-labs/zcash-lightwallet/pkg/compact"
	"github.com/suffix-labs/zcash-lightwallet/pkg/sapling"
	"github.com/suffix-labs/zcash-lightwallet/pkg/scanner"
	"github.com/suffix-labs/zcash-lightwallet/pkg/syncer"
	"github.com/suffix-labs/zcash-lightwallet/pkg/wallet"
	"github.com/suffix-labs/zcash-lightwallet/pkg/wallet/badgerstore"
	"github.com/suffix-labs/zcash-lightwallet/pkg/zip321"
)

const accountFile = "account.json"

// account is the public half of the wallet's single account. The seed is
// never written to disk.
type account struct {
	CoinType    uint32 `json:"coin_type"`
	Fingerprint string `json:"seed_fingerprint"`
	ViewingKey  string `json:"full_viewing_key"`
}

func (a *account) fingerprint() (sapling.SeedFingerprint, error) {
	var fp sapling.SeedFingerprint
	b, err := hex.DecodeString(a.Fingerprint)
	if err != nil || len(b) != len(fp) {
		return fp, fmt.Errorf("account file: bad seed fingerprint")
	}
	copy(fp[:], b)
	return fp, nil
}

func (a *account) fullViewingKey() (sapling.FullViewingKey, error) {
	b, err := hex.DecodeString(a.ViewingKey)
	if err != nil || len(b) != 96 {
		return sapling.FullViewingKey{}, fmt.Errorf("account file: bad viewing key")
	}
	return sapling.ParseFullViewingKey([96]byte(b))
}

func (a *account) path() []uint32 {
	return sapling.AccountPath(a.CoinType, 0)
}

func loadAccount() (*account, error) {
	data, err := os.ReadFile(filepath.Join(cfg.WalletDir, accountFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("no wallet in %s, run init first", cfg.WalletDir)
	}
	if err != nil {
		return nil, err
	}
	var a account
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("account file: %w", err)
	}
	return &a, nil
}

func openStore() (*badgerstore.Store, error) {
	return badgerstore.Open(filepath.Join(cfg.WalletDir, "db"), logger)
}

// seedFromMnemonic returns the BIP 39 seed of mnemonic, falling back to
// ZLW_MNEMONIC and ZLW_PASSPHRASE.
func seedFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	if mnemonic == "" {
		mnemonic = cfg.Mnemonic
	}
	if passphrase == "" {
		passphrase = cfg.Passphrase
	}
	if mnemonic == "" {
		return nil, errors.New("no mnemonic: pass --mnemonic or set ZLW_MNEMONIC")
	}
	return bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
}

var (
	initMnemonic   string
	initPassphrase string
	initWords      int
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a wallet from a new or existing BIP 39 mnemonic",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join(cfg.WalletDir, accountFile)
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("wallet already exists at %s", path)
		}

		mnemonic := initMnemonic
		generated := mnemonic == ""
		if generated {
			entropy, err := bip39.NewEntropy(initWords / 3 * 32)
			if err != nil {
				return fmt.Errorf("generate entropy: %w", err)
			}
			if mnemonic, err = bip39.NewMnemonic(entropy); err != nil {
				return err
			}
		}
		seed, err := bip39.NewSeedWithErrorChecking(mnemonic, initPassphrase)
		if err != nil {
			return fmt.Errorf("invalid mnemonic: %w", err)
		}

		master, err := sapling.MasterKey(seed)
		if err != nil {
			return err
		}
		fp, err := sapling.NewSeedFingerprint(seed)
		if err != nil {
			return err
		}
		xsk := master.DerivePath(params, sapling.AccountPath(cfg.CoinType(), 0))
		fvk := xsk.Expsk.FullViewingKey(params)
		_, addr := xsk.DefaultAddress(params)

		fvkBytes := fvk.Bytes()
		acct := account{
			CoinType:    cfg.CoinType(),
			Fingerprint: hex.EncodeToString(fp[:]),
			ViewingKey:  hex.EncodeToString(fvkBytes[:]),
		}
		data, err := json.MarshalIndent(&acct, "", "  ")
		if err != nil {
			return err
		}
		if err := os.MkdirAll(cfg.WalletDir, 0700); err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0600); err != nil {
			return err
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.PutAddress(0, addr); err != nil {
			return err
		}

		logger.Info("wallet created", zap.String("dir", cfg.WalletDir), zap.Uint32("coin_type", acct.CoinType))
		out := cmd.OutOrStdout()
		if generated {
			fmt.Fprintf(out, "Mnemonic: %s\n", mnemonic)
		}
		fmt.Fprintf(out, "Address:  %s\n", zip321.EncodeAddress(&addr))
		return nil
	},
}

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print the wallet's default address",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()
		addr, err := store.GetAddress(0)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), zip321.EncodeAddress(&addr))
		return nil
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print the unspent balance of the default account",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		total, err := wallet.Balance(store, 0)
		if err != nil {
			return err
		}
		notes, err := store.GetUnspentNotes(0)
		if err != nil {
			return err
		}
		var locked uint64
		for _, n := range notes {
			if n.Locked {
				locked += n.Note.Value
			}
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Balance: %s ZEC (%d notes)\n", zip321.FormatAmount(int64(total)), len(notes))
		if locked > 0 {
			fmt.Fprintf(out, "Locked:  %s ZEC\n", zip321.FormatAmount(int64(locked)))
		}
		return nil
	},
}

var (
	scanBlocks      string
	scanMetricsAddr string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a file of length-delimited compact blocks",
	RunE: func(cmd *cobra.Command, args []string) error {
		acct, err := loadAccount()
		if err != nil {
			return err
		}
		fvk, err := acct.fullViewingKey()
		if err != nil {
			return err
		}

		f, err := os.Open(scanBlocks)
		if err != nil {
			return err
		}
		defer f.Close()

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		reg := prometheus.NewRegistry()
		if scanMetricsAddr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			srv := &http.Server{Addr: scanMetricsAddr, Handler: mux}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Warn("metrics server stopped", zap.Error(err))
				}
			}()
			defer srv.Close()
		}

		sc := scanner.New(sapling.NewDecryptor(params),
			scanner.WithLogger(logger.Named("scanner")),
			scanner.WithMetrics(scanner.NewMetrics(reg)))
		s, err := syncer.New(params, store, sc, []sapling.FullViewingKey{fvk},
			syncer.WithLogger(logger.Named("syncer")),
			syncer.WithBatchSize(cfg.BatchSize))
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		n, err := s.Sync(ctx, compact.NewReader(f))
		if err != nil {
			return fmt.Errorf("after %d blocks: %w", n, err)
		}
		height, _ := s.Height()
		fmt.Fprintf(cmd.OutOrStdout(), "Scanned %d blocks, height %d\n", n, height)
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initMnemonic, "mnemonic", "", "restore from this mnemonic instead of generating one")
	initCmd.Flags().StringVar(&initPassphrase, "passphrase", "", "BIP 39 passphrase")
	initCmd.Flags().IntVar(&initWords, "words", 24, "mnemonic length when generating (12, 15, 18, 21 or 24)")

	scanCmd.Flags().StringVar(&scanBlocks, "blocks", "", "file of length-delimited compact blocks")
	scanCmd.Flags().StringVar(&scanMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while scanning")
	_ = scanCmd.MarkFlagRequired("blocks")
}
