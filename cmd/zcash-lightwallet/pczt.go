package main

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/suffix-labs/zcash-lightwallet/pkg/api"
	"github.com/suffix-labs/zcash-lightwallet/pkg/pczt"
	"github.com/suffix-labs/zcash-lightwallet/pkg/sapling"
	"github.com/suffix-labs/zcash-lightwallet/pkg/wallet"
	"github.com/suffix-labs/zcash-lightwallet/pkg/zip321"
)

// PCZT files hold the serialized document in base64 so they survive
// copy and paste between air-gapped machines.

func readPCZT(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace(data)))
	if err != nil {
		return nil, fmt.Errorf("%s: not a base64 PCZT: %w", path, err)
	}
	return doc, nil
}

func writePCZT(cmd *cobra.Command, path string, doc []byte) error {
	text := base64.StdEncoding.EncodeToString(doc) + "\n"
	if path == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), text)
		return err
	}
	return os.WriteFile(path, []byte(text), 0600)
}

// senderOvk returns the wallet's outgoing viewing key, or nil when the
// output should not be recoverable by the sender.
func senderOvk(noOvk bool) (*[32]byte, error) {
	if noOvk {
		return nil, nil
	}
	acct, err := loadAccount()
	if err != nil {
		return nil, err
	}
	fvk, err := acct.fullViewingKey()
	if err != nil {
		return nil, err
	}
	return &fvk.Ovk, nil
}

var (
	pcztIn  string
	pcztOut string

	outputTo     string
	outputAmount string
	outputMemo   string
	outputNoOvk  bool
	payURI       string
	spendAmount  string
	signMnemonic string
	signPass     string
)

var addOutputCmd = &cobra.Command{
	Use:   "add-output",
	Short: "Add a shielded output to a PCZT (a new one if --in is omitted)",
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readPCZT(pcztIn)
		if err != nil {
			return err
		}
		to, err := zip321.ParseAddress(outputTo)
		if err != nil {
			return err
		}
		value, err := zip321.ParseAmount(outputAmount)
		if err != nil {
			return err
		}
		var memo *sapling.Memo
		if outputMemo != "" {
			if len(outputMemo) > sapling.MemoSize {
				return fmt.Errorf("memo is %d bytes, limit is %d", len(outputMemo), sapling.MemoSize)
			}
			var m sapling.Memo
			copy(m[:], outputMemo)
			memo = &m
		}
		ovk, err := senderOvk(outputNoOvk)
		if err != nil {
			return err
		}

		doc, err = api.AddOutput(params, doc, ovk, to, value, memo, sapling.NewOutputProver(params))
		if err != nil {
			return err
		}
		logger.Info("output added", zap.Int64("value", value))
		return writePCZT(cmd, pcztOut, doc)
	},
}

var payCmd = &cobra.Command{
	Use:   "pay",
	Short: "Add one output per payment of a ZIP 321 request",
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readPCZT(pcztIn)
		if err != nil {
			return err
		}
		req, err := api.ParsePaymentRequest(payURI)
		if err != nil {
			return err
		}
		ovk, err := senderOvk(outputNoOvk)
		if err != nil {
			return err
		}
		doc, err = api.AddPayments(params, doc, ovk, req, sapling.NewOutputProver(params))
		if err != nil {
			return err
		}
		logger.Info("payments added", zap.Int("count", len(req.Payments)), zap.Int64("total", req.Total()))
		return writePCZT(cmd, pcztOut, doc)
	},
}

var addSpendCmd = &cobra.Command{
	Use:   "add-spend",
	Short: "Select and lock notes covering --amount and add a spend slot for each",
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readPCZT(pcztIn)
		if err != nil {
			return err
		}
		target, err := zip321.ParseAmount(spendAmount)
		if err != nil {
			return err
		}
		acct, err := loadAccount()
		if err != nil {
			return err
		}
		fp, err := acct.fingerprint()
		if err != nil {
			return err
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		notes, err := wallet.SelectAndLock(store, wallet.OldestFirst{}, 0, uint64(target))
		if err != nil {
			return err
		}
		// Locks outlive this command only if the document is written.
		release := func(cause error) error {
			ids := make([]wallet.NoteID, len(notes))
			for i, n := range notes {
				ids[i] = n.ID
			}
			if err := store.UnlockNotes(ids); err != nil {
				logger.Error("failed to release note locks", zap.Error(err))
			}
			return cause
		}
		for _, n := range notes {
			if doc, _, err = api.AddSpend(params, doc, fp, acct.path()); err != nil {
				return release(err)
			}
			logger.Info("note locked for spend", zap.Stringer("note", n.ID), zap.Uint64("value", n.Note.Value))
		}
		if err := writePCZT(cmd, pcztOut, doc); err != nil {
			return release(err)
		}
		return nil
	},
}

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Unlock every note reserved by add-spend, for abandoned PCZTs",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		notes, err := store.GetUnspentNotes(0)
		if err != nil {
			return err
		}
		var ids []wallet.NoteID
		for _, n := range notes {
			if n.Locked {
				ids = append(ids, n.ID)
			}
		}
		if err := store.UnlockNotes(ids); err != nil {
			return err
		}
		logger.Info("note locks released", zap.Int("count", len(ids)))
		fmt.Fprintf(cmd.OutOrStdout(), "Released %d notes\n", len(ids))
		return nil
	},
}

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign every spend slot controlled by the mnemonic's seed",
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readPCZT(pcztIn)
		if err != nil {
			return err
		}
		seed, err := seedFromMnemonic(signMnemonic, signPass)
		if err != nil {
			return err
		}
		signed, err := api.Sign(params, doc, seed, cfg.BranchID)
		if err != nil {
			return err
		}
		return writePCZT(cmd, pcztOut, signed)
	},
}

var combineCmd = &cobra.Command{
	Use:   "combine <pczt>...",
	Short: "Merge PCZTs signed in parallel",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		docs := make([][]byte, 0, len(args))
		for _, path := range args {
			doc, err := readPCZT(path)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
		}
		combined, err := api.Combine(docs)
		if err != nil {
			return err
		}
		return writePCZT(cmd, pcztOut, combined)
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check a PCZT's binding accumulator and signatures",
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readPCZT(pcztIn)
		if err != nil {
			return err
		}
		if err := api.Verify(params, doc); err != nil {
			return err
		}
		p, err := pczt.Parse(doc)
		if err != nil {
			return err
		}
		var vb int64
		if p.Global != nil {
			vb = p.Global.ValueBalance
		}
		fmt.Fprintf(cmd.OutOrStdout(), "OK: %d spends, %d outputs, value balance %d\n", len(p.Spends), len(p.Outputs), vb)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{addOutputCmd, payCmd, addSpendCmd, signCmd, verifyCmd} {
		c.Flags().StringVar(&pcztIn, "in", "", "input PCZT file")
	}
	for _, c := range []*cobra.Command{addOutputCmd, payCmd, addSpendCmd, signCmd, combineCmd} {
		c.Flags().StringVar(&pcztOut, "out", "", "output PCZT file (default stdout)")
	}
	_ = signCmd.MarkFlagRequired("in")
	_ = verifyCmd.MarkFlagRequired("in")

	addOutputCmd.Flags().StringVar(&outputTo, "to", "", "recipient, hex-encoded raw Sapling address")
	addOutputCmd.Flags().StringVar(&outputAmount, "amount", "", "amount in ZEC")
	addOutputCmd.Flags().StringVar(&outputMemo, "memo", "", "text memo")
	_ = addOutputCmd.MarkFlagRequired("to")
	_ = addOutputCmd.MarkFlagRequired("amount")
	for _, c := range []*cobra.Command{addOutputCmd, payCmd} {
		c.Flags().BoolVar(&outputNoOvk, "no-ovk", false, "make the output unrecoverable by this wallet")
	}

	payCmd.Flags().StringVar(&payURI, "uri", "", "ZIP 321 payment request")
	_ = payCmd.MarkFlagRequired("uri")

	addSpendCmd.Flags().StringVar(&spendAmount, "amount", "", "amount in ZEC the selected notes must cover")
	_ = addSpendCmd.MarkFlagRequired("amount")

	signCmd.Flags().StringVar(&signMnemonic, "mnemonic", "", "BIP 39 mnemonic (default $ZLW_MNEMONIC)")
	signCmd.Flags().StringVar(&signPass, "passphrase", "", "BIP 39 passphrase (default $ZLW_PASSPHRASE)")
}
