// Package scanner detects wallet activity in compact blocks.
//
// For every block it checks spends against the wallet's nullifiers, appends
// every output commitment to the commitment tree and to all live witnesses,
// and trial-decrypts outputs with the wallet's incoming viewing keys. A
// matching output gets a fresh witness anchored at its leaf.
package scanner

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/suffix-labs/zcash-lightwallet/pkg/compact"
	"github.com/suffix-labs/zcash-lightwallet/pkg/merkle"
	"github.com/suffix-labs/zcash-lightwallet/pkg/sapling"
	"github.com/suffix-labs/zcash-lightwallet/pkg/wallet"
)

// NoteDecryptor trial-decrypts the compact prefix of an output.
type NoteDecryptor interface {
	TryDecryptCompact(ivk sapling.IncomingViewingKey, epk *sapling.Point, cmu [32]byte, ciphertext []byte) (*sapling.Note, *sapling.PaymentAddress, bool)
}

// ScannedTx is a wallet transaction found in a block. Witnesses[i] tracks
// the leaf of Tx.ShieldedOutputs[i].
type ScannedTx struct {
	Tx        wallet.WalletTx
	Witnesses []*merkle.IncrementalWitness
}

// Scanner scans compact blocks. It holds no chain state; callers thread the
// tree and witnesses through successive calls.
type Scanner struct {
	decryptor NoteDecryptor
	logger    *zap.Logger
	metrics   *Metrics
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scanner) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(s *Scanner) {
		if m != nil {
			s.metrics = m
		}
	}
}

// New returns a Scanner that trial-decrypts with d.
func New(d NoteDecryptor, opts ...Option) *Scanner {
	s := &Scanner{
		decryptor: d,
		logger:    zap.NewNop(),
		metrics:   NewMetrics(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScanBlock scans one block.
//
// ivks[i] is the incoming viewing key of account i. nullifiers maps the
// nullifiers of the wallet's unspent notes to their account. tree and
// existing are advanced in place by every output commitment in the block;
// witnesses created for matches in this block are returned in the results
// and are also kept in step with the rest of the block.
//
// An output is attributed to the first account whose key decrypts it.
// Outputs whose cmu or epk cannot be decoded are skipped without touching
// the tree.
func (s *Scanner) ScanBlock(
	block *compact.Block,
	ivks []sapling.IncomingViewingKey,
	nullifiers map[[32]byte]uint32,
	tree *merkle.CommitmentTree,
	existing []*merkle.IncrementalWitness,
) ([]ScannedTx, error) {
	log := s.logger.With(zap.Uint64("height", block.Height))
	s.metrics.blocks.Inc()

	var (
		results []ScannedTx
		created []*merkle.IncrementalWitness
	)
	for ti := range block.Vtx {
		tx := &block.Vtx[ti]
		wtx := wallet.WalletTx{
			NumSpends:  len(tx.Spends),
			NumOutputs: len(tx.Outputs),
		}
		copy(wtx.TxID[:], tx.Hash)

		spentFrom := make(map[uint32]bool)
		for si, spend := range tx.Spends {
			if len(spend.Nf) != 32 {
				s.skip(log, "nullifier", ti, si, fmt.Errorf("nullifier is %d bytes", len(spend.Nf)))
				continue
			}
			var nf [32]byte
			copy(nf[:], spend.Nf)
			account, ok := nullifiers[nf]
			if !ok {
				continue
			}
			spentFrom[account] = true
			wtx.ShieldedSpends = append(wtx.ShieldedSpends, wallet.WalletShieldedSpend{
				Index:   si,
				Nf:      nf,
				Account: account,
			})
			s.metrics.matchedSpends.Inc()
		}

		var txWitnesses []*merkle.IncrementalWitness
		for oi := range tx.Outputs {
			out := &tx.Outputs[oi]
			cmu, epk, err := decodeOutput(out)
			if err != nil {
				s.skip(log, "output", ti, oi, err)
				continue
			}

			node := merkle.Node(cmu)
			for _, w := range existing {
				if err := w.Append(node); err != nil {
					return nil, fmt.Errorf("advance witness at height %d: %w", block.Height, err)
				}
			}
			for _, w := range created {
				if err := w.Append(node); err != nil {
					return nil, fmt.Errorf("advance witness at height %d: %w", block.Height, err)
				}
			}
			if err := tree.Append(node); err != nil {
				return nil, fmt.Errorf("append commitment at height %d: %w", block.Height, err)
			}
			s.metrics.outputs.Inc()

			if len(out.Ciphertext) < sapling.CompactNoteSize {
				s.skip(log, "ciphertext", ti, oi, fmt.Errorf("ciphertext is %d bytes", len(out.Ciphertext)))
				continue
			}
			for account, ivk := range ivks {
				s.metrics.trialDecryptions.Inc()
				note, to, ok := s.decryptor.TryDecryptCompact(ivk, &epk, cmu, out.Ciphertext)
				if !ok {
					continue
				}
				w := merkle.NewWitness(tree)
				created = append(created, w)
				txWitnesses = append(txWitnesses, w)
				wtx.ShieldedOutputs = append(wtx.ShieldedOutputs, wallet.WalletShieldedOutput{
					Index:    oi,
					Cmu:      cmu,
					Epk:      epk.Bytes(),
					Account:  uint32(account),
					Note:     *note,
					To:       *to,
					IsChange: spentFrom[uint32(account)],
				})
				s.metrics.matchedNotes.Inc()
				log.Debug("received note",
					zap.Int("tx", ti),
					zap.Int("output", oi),
					zap.Int("account", account),
					zap.Uint64("value", note.Value),
					zap.Uint64("position", w.Position()))
				break
			}
		}

		if len(wtx.ShieldedSpends) == 0 && len(wtx.ShieldedOutputs) == 0 {
			continue
		}
		results = append(results, ScannedTx{Tx: wtx, Witnesses: txWitnesses})
	}
	return results, nil
}

// ScanBlockBytes decodes a serialized compact block and scans it.
func (s *Scanner) ScanBlockBytes(
	data []byte,
	ivks []sapling.IncomingViewingKey,
	nullifiers map[[32]byte]uint32,
	tree *merkle.CommitmentTree,
	existing []*merkle.IncrementalWitness,
) ([]ScannedTx, error) {
	block, err := compact.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return s.ScanBlock(block, ivks, nullifiers, tree, existing)
}

func decodeOutput(out *compact.Output) ([32]byte, sapling.Point, error) {
	var cmu, epkBytes [32]byte
	if len(out.Cmu) != 32 {
		return cmu, sapling.Point{}, fmt.Errorf("cmu is %d bytes", len(out.Cmu))
	}
	copy(cmu[:], out.Cmu)
	if !sapling.IsCanonicalNode(cmu) {
		return cmu, sapling.Point{}, fmt.Errorf("cmu is not a canonical field element")
	}
	if len(out.Epk) != 32 {
		return cmu, sapling.Point{}, fmt.Errorf("epk is %d bytes", len(out.Epk))
	}
	copy(epkBytes[:], out.Epk)
	epk, err := sapling.ParsePoint(epkBytes)
	if err != nil {
		return cmu, sapling.Point{}, fmt.Errorf("epk: %w", err)
	}
	return cmu, epk, nil
}

func (s *Scanner) skip(log *zap.Logger, kind string, tx, index int, err error) {
	s.metrics.skipped.WithLabelValues(kind).Inc()
	log.Debug("skipping malformed record",
		zap.String("kind", kind),
		zap.Int("tx", tx),
		zap.Int("index", index),
		zap.Error(err))
}
