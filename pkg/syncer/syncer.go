// Package syncer drives the scanner over a stream of compact blocks and
// keeps the wallet store, commitment tree and note witnesses in step.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/suffix-labs/zcash-lightwallet/pkg/compact"
	"github.com/suffix-labs/zcash-lightwallet/pkg/merkle"
	"github.com/suffix-labs/zcash-lightwallet/pkg/sapling"
	"github.com/suffix-labs/zcash-lightwallet/pkg/scanner"
	"github.com/suffix-labs/zcash-lightwallet/pkg/wallet"
)

// DefaultBatchSize is the number of blocks scanned between checkpoints.
const DefaultBatchSize = 10_000

var ErrHeightMismatch = errors.New("syncer: block does not follow the last scanned height")

// Syncer owns the chain state of one wallet. It is not safe for
// concurrent use.
type Syncer struct {
	params    *sapling.Params
	store     wallet.SyncStore
	scanner   *scanner.Scanner
	fvks      []sapling.FullViewingKey
	ivks      []sapling.IncomingViewingKey
	logger    *zap.Logger
	batchSize uint64

	height  uint64
	started bool
	chain   *chainState
}

// chainState is what a scan mutates. ScanBlock works on a copy and
// replaces the live state only once the whole block has been recorded.
type chainState struct {
	tree       *merkle.CommitmentTree
	witnesses  map[wallet.NoteID]*merkle.IncrementalWitness
	nullifiers map[[32]byte]uint32
	nfNotes    map[[32]byte]wallet.NoteID
}

func newChainState() *chainState {
	return &chainState{
		tree:       merkle.NewCommitmentTree(),
		witnesses:  make(map[wallet.NoteID]*merkle.IncrementalWitness),
		nullifiers: make(map[[32]byte]uint32),
		nfNotes:    make(map[[32]byte]wallet.NoteID),
	}
}

func (c *chainState) clone() *chainState {
	d := &chainState{
		tree:       c.tree.Clone(),
		witnesses:  make(map[wallet.NoteID]*merkle.IncrementalWitness, len(c.witnesses)),
		nullifiers: make(map[[32]byte]uint32, len(c.nullifiers)),
		nfNotes:    make(map[[32]byte]wallet.NoteID, len(c.nfNotes)),
	}
	for id, w := range c.witnesses {
		d.witnesses[id] = w.Clone()
	}
	for nf, account := range c.nullifiers {
		d.nullifiers[nf] = account
	}
	for nf, id := range c.nfNotes {
		d.nfNotes[nf] = id
	}
	return d
}

// Option configures a Syncer.
type Option func(*Syncer)

func WithLogger(l *zap.Logger) Option {
	return func(s *Syncer) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithBatchSize(n uint64) Option {
	return func(s *Syncer) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// New restores the last checkpoint from store, or starts from an empty
// tree if none exists. fvks[i] is the viewing key of account i.
func New(params *sapling.Params, store wallet.SyncStore, sc *scanner.Scanner, fvks []sapling.FullViewingKey, opts ...Option) (*Syncer, error) {
	s := &Syncer{
		params:    params,
		store:     store,
		scanner:   sc,
		fvks:      fvks,
		logger:    zap.NewNop(),
		batchSize: DefaultBatchSize,
		chain:     newChainState(),
	}
	for _, opt := range opts {
		opt(s)
	}
	for i := range fvks {
		s.ivks = append(s.ivks, fvks[i].IncomingViewingKey())
	}

	cp, err := store.LoadCheckpoint()
	switch {
	case errors.Is(err, wallet.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("load checkpoint: %w", err)
	default:
		s.height, s.started = cp.Height, true
		s.chain.tree = cp.Tree
		s.chain.witnesses = cp.Witnesses
	}

	// Notes spent after the checkpoint was taken still have a witness in it.
	for id := range s.chain.witnesses {
		n, err := store.GetNote(id)
		switch {
		case errors.Is(err, wallet.ErrNotFound):
		case err != nil:
			return nil, fmt.Errorf("load note %s: %w", id, err)
		case n.Spent():
			delete(s.chain.witnesses, id)
		}
	}

	for account := range fvks {
		notes, err := store.GetUnspentNotes(uint32(account))
		if err != nil {
			return nil, fmt.Errorf("load unspent notes: %w", err)
		}
		for _, n := range notes {
			s.chain.nullifiers[n.Nullifier] = n.Account
			s.chain.nfNotes[n.Nullifier] = n.ID
		}
	}
	return s, nil
}

// Height returns the last scanned height and whether any block has been
// scanned.
func (s *Syncer) Height() (uint64, bool) {
	return s.height, s.started
}

// Tree returns the current commitment tree.
func (s *Syncer) Tree() *merkle.CommitmentTree {
	return s.chain.tree
}

// Witness returns the witness of a received, unspent note.
func (s *Syncer) Witness(id wallet.NoteID) (*merkle.IncrementalWitness, bool) {
	w, ok := s.chain.witnesses[id]
	return w, ok
}

// ScanBlock scans one block and records what it finds. After the first
// block, heights must be consecutive. If recording fails the tree and
// witnesses are left as they were, so the same block can be retried.
func (s *Syncer) ScanBlock(block *compact.Block) error {
	if s.started && block.Height != s.height+1 {
		return fmt.Errorf("%w: got %d after %d", ErrHeightMismatch, block.Height, s.height)
	}

	next := s.chain.clone()
	existing := make([]*merkle.IncrementalWitness, 0, len(next.witnesses))
	for _, w := range next.witnesses {
		existing = append(existing, w)
	}
	results, err := s.scanner.ScanBlock(block, s.ivks, next.nullifiers, next.tree, existing)
	if err != nil {
		return err
	}

	for _, res := range results {
		if err := s.record(next, block.Height, &res); err != nil {
			return err
		}
	}
	s.chain = next
	s.height, s.started = block.Height, true
	return nil
}

func (s *Syncer) record(next *chainState, height uint64, res *scanner.ScannedTx) error {
	txid := res.Tx.TxID
	for _, spend := range res.Tx.ShieldedSpends {
		if err := s.store.MarkSpent(spend.Nf, txid); err != nil && !errors.Is(err, wallet.ErrNotFound) {
			return fmt.Errorf("mark spent: %w", err)
		}
		if id, ok := next.nfNotes[spend.Nf]; ok {
			delete(next.witnesses, id)
		}
		delete(next.nullifiers, spend.Nf)
		delete(next.nfNotes, spend.Nf)
	}

	for i, out := range res.Tx.ShieldedOutputs {
		w := res.Witnesses[i]
		position := w.Position()
		fvk := &s.fvks[out.Account]
		nf, err := out.Note.Nullifier(s.params, &fvk.Nk, position)
		if err != nil {
			return fmt.Errorf("nullifier: %w", err)
		}

		note := &wallet.ReceivedNote{
			ID:        wallet.NoteID{TxID: txid, Index: uint32(out.Index)},
			Account:   out.Account,
			Note:      out.Note,
			Position:  position,
			Nullifier: nf,
			Height:    height,
			IsChange:  out.IsChange,
		}
		// A rescan keeps the lock and spend state from the first pass.
		prev, err := s.store.GetNote(note.ID)
		switch {
		case errors.Is(err, wallet.ErrNotFound):
		case err != nil:
			return fmt.Errorf("load note %s: %w", note.ID, err)
		default:
			note.Locked, note.SpentIn = prev.Locked, prev.SpentIn
		}
		if err := s.store.PutNote(note); err != nil {
			return fmt.Errorf("store note %s: %w", note.ID, err)
		}
		if note.Spent() {
			continue
		}
		next.witnesses[note.ID] = w
		next.nullifiers[nf] = out.Account
		next.nfNotes[nf] = note.ID

		s.logger.Info("received note",
			zap.Stringer("note", note.ID),
			zap.Uint32("account", out.Account),
			zap.Uint64("value", out.Note.Value),
			zap.Uint64("height", height),
			zap.Bool("change", out.IsChange))
	}
	return nil
}

// Checkpoint persists the current tree and witnesses.
func (s *Syncer) Checkpoint() error {
	return s.store.SaveCheckpoint(&wallet.Checkpoint{
		Height:    s.height,
		Tree:      s.chain.tree,
		Witnesses: s.chain.witnesses,
	})
}

// Sync scans every block from r, checkpointing every batch and at the
// end. Blocks at or below the last scanned height are skipped, so a feed
// that restarts before the checkpoint resumes cleanly. It returns the
// number of blocks scanned.
func (s *Syncer) Sync(ctx context.Context, r *compact.Reader) (int, error) {
	var count int
	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		block, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return count, fmt.Errorf("read block: %w", err)
		}
		if s.started && block.Height <= s.height {
			s.logger.Debug("skipping scanned block", zap.Uint64("height", block.Height))
			continue
		}
		if err := s.ScanBlock(block); err != nil {
			return count, err
		}
		count++

		if uint64(count)%s.batchSize == 0 {
			if err := s.Checkpoint(); err != nil {
				return count, fmt.Errorf("checkpoint: %w", err)
			}
			s.logger.Info("checkpoint", zap.Uint64("height", s.height), zap.Int("blocks", count))
		}
	}
	if count > 0 {
		if err := s.Checkpoint(); err != nil {
			return count, fmt.Errorf("checkpoint: %w", err)
		}
	}
	s.logger.Info("sync finished", zap.Uint64("height", s.height), zap.Int("blocks", count))
	return count, nil
}
