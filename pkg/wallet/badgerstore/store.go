// Package badgerstore persists the wallet in BadgerDB.
package badgerstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sort"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"github.com/suffix-labs/zcash-lightwallet/pkg/merkle"
	"github.com/suffix-labs/zcash-lightwallet/pkg/sapling"
	"github.com/suffix-labs/zcash-lightwallet/pkg/wallet"
)

var (
	prefixAddress   = []byte("addr/")
	prefixNote      = []byte("note/")
	prefixNullifier = []byte("nf/")
	prefixWitness   = []byte("cp/wit/")
	keyHeight       = []byte("cp/height")
	keyTree         = []byte("cp/tree")
)

// Store is a wallet.SyncStore backed by BadgerDB.
type Store struct {
	db     *badgerdb.DB
	logger *zap.Logger
}

var _ wallet.SyncStore = (*Store)(nil)

// Open opens or creates the database in dir. An empty dir opens an
// in-memory database.
func Open(dir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var opts badgerdb.Options
	if dir == "" {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("create wallet dir: %w", err)
		}
		opts = badgerdb.DefaultOptions(dir)
		opts.SyncWrites = true
		opts.ValueLogFileSize = 64 << 20
	}
	opts.BlockCacheSize = 32 << 20
	opts.IndexCacheSize = 16 << 20
	opts.NumMemtables = 2
	opts.Logger = &badgerLogger{logger: logger.Sugar()}

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	logger.Info("wallet store opened", zap.String("dir", dir), zap.Bool("in_memory", dir == ""))
	return &Store{db: db, logger: logger}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func key(prefix []byte, parts ...[]byte) []byte {
	k := append([]byte(nil), prefix...)
	for _, p := range parts {
		k = append(k, p...)
	}
	return k
}

func be32(x uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], x)
	return b[:]
}

func noteSuffix(id wallet.NoteID) []byte {
	return append(append([]byte(nil), id.TxID[:]...), be32(id.Index)...)
}

func noteIDFromSuffix(b []byte) (wallet.NoteID, error) {
	var id wallet.NoteID
	if len(b) != 36 {
		return id, fmt.Errorf("note key suffix is %d bytes", len(b))
	}
	copy(id.TxID[:], b[:32])
	id.Index = binary.BigEndian.Uint32(b[32:])
	return id, nil
}

func get(txn *badgerdb.Txn, k []byte) ([]byte, error) {
	item, err := txn.Get(k)
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, wallet.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func getNote(txn *badgerdb.Txn, id wallet.NoteID) (*wallet.ReceivedNote, error) {
	v, err := get(txn, key(prefixNote, noteSuffix(id)))
	if err != nil {
		return nil, fmt.Errorf("note %s: %w", id, err)
	}
	return decodeNote(v)
}

func putNote(txn *badgerdb.Txn, n *wallet.ReceivedNote) error {
	return txn.Set(key(prefixNote, noteSuffix(n.ID)), encodeNote(n))
}

func (s *Store) GetAddress(account uint32) (sapling.PaymentAddress, error) {
	var addr sapling.PaymentAddress
	err := s.db.View(func(txn *badgerdb.Txn) error {
		v, err := get(txn, key(prefixAddress, be32(account)))
		if err != nil {
			return fmt.Errorf("address for account %d: %w", account, err)
		}
		if len(v) != 43 {
			return fmt.Errorf("address for account %d: stored value is %d bytes", account, len(v))
		}
		addr, err = sapling.ParsePaymentAddress([43]byte(v))
		return err
	})
	return addr, err
}

func (s *Store) PutAddress(account uint32, addr sapling.PaymentAddress) error {
	enc := addr.Bytes()
	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(key(prefixAddress, be32(account)), enc[:])
	})
}

func (s *Store) GetNote(id wallet.NoteID) (*wallet.ReceivedNote, error) {
	var n *wallet.ReceivedNote
	err := s.db.View(func(txn *badgerdb.Txn) error {
		var err error
		n, err = getNote(txn, id)
		return err
	})
	return n, err
}

func (s *Store) PutNote(n *wallet.ReceivedNote) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		if err := putNote(txn, n); err != nil {
			return err
		}
		return txn.Set(key(prefixNullifier, n.Nullifier[:]), noteSuffix(n.ID))
	})
}

func (s *Store) GetUnspentNotes(account uint32) ([]*wallet.ReceivedNote, error) {
	var out []*wallet.ReceivedNote
	err := s.db.View(func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefixNote); it.ValidForPrefix(prefixNote); it.Next() {
			v, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			n, err := decodeNote(v)
			if err != nil {
				return fmt.Errorf("decode note %x: %w", it.Item().Key(), err)
			}
			if n.Account == account && !n.Spent() {
				out = append(out, n)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *Store) LockNotes(ids []wallet.NoteID) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		notes := make([]*wallet.ReceivedNote, 0, len(ids))
		for _, id := range ids {
			n, err := getNote(txn, id)
			if err != nil {
				return err
			}
			switch {
			case n.Spent():
				return fmt.Errorf("note %s: %w", id, wallet.ErrNoteSpent)
			case n.Locked:
				return fmt.Errorf("note %s: %w", id, wallet.ErrNoteLocked)
			}
			notes = append(notes, n)
		}
		for _, n := range notes {
			n.Locked = true
			if err := putNote(txn, n); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) UnlockNotes(ids []wallet.NoteID) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		for _, id := range ids {
			n, err := getNote(txn, id)
			if err != nil {
				return err
			}
			if !n.Locked {
				continue
			}
			n.Locked = false
			if err := putNote(txn, n); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) MarkSpent(nf [32]byte, txid [32]byte) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		suffix, err := get(txn, key(prefixNullifier, nf[:]))
		if err != nil {
			return fmt.Errorf("nullifier %x: %w", nf, err)
		}
		id, err := noteIDFromSuffix(suffix)
		if err != nil {
			return err
		}
		n, err := getNote(txn, id)
		if err != nil {
			return err
		}
		n.SpentIn = &txid
		n.Locked = false
		return putNote(txn, n)
	})
}

// SaveCheckpoint replaces the stored checkpoint atomically.
func (s *Store) SaveCheckpoint(cp *wallet.Checkpoint) error {
	tree, err := cp.Tree.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode tree: %w", err)
	}
	return s.db.Update(func(txn *badgerdb.Txn) error {
		var stale [][]byte
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		for it.Seek(prefixWitness); it.ValidForPrefix(prefixWitness); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		it.Close()
		for _, k := range stale {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}

		var h [8]byte
		binary.BigEndian.PutUint64(h[:], cp.Height)
		if err := txn.Set(keyHeight, h[:]); err != nil {
			return err
		}
		if err := txn.Set(keyTree, tree); err != nil {
			return err
		}
		for id, w := range cp.Witnesses {
			enc, err := w.MarshalBinary()
			if err != nil {
				return fmt.Errorf("encode witness %s: %w", id, err)
			}
			if err := txn.Set(key(prefixWitness, noteSuffix(id)), enc); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) LoadCheckpoint() (*wallet.Checkpoint, error) {
	cp := &wallet.Checkpoint{Witnesses: make(map[wallet.NoteID]*merkle.IncrementalWitness)}
	err := s.db.View(func(txn *badgerdb.Txn) error {
		h, err := get(txn, keyHeight)
		if err != nil {
			return fmt.Errorf("checkpoint: %w", err)
		}
		if len(h) != 8 {
			return fmt.Errorf("checkpoint height is %d bytes", len(h))
		}
		cp.Height = binary.BigEndian.Uint64(h)

		tree, err := get(txn, keyTree)
		if err != nil {
			return fmt.Errorf("checkpoint tree: %w", err)
		}
		if cp.Tree, err = merkle.ParseCommitmentTree(tree); err != nil {
			return err
		}

		it := txn.NewIterator(badgerdb.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefixWitness); it.ValidForPrefix(prefixWitness); it.Next() {
			item := it.Item()
			id, err := noteIDFromSuffix(item.Key()[len(prefixWitness):])
			if err != nil {
				return err
			}
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			w, err := merkle.ParseIncrementalWitness(v)
			if err != nil {
				return fmt.Errorf("witness %s: %w", id, err)
			}
			cp.Witnesses[id] = w
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cp, nil
}

// badgerLogger routes badger's internal logging into zap.
type badgerLogger struct {
	logger *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf("[badger] "+format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warnf("[badger] "+format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debugf("[badger] "+format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf("[badger] "+format, args...)
}
