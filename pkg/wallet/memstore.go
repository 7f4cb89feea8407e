package wallet

import (
	"fmt"
	"sort"
	"sync"

	"github.com/suffix-labs/zcash-lightwallet/pkg/merkle"
	"github.com/suffix-labs/zcash-lightwallet/pkg/sapling"
)

// MemoryStore is a SyncStore kept entirely in memory.
type MemoryStore struct {
	mu         sync.RWMutex
	addresses  map[uint32]sapling.PaymentAddress
	notes      map[NoteID]*ReceivedNote
	nullifiers map[[32]byte]NoteID
	checkpoint *Checkpoint
}

var _ SyncStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		addresses:  make(map[uint32]sapling.PaymentAddress),
		notes:      make(map[NoteID]*ReceivedNote),
		nullifiers: make(map[[32]byte]NoteID),
	}
}

func (s *MemoryStore) GetAddress(account uint32) (sapling.PaymentAddress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	addr, ok := s.addresses[account]
	if !ok {
		return sapling.PaymentAddress{}, fmt.Errorf("address for account %d: %w", account, ErrNotFound)
	}
	return addr, nil
}

func (s *MemoryStore) PutAddress(account uint32, addr sapling.PaymentAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addresses[account] = addr
	return nil
}

func (s *MemoryStore) GetNote(id NoteID) (*ReceivedNote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.notes[id]
	if !ok {
		return nil, fmt.Errorf("note %s: %w", id, ErrNotFound)
	}
	return n.Clone(), nil
}

func (s *MemoryStore) PutNote(note *ReceivedNote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[note.ID] = note.Clone()
	s.nullifiers[note.Nullifier] = note.ID
	return nil
}

func (s *MemoryStore) GetUnspentNotes(account uint32) ([]*ReceivedNote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ReceivedNote
	for _, n := range s.notes {
		if n.Account == account && !n.Spent() {
			out = append(out, n.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *MemoryStore) LockNotes(ids []NoteID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		n, ok := s.notes[id]
		switch {
		case !ok:
			return fmt.Errorf("note %s: %w", id, ErrNotFound)
		case n.Spent():
			return fmt.Errorf("note %s: %w", id, ErrNoteSpent)
		case n.Locked:
			return fmt.Errorf("note %s: %w", id, ErrNoteLocked)
		}
	}
	for _, id := range ids {
		s.notes[id].Locked = true
	}
	return nil
}

func (s *MemoryStore) UnlockNotes(ids []NoteID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if _, ok := s.notes[id]; !ok {
			return fmt.Errorf("note %s: %w", id, ErrNotFound)
		}
	}
	for _, id := range ids {
		s.notes[id].Locked = false
	}
	return nil
}

func (s *MemoryStore) MarkSpent(nf [32]byte, txid [32]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.nullifiers[nf]
	if !ok {
		return fmt.Errorf("nullifier %x: %w", nf, ErrNotFound)
	}
	n := s.notes[id]
	n.SpentIn = &txid
	n.Locked = false
	return nil
}

func (s *MemoryStore) SaveCheckpoint(cp *Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoint = cloneCheckpoint(cp)
	return nil
}

func (s *MemoryStore) LoadCheckpoint() (*Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.checkpoint == nil {
		return nil, fmt.Errorf("checkpoint: %w", ErrNotFound)
	}
	return cloneCheckpoint(s.checkpoint), nil
}

func cloneCheckpoint(cp *Checkpoint) *Checkpoint {
	c := &Checkpoint{
		Height:    cp.Height,
		Tree:      cp.Tree.Clone(),
		Witnesses: make(map[NoteID]*merkle.IncrementalWitness, len(cp.Witnesses)),
	}
	for id, w := range cp.Witnesses {
		c.Witnesses[id] = w.Clone()
	}
	return c
}
