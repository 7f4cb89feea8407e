package wallet

import (
	"fmt"
	"sort"
)

// NoteSelector picks notes to fund a payment of target zatoshis.
type NoteSelector interface {
	Select(notes []*ReceivedNote, target uint64) ([]*ReceivedNote, error)
}

// OldestFirst selects unlocked notes in mining order until target is
// covered.
type OldestFirst struct{}

// Select implements NoteSelector.
func (OldestFirst) Select(notes []*ReceivedNote, target uint64) ([]*ReceivedNote, error) {
	candidates := make([]*ReceivedNote, 0, len(notes))
	for _, n := range notes {
		if !n.Locked && !n.Spent() {
			candidates = append(candidates, n)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Height != candidates[j].Height {
			return candidates[i].Height < candidates[j].Height
		}
		return candidates[i].Position < candidates[j].Position
	})

	var (
		selected []*ReceivedNote
		total    uint64
	)
	for _, n := range candidates {
		if total >= target && len(selected) > 0 {
			break
		}
		selected = append(selected, n)
		total += n.Note.Value
	}
	if total < target {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, total, target)
	}
	return selected, nil
}

// SelectAndLock selects notes from the account's unspent set and locks
// them in the store.
func SelectAndLock(s Store, selector NoteSelector, account uint32, target uint64) ([]*ReceivedNote, error) {
	notes, err := s.GetUnspentNotes(account)
	if err != nil {
		return nil, err
	}
	selected, err := selector.Select(notes, target)
	if err != nil {
		return nil, err
	}
	ids := make([]NoteID, len(selected))
	for i, n := range selected {
		ids[i] = n.ID
	}
	if err := s.LockNotes(ids); err != nil {
		return nil, err
	}
	return selected, nil
}
