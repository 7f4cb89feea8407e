// Package roles implements the PCZT role pattern.
//
// PCZT roles separate transaction construction into distinct responsibilities:
//   - Creator: starts an empty document
//   - Constructor: adds shielded outputs and spend slots, keeping the
//     binding accumulator in step
//   - Signer: fills the spend slots controlled by one HD seed
//   - Combiner: merges documents signed in parallel
//   - IoFinalizer: checks the accumulator and produces the binding signature
//
// Each role can be executed by different parties or at different times; the
// serialized document is the hand-off format between them.
package roles

import (
	"github.com/suffix-labs/zcash-lightwallet/pkg/pczt"
)

// Creator initializes a document with no spends or outputs.
type Creator struct{}

// NewCreator creates a new Creator.
func NewCreator() *Creator {
	return &Creator{}
}

// Create returns an empty document. The global section appears with the
// first output or spend slot.
func (c *Creator) Create() *pczt.PCZT {
	return pczt.New()
}
