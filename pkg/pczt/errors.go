// Package pczt error types.
//
// Each role returns one of these types so callers can branch on Code
// without matching on message text.
package pczt

import "fmt"

// OutputError is returned when an output cannot be added.
//
// Code is ErrInvalidAmount for out-of-range values (the document is left
// untouched) or ErrDocumentCorrupt when the existing accumulator cannot be
// parsed (the document is unusable and must be rebuilt).
type OutputError struct {
	Code    string // Error code (e.g., ErrInvalidAmount)
	Message string // Human-readable error message
	Cause   error  // Underlying error (if any)
}

func (e *OutputError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("output error [%s]: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("output error [%s]: %s", e.Code, e.Message)
}

func (e *OutputError) Unwrap() error { return e.Cause }

// SignatureError is returned when a spend slot cannot be signed.
type SignatureError struct {
	Code       string // Error code (e.g., ErrInvalidAlpha)
	SpendIndex int    // Index of the slot that caused the error
	Message    string // Human-readable error message
	Cause      error  // Underlying error (if any)
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("signature error [%s] at spend %d: %s", e.Code, e.SpendIndex, e.Message)
}

func (e *SignatureError) Unwrap() error { return e.Cause }

// VerificationFailure is returned when a document's signatures or
// accumulator do not check out.
type VerificationFailure struct {
	Code    string                 // Error code (e.g., ErrInvalidSignature)
	Message string                 // Human-readable error message
	Details map[string]interface{} // Additional context about the failure
}

func (e *VerificationFailure) Error() string {
	return fmt.Sprintf("verification failed [%s]: %s", e.Code, e.Message)
}

// CombineError is returned when documents cannot be merged.
type CombineError struct {
	Code    string // Error code (e.g., ErrConflictingData)
	Message string // Human-readable error message
	Cause   error  // Underlying error (if any)
}

func (e *CombineError) Error() string {
	return fmt.Sprintf("combine error [%s]: %s", e.Code, e.Message)
}

func (e *CombineError) Unwrap() error { return e.Cause }

// ParseError is returned when document bytes cannot be decoded.
type ParseError struct {
	Message string // Human-readable error message
	Cause   error  // Underlying decode error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("parse error: %s", e.Message)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// Error codes used throughout the PCZT API.
const (
	ErrInvalidAmount    = "INVALID_AMOUNT"    // Output value outside [0, MaxMoney]
	ErrInvalidAddress   = "INVALID_ADDRESS"   // Recipient cannot receive notes
	ErrDocumentCorrupt  = "DOCUMENT_CORRUPT"  // Accumulator bytes do not parse
	ErrProofFailed      = "PROOF_FAILED"      // Prover could not build the output
	ErrInvalidAlpha     = "INVALID_ALPHA"     // Slot randomizer is not a scalar
	ErrInvalidSeed      = "INVALID_SEED"      // Seed length outside the HD range
	ErrInvalidSignature = "INVALID_SIGNATURE" // Signature does not verify
	ErrIncompletePCZT   = "INCOMPLETE_PCZT"   // Missing signatures or global data
	ErrInvalidPCZT      = "INVALID_PCZT"      // Structure is invalid or inconsistent
	ErrConflictingData  = "CONFLICTING_DATA"  // Documents disagree when combining
)
