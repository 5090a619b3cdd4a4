package mppbin

import (
	"errors"
	"fmt"
)

// MetaMagic is the signature at the start of every meta table.
const MetaMagic uint32 = 0xFADFADBA

// Structural errors. Anything else wrong with a block is absorbed by the
// reader and surfaces as an absent value.
var (
	// ErrBadMagic indicates the block does not start with the expected signature.
	ErrBadMagic = errors.New("bad magic number")

	// ErrShortHeader indicates the block is shorter than its fixed header.
	ErrShortHeader = errors.New("header truncated")
)

// FormatError reports a sub-block that is not in the expected format at all.
type FormatError struct {
	Block string
	Err   error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %v", e.Block, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// CheckHeader validates the signature and minimum size of a meta table.
func CheckHeader(block string, meta []byte, headerSize int) error {
	if len(meta) < headerSize || len(meta) < 4 {
		return &FormatError{Block: block, Err: fmt.Errorf("%w: %d bytes, need %d", ErrShortHeader, len(meta), headerSize)}
	}
	if magic := uint32(Int(meta, 0)); magic != MetaMagic {
		return &FormatError{Block: block, Err: fmt.Errorf("%w: 0x%08X", ErrBadMagic, magic)}
	}
	return nil
}
