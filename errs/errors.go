// Package errs defines the sentinel errors shared across the mf4 packages.
//
// Callers should match with errors.Is; call sites wrap these with
// fmt.Errorf("...: %w", err) to add the file offset or block tag.
package errs

import "errors"

var (
	// ErrNotAnMdfFile indicates the file does not start with the MDF signature.
	ErrNotAnMdfFile = errors.New("not an mdf file")
	// ErrUnsupportedVersion indicates an MDF version below 4.00.
	ErrUnsupportedVersion = errors.New("unsupported mdf version")

	// ErrBadBlockID indicates a block header tag that does not match the
	// expected schema tag.
	ErrBadBlockID = errors.New("invalid block id")
	// ErrSchemaMissing indicates no embedded schema exists for a block tag.
	ErrSchemaMissing = errors.New("no schema for block tag")
	// ErrLinkCountMismatch indicates a variable link tail that runs past the
	// link count declared in the block header.
	ErrLinkCountMismatch = errors.New("invalid link count")
	// ErrOffsetMismatch indicates declared data-list offsets that disagree
	// with the accumulated fragment lengths.
	ErrOffsetMismatch = errors.New("data list offset mismatch")

	// ErrInvalidBitSize indicates a bit count that no decoder width fits.
	ErrInvalidBitSize = errors.New("invalid bit size")
	// ErrUnsupportedCompression indicates a DZ zip type other than deflate.
	ErrUnsupportedCompression = errors.New("unsupported compression type")
	// ErrUnsupportedDataType indicates a channel data type outside 0..10.
	ErrUnsupportedDataType = errors.New("unsupported data type")
	// ErrUnsupportedConversion indicates a conversion that cannot be applied
	// to the given raw values.
	ErrUnsupportedConversion = errors.New("unsupported conversion")
	// ErrUnsupportedCnType indicates a channel type the reader cannot decode.
	ErrUnsupportedCnType = errors.New("unsupported channel type")

	// ErrDataCorrupt indicates a cycle count or decompressed length that
	// disagrees with the declared value. Fatal for the enclosing data group.
	ErrDataCorrupt = errors.New("data corrupted")
	// ErrOutOfRange indicates a read past the end of a data buffer.
	ErrOutOfRange = errors.New("virtual offset out of range")
)
