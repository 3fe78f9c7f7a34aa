// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors. Callers match with errors.Is; wrapping adds context.
var (
	// Packet decoding errors
	ErrShortRead      = errors.New("grbr: short read")
	ErrPacketTooShort = errors.New("grbr: packet too short")

	// Integrity errors
	ErrCRC        = errors.New("grbr: crc mismatch")
	ErrValidation = errors.New("grbr: header validation failed")

	// Reassembly errors
	ErrAPIDMismatch    = errors.New("grbr: apid mismatch")
	ErrSequenceGap     = errors.New("grbr: sequence gap")
	ErrOrphanSegment   = errors.New("grbr: orphan segment")
	ErrNoPayloadHeader = errors.New("grbr: bundle has no payload header")

	// Product errors
	ErrMetadataConflict       = errors.New("grbr: duplicate metadata conflict")
	ErrUnrecognizedInstrument = errors.New("grbr: unrecognized instrument")
	ErrProductClosed          = errors.New("grbr: product closed")
	ErrMailboxClosed          = errors.New("grbr: mailbox closed")

	// Lifecycle errors
	ErrTimeout = errors.New("grbr: inactivity timeout")

	// Rendezvous errors
	ErrSourceTooLong = errors.New("grbr: source path too long")

	// Configuration errors
	ErrConfigInvalid = errors.New("grbr: invalid configuration")
)
