// Package ota implements the chunked flash-write-plus-SHA-256-verify
// over-the-air update state machine.
package ota

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"

	"github.com/eriksl/esp32-sub000/internal/fault"
	"github.com/google/uuid"
)

type State int

const (
	Idle State = iota
	Writing
	Finished
	Committed
	Confirmed
)

// Writer is the external flash-writer collaborator (out of scope per
// the core specification; only its control protocol is fixed here).
type Writer interface {
	Write(chunk []byte) error
	Finalize() error
	Capacity() int
	StoredSHA256() string
	MarkBootPartition() error
	ConfirmValid() error
}

// Session drives one OTA update end to end. Any error at any stage
// aborts it: the writer is released, the hasher discarded, and the
// partition pointer cleared, per the original's "any error at any
// stage aborts" rule — Abort is idempotent and safe to call from any
// state.
type Session struct {
	ID             uuid.UUID
	state          State
	expectedLength int
	written        int
	writer         Writer
	hasher         hash.Hash
}

func NewSession() *Session { return &Session{state: Idle} }

func (s *Session) State() State { return s.state }

// Start begins a session against writer, which must already be open
// on the next-update partition and report its capacity. A session
// already active is aborted first before the new one begins.
func (s *Session) Start(length int, writer Writer) error {
	if s.state != Idle {
		s.Abort()
	}
	if length > writer.Capacity() {
		return fault.Newf(fault.Validation, "image length %d exceeds partition capacity %d", length, writer.Capacity())
	}
	s.ID = uuid.New()
	s.expectedLength = length
	s.written = 0
	s.writer = writer
	s.hasher = sha256.New()
	s.state = Writing
	return nil
}

// Write accepts one chunk. If isChecksum is true the chunk (which
// must be exactly 32 bytes) is written to flash but excluded from the
// running hash — it is the host's own trailing checksum block, not
// image content.
func (s *Session) Write(chunk []byte, isChecksum bool) error {
	if s.state != Writing {
		s.Abort()
		return fault.New(fault.Validation, "no OTA session in progress")
	}
	if isChecksum && len(chunk) != 32 {
		s.Abort()
		return fault.Newf(fault.Validation, "checksum chunk must be 32 bytes, got %d", len(chunk))
	}
	if s.written+len(chunk) > s.expectedLength {
		s.Abort()
		return fault.New(fault.Validation, "chunk exceeds announced OTA length")
	}
	if err := s.writer.Write(chunk); err != nil {
		s.Abort()
		return fault.Wrap(fault.Transient, err, "flash write failed")
	}
	if !isChecksum {
		s.hasher.Write(chunk)
	}
	s.written += len(chunk)
	return nil
}

// Finish finalizes the writer and the running hash, returning the
// hex-encoded digest for the host to confirm.
func (s *Session) Finish() (string, error) {
	if s.state != Writing {
		s.Abort()
		return "", fault.New(fault.Validation, "no OTA session in progress")
	}
	if err := s.writer.Finalize(); err != nil {
		s.Abort()
		return "", fault.Wrap(fault.Transient, err, "flash finalize failed")
	}
	s.state = Finished
	return hex.EncodeToString(s.hasher.Sum(nil)), nil
}

// Commit recomputes the stored image digest and, if it matches
// expectedHex, marks the new partition bootable.
func (s *Session) Commit(expectedHex string) error {
	if s.state != Finished {
		s.Abort()
		return fault.New(fault.Validation, "OTA session not finished")
	}
	if s.writer.StoredSHA256() != expectedHex {
		s.Abort()
		return fault.New(fault.Validation, "OTA hash mismatch")
	}
	if err := s.writer.MarkBootPartition(); err != nil {
		s.Abort()
		return fault.Wrap(fault.Transient, err, "mark boot partition failed")
	}
	s.state = Committed
	return nil
}

// Confirm cancels rollback after the host has rebooted into the new
// image. It is only valid once the image has actually been committed.
func (s *Session) Confirm() error {
	if s.state != Committed {
		s.Abort()
		return fault.New(fault.Validation, "OTA session not committed")
	}
	if err := s.writer.ConfirmValid(); err != nil {
		s.Abort()
		return fault.Wrap(fault.Transient, err, "confirm failed")
	}
	s.state = Confirmed
	return nil
}

func (s *Session) Abort() {
	s.state = Idle
	s.writer = nil
	s.hasher = nil
	s.written = 0
	s.expectedLength = 0
}
