// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package blockdata

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/grailbio/base/errors"
)

// Scanner scans a single block file for framed records. It tolerates
// garbage between records by re-syncing one byte past the start of
// the previous match attempt, and treats an empty read or a leading
// NUL byte as the end of useful data (block files are preallocated
// and zero-filled past the last record).
//
// After Scan reports a record, the caller must consume its payload
// by calling exactly one of Payload or SkipPayload before calling
// Scan again. Payload bytes are opaque to the scanner.
//
//	sc := blockdata.NewScanner(f, magic)
//	for sc.Scan() {
//		hdr := sc.Header()
//		...
//	}
//	err := sc.Err()
type Scanner struct {
	r     io.ReadSeeker
	magic Magic
	err   errors.Once

	framing     [FramingSize]byte
	header      [HeaderSize]byte
	payloadSize int64
	payloadOff  int64
	pending     bool
}

// NewScanner returns a scanner that reads records delimited by the
// given magic tag from r. The reader must be positioned at the start
// of the file.
func NewScanner(r io.ReadSeeker, magic Magic) *Scanner {
	return &Scanner{r: r, magic: magic}
}

// Scan advances to the next record in the file. It returns false at
// the end of the file or on error; Err distinguishes the two.
func (s *Scanner) Scan() bool {
	if s.err.Err() != nil {
		return false
	}
	if s.pending {
		panic("blockdata: Scan called with payload neither read nor skipped")
	}
	for {
		if _, err := io.ReadFull(s.r, s.framing[:]); err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				s.err.Set(err)
			}
			return false
		}
		if s.framing[0] == 0x00 {
			// Zero padding past the last record.
			return false
		}
		if !bytes.Equal(s.framing[:MagicSize], s.magic[:]) {
			// Re-sync: rewind 7 bytes so the next attempt starts one
			// byte past the start of this one.
			if _, err := s.r.Seek(-(FramingSize - 1), io.SeekCurrent); err != nil {
				s.err.Set(err)
				return false
			}
			continue
		}
		length := int64(binary.LittleEndian.Uint32(s.framing[MagicSize:]))
		if length < HeaderSize || length-HeaderSize > MaxPayloadSize {
			s.err.Set(errors.E(errors.Integrity, fmt.Sprintf("blockdata: implausible record length %d", length)))
			return false
		}
		if _, err := io.ReadFull(s.r, s.header[:]); err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			s.err.Set(errors.E("blockdata: short header read", err))
			return false
		}
		off, err := s.r.Seek(0, io.SeekCurrent)
		if err != nil {
			s.err.Set(err)
			return false
		}
		s.payloadOff = off
		s.payloadSize = length - HeaderSize
		s.pending = true
		return true
	}
}

// Framing returns the 8-byte framing header of the current record.
// The returned slice is valid until the next call to Scan.
func (s *Scanner) Framing() []byte { return s.framing[:] }

// Header returns the 80-byte block header of the current record. The
// returned slice is valid until the next call to Scan.
func (s *Scanner) Header() []byte { return s.header[:] }

// PayloadSize returns the payload size of the current record.
func (s *Scanner) PayloadSize() int64 { return s.payloadSize }

// PayloadOffset returns the file offset at which the current
// record's payload begins.
func (s *Scanner) PayloadOffset() int64 { return s.payloadOff }

// Payload reads and returns the current record's payload, advancing
// past it.
func (s *Scanner) Payload() ([]byte, error) {
	if !s.pending {
		panic("blockdata: Payload called without a pending record")
	}
	s.pending = false
	payload := make([]byte, s.payloadSize)
	if _, err := io.ReadFull(s.r, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		err = errors.E("blockdata: short payload read", err)
		s.err.Set(err)
		return nil, err
	}
	return payload, nil
}

// SkipPayload seeks past the current record's payload without
// reading it.
func (s *Scanner) SkipPayload() error {
	if !s.pending {
		panic("blockdata: SkipPayload called without a pending record")
	}
	s.pending = false
	if _, err := s.r.Seek(s.payloadSize, io.SeekCurrent); err != nil {
		s.err.Set(err)
		return err
	}
	return nil
}

// Err returns the first error encountered by the scanner, if any.
// Reaching the end of the file is not an error.
func (s *Scanner) Err() error { return s.err.Err() }
