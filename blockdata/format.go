// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package blockdata reads the append-only block files written by a
// full node. A block file is a stream of framed records, possibly
// interleaved with garbage bytes and zero padding:
//
//	magic   [4B]     // network tag
//	length  [4B LE]  // header + payload, in bytes
//	header  [80B]    // block header; bytes [68:72) hold an LE uint32 Unix time
//	payload [length-80]
//
// Records are not guaranteed to appear in chain order: nodes append
// blocks as they arrive.
package blockdata

import (
	"encoding/binary"
	"time"
)

const (
	// MagicSize is the size of the network tag that begins each record.
	MagicSize = 4
	// FramingSize is the size of the magic+length framing header.
	FramingSize = 8
	// HeaderSize is the size of the fixed block header.
	HeaderSize = 80
	// MaxPayloadSize bounds the declared payload size of a single
	// record. A larger declared length indicates corrupt framing.
	MaxPayloadSize = 128 << 20
)

// Magic is the network tag stored in the first 4 bytes of each
// record's framing.
type Magic = [MagicSize]byte

// MagicMainnet is the main network tag.
var MagicMainnet = Magic{0xf9, 0xbe, 0xb4, 0xd9}

// HeaderTime returns the Unix timestamp embedded in an 80-byte block
// header.
func HeaderTime(hdr []byte) uint32 {
	return binary.LittleEndian.Uint32(hdr[68:72])
}

// MonthOf returns the first instant of the (year, month) bucket that
// the given block timestamp falls into.
func MonthOf(ts uint32) time.Time {
	t := time.Unix(int64(ts), 0)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
