// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package blockhash computes block header hashes in the rendering
// convention used by externally produced hash lists, and maintains
// the height index derived from such a list.
package blockhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/grailbio/base/errors"
)

// HeaderSize is the size of a block header in bytes.
const HeaderSize = 80

const wordSize = 4

// Sum returns the canonical hash string of an 80-byte block header:
// SHA-256 applied twice, then each 4-byte word byte-swapped, then the
// word order reversed, then hex encoded. The two reversals convert
// the digest from wire byte order to the display order used by hash
// lists; both must be reproduced exactly for the result to match
// externally sourced hashes. Sum panics if hdr is not HeaderSize
// bytes; passing anything else is a programming error.
func Sum(hdr []byte) string {
	if len(hdr) != HeaderSize {
		panic(fmt.Sprintf("blockhash: header is %d bytes, want %d", len(hdr), HeaderSize))
	}
	h := sha256.Sum256(hdr)
	h = sha256.Sum256(h[:])
	b := swapWordBytes(h[:])
	b = reverseWords(b)
	return hex.EncodeToString(b)
}

// swapWordBytes returns a copy of b with the bytes of each 4-byte
// word reversed. len(b) must be a multiple of 4.
func swapWordBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i := 0; i < len(b); i += wordSize {
		out[i] = b[i+3]
		out[i+1] = b[i+2]
		out[i+2] = b[i+1]
		out[i+3] = b[i]
	}
	return out
}

// reverseWords returns a copy of b with its 4-byte words in reverse
// order. len(b) must be a multiple of 4.
func reverseWords(b []byte) []byte {
	out := make([]byte, len(b))
	for i := 0; i < len(b); i += wordSize {
		copy(out[len(b)-i-wordSize:], b[i:i+wordSize])
	}
	return out
}

// SwitchEndian reverses the order of the hex byte pairs in s. Hash
// lists are sometimes stored with byte-reversed hashes; switching
// the endianness of each line recovers the internal order.
func SwitchEndian(s string) (string, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return "", errors.E(errors.Invalid, fmt.Sprintf("blockhash: bad hash %q", s), err)
	}
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return hex.EncodeToString(b), nil
}
