// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package blockhash

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
)

// Index is an immutable mapping between block hashes and their
// heights in canonical chain order. Heights are dense integers
// starting at zero.
type Index struct {
	hashes []string
	height map[string]int
}

// Load reads a newline-delimited hash list from r, one hash per
// height in ascending height order. If reverseBytes is set, each
// line's hex byte pairs are reversed before indexing, accommodating
// lists stored in display order rather than internal order. Blank
// lines are skipped.
func Load(r io.Reader, reverseBytes bool) (*Index, error) {
	idx := &Index{height: make(map[string]int)}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if reverseBytes {
			var err error
			if line, err = SwitchEndian(line); err != nil {
				return nil, errors.E(errors.Invalid, fmt.Sprintf("blockhash: hash list line %d", len(idx.hashes)+1), err)
			}
		}
		idx.height[line] = len(idx.hashes)
		idx.hashes = append(idx.hashes, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return idx, nil
}

// Len returns the chain length, i.e. the number of indexed heights.
func (x *Index) Len() int { return len(x.hashes) }

// Height returns the height of the given hash. A miss means the
// block is unknown to this index, which is an expected condition
// when the input holds blocks newer than the index snapshot.
func (x *Index) Height(hash string) (int, bool) {
	h, ok := x.height[hash]
	return h, ok
}

// Hash returns the hash at the given height. Hash panics if height
// is out of range.
func (x *Index) Hash(height int) string { return x.hashes[height] }
