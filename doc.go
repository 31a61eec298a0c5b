// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package linearize reorders the block files written by a full node
// into a single height-ordered stream. Nodes append blocks to their
// block files in arrival order, which is not chain order; given an
// authoritative list of block hashes indexed by height, a Linearizer
// scans the input files once and emits every indexed block in strict
// ascending height order, splitting the output by size and month as
// configured.
//
// Blocks that arrive ahead of their height are held in a bounded
// in-memory cache; once the cache budget is spent, only their on-disk
// extents are recorded and their payloads are re-read from the source
// file when their height comes due. Blocks absent from the index
// (typically blocks newer than the index snapshot) are skipped.
package linearize
