// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package linearize

import (
	"github.com/grailbio/base/errors"
	"github.com/grailbio/linearize/blockdata"
)

const (
	// DefaultMaxFileSize is the conventional output rotation size.
	DefaultMaxFileSize = 1000 * 1000 * 1000
	// DefaultCacheSize is the conventional out-of-order cache budget.
	DefaultCacheSize = 100 * 1000 * 1000
	// DefaultTimestampFloor is the baseline for output file mtime
	// stamping: stamping never sets a file time below it, so rotated
	// files stay chronologically sortable without mtimes drifting
	// into the deep past. The value is load-bearing for downstream
	// tooling and must not be re-derived.
	DefaultTimestampFloor = 1408893517 - 315360000
)

// Config carries the settings for one linearization run. It is
// immutable once passed to New; there is no ambient state. Zero
// fields are not defaulted here: callers (see cmd/linearize) choose
// their own defaults, and a zero CacheSize legitimately disables the
// out-of-order cache.
type Config struct {
	// Magic is the network tag that delimits records in the input
	// files. Required.
	Magic blockdata.Magic

	// InputDir holds the node's block files, named blkNNNNN.dat.
	InputDir string

	// OutputFile, if set, sends all output to a single fixed path
	// with no rotation. Exactly one of OutputFile and OutputDir must
	// be set.
	OutputFile string

	// OutputDir, if set, holds rotated output files named
	// blkNNNNN.dat, numbered from zero.
	OutputDir string

	// MaxFileSize rotates the output before a record would push the
	// current file past this many bytes. A single record larger than
	// MaxFileSize still occupies one file; records are never split.
	// Ignored in OutputFile mode.
	MaxFileSize int64

	// CacheSize bounds the total payload bytes held in memory for
	// blocks that arrived ahead of their height. Zero disables the
	// cache, forcing every out-of-order payload to be re-read from
	// disk when due.
	CacheSize int64

	// SplitMonths rotates the output whenever block timestamps
	// advance into a new (year, month) bucket.
	SplitMonths bool

	// SetFileTime stamps each finished output file's mtime with the
	// highest block timestamp seen so far, clamped below by
	// TimestampFloor.
	SetFileTime bool

	// TimestampFloor clamps SetFileTime stamps from below.
	TimestampFloor uint32
}

func (c Config) validate() error {
	if c.Magic == (blockdata.Magic{}) {
		return errors.E(errors.Invalid, "linearize: no network magic")
	}
	if c.InputDir == "" {
		return errors.E(errors.Invalid, "linearize: no input directory")
	}
	if (c.OutputFile == "") == (c.OutputDir == "") {
		return errors.E(errors.Invalid, "linearize: exactly one of OutputFile and OutputDir must be set")
	}
	if c.OutputDir != "" && c.MaxFileSize <= 0 {
		return errors.E(errors.Invalid, "linearize: MaxFileSize must be positive")
	}
	if c.CacheSize < 0 {
		return errors.E(errors.Invalid, "linearize: negative CacheSize")
	}
	return nil
}
