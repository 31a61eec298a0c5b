// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package linearize

import (
	"io"
	"os"

	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/grailbio/linearize/blockdata"
	"github.com/grailbio/linearize/blockhash"
)

// Progress is reported once per progressInterval blocks written.
const progressInterval = 1000

// Stats summarizes a linearization run.
type Stats struct {
	// BlocksIn counts input records recognized by the index.
	BlocksIn int
	// BlocksOut counts records written to the output.
	BlocksOut int
	// Expected is the chain length of the index.
	Expected int
}

// Incomplete reports whether the run ended before every indexed
// block was written, i.e. the input was exhausted early.
func (s Stats) Incomplete() bool { return s.BlocksOut < s.Expected }

// extent records where a pending block's payload lives on disk. The
// framing and header bytes are small and fixed-size, so they are
// kept in the extent itself; only the payload is ever re-read.
type extent struct {
	file    int
	offset  int64
	framing [blockdata.FramingSize]byte
	header  [blockdata.HeaderSize]byte
	size    int64
}

// A Linearizer copies blocks from a node's block files into
// height-ordered output files. It is single-threaded and not safe
// for concurrent use; a Linearizer runs once.
type Linearizer struct {
	cfg   Config
	index *blockhash.Index
	out   *outputWriter

	// nextHeight is the height of the next block due for output. It
	// is the sole emission gate: output order is ascending by height
	// no matter the input arrival order.
	nextHeight int
	extents    map[int]extent
	cache      map[int][]byte
	cacheSize  int64 // running payload byte total held in cache
	peakCache  int64

	stats Stats
}

// New returns a Linearizer that reorders the blocks named by index
// according to cfg.
func New(cfg Config, index *blockhash.Index) (*Linearizer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Linearizer{
		cfg:     cfg,
		index:   index,
		out:     newOutputWriter(cfg),
		extents: make(map[int]extent),
		cache:   make(map[int][]byte),
		stats:   Stats{Expected: index.Len()},
	}, nil
}

// Run scans the input block files in sequence and writes every
// indexed block in ascending height order. Running out of input
// files before the chain is complete is a normal outcome, reported
// through Stats rather than an error; corrupt framing and I/O
// failures abort the run with the stats accumulated so far.
func (l *Linearizer) Run() (Stats, error) {
	fileID, err := firstBlockFileID(l.cfg.InputDir)
	if err != nil {
		return l.stats, err
	}
	for l.nextHeight < l.index.Len() {
		name := blockFileName(l.cfg.InputDir, fileID)
		f, err := os.Open(name)
		if err != nil {
			// Ran out of input: normal termination for a live or
			// pruned source.
			log.Printf("premature end of block data: %v", err)
			break
		}
		log.Printf("input file %s", name)
		if err := l.scanFile(f, fileID); err != nil {
			l.out.close() // nolint: errcheck
			return l.stats, err
		}
		fileID++
	}
	if err := l.out.close(); err != nil {
		return l.stats, err
	}
	log.Printf("done (%d blocks written)", l.stats.BlocksOut)
	return l.stats, nil
}

// scanFile consumes one input file, emitting due blocks as they
// appear and recording extents for blocks that arrive early.
func (l *Linearizer) scanFile(f *os.File, fileID int) (err error) {
	defer fileio.CloseAndReport(f, &err)
	sc := blockdata.NewScanner(f, l.cfg.Magic)
	for l.nextHeight < l.index.Len() && sc.Scan() {
		hash := blockhash.Sum(sc.Header())
		height, ok := l.index.Height(hash)
		if !ok {
			// Nodes keep appending past the index snapshot, so
			// unknown blocks are expected; skip them.
			log.Debug.Printf("skipping unknown block %s", hash)
			if err := sc.SkipPayload(); err != nil {
				return err
			}
			continue
		}
		l.stats.BlocksIn++

		if height == l.nextHeight {
			payload, err := sc.Payload()
			if err != nil {
				return err
			}
			if err := l.emit(sc.Framing(), sc.Header(), payload); err != nil {
				return err
			}
			// A run of consecutive out-of-order arrivals may now be
			// complete; flush it.
			if err := l.drain(); err != nil {
				return err
			}
			continue
		}

		// Out of order: remember where the payload lives, and hold a
		// copy in memory while the cache budget allows. A sequential
		// read now is cheaper than a seek later.
		ext := extent{file: fileID, offset: sc.PayloadOffset(), size: sc.PayloadSize()}
		copy(ext.framing[:], sc.Framing())
		copy(ext.header[:], sc.Header())
		l.extents[height] = ext
		if l.cacheSize+ext.size <= l.cfg.CacheSize {
			payload, err := sc.Payload()
			if err != nil {
				return err
			}
			l.cache[height] = payload
			l.cacheSize += ext.size
			if l.cacheSize > l.peakCache {
				l.peakCache = l.cacheSize
			}
		} else if err := sc.SkipPayload(); err != nil {
			return err
		}
	}
	return sc.Err()
}

// drain writes every consecutive pending block starting at the next
// due height, taking payloads from the cache when present and
// re-reading them from the source file otherwise. Extents and cache
// entries are consumed exactly once.
func (l *Linearizer) drain() error {
	for {
		ext, ok := l.extents[l.nextHeight]
		if !ok {
			return nil
		}
		delete(l.extents, l.nextHeight)
		payload, ok := l.cache[l.nextHeight]
		if ok {
			delete(l.cache, l.nextHeight)
			l.cacheSize -= int64(len(payload))
		} else {
			var err error
			if payload, err = l.fetch(ext); err != nil {
				return err
			}
		}
		if err := l.emit(ext.framing[:], ext.header[:], payload); err != nil {
			return err
		}
	}
}

// fetch re-reads a pending block's payload from its source file. The
// handle is transient and does not disturb the main scan cursor.
func (l *Linearizer) fetch(ext extent) (payload []byte, err error) {
	f, err := os.Open(blockFileName(l.cfg.InputDir, ext.file))
	if err != nil {
		return nil, err
	}
	defer fileio.CloseAndReport(f, &err)
	payload = make([]byte, ext.size)
	n, err := f.ReadAt(payload, ext.offset)
	if err == io.EOF && n == len(payload) {
		err = nil
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (l *Linearizer) emit(framing, hdr, payload []byte) error {
	if err := l.out.write(framing, hdr, payload); err != nil {
		return err
	}
	l.nextHeight++
	l.stats.BlocksOut++
	if l.stats.BlocksOut%progressInterval == 0 {
		log.Printf("%d blocks scanned, %d blocks written (of %d, %.1f%% complete)",
			l.stats.BlocksIn, l.stats.BlocksOut, l.stats.Expected,
			100*float64(l.stats.BlocksOut)/float64(l.stats.Expected))
	}
	return nil
}
