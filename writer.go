// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package linearize

import (
	"os"
	"time"

	"github.com/grailbio/base/log"
	"github.com/grailbio/linearize/blockdata"
)

// outputWriter owns the current output file: it opens files on
// demand, rotates them on size and month boundaries, and stamps
// their mtimes on close. Rotation applies only in OutputDir mode; a
// fixed OutputFile is written straight through.
type outputWriter struct {
	cfg Config

	f     *os.File
	name  string
	index int   // index of the current (or next) output file
	size  int64 // bytes written to the current file

	lastMonth time.Time // latest (year, month) bucket seen
	highTS    uint32    // highest block timestamp written, >= cfg.TimestampFloor
}

func newOutputWriter(cfg Config) *outputWriter {
	return &outputWriter{cfg: cfg, highTS: cfg.TimestampFloor}
}

// write appends one record to the output, rotating first if the
// record would push the current file past the size limit or into a
// new month bucket. A record is never split across files.
func (w *outputWriter) write(framing, hdr, payload []byte) error {
	recSize := int64(len(framing) + len(hdr) + len(payload))
	if w.cfg.OutputDir != "" {
		if w.f != nil && w.size+recSize > w.cfg.MaxFileSize {
			if err := w.rotate(); err != nil {
				return err
			}
		}
		if w.cfg.SplitMonths {
			month := blockdata.MonthOf(blockdata.HeaderTime(hdr))
			if month.After(w.lastMonth) {
				if !w.lastMonth.IsZero() && w.f != nil {
					log.Printf("new month %s", month.Format("2006-01"))
					if err := w.rotate(); err != nil {
						return err
					}
				}
				w.lastMonth = month
			}
		}
	}
	if w.f == nil {
		if err := w.open(); err != nil {
			return err
		}
	}
	for _, b := range [][]byte{framing, hdr, payload} {
		if _, err := w.f.Write(b); err != nil {
			return err
		}
	}
	w.size += recSize
	if ts := blockdata.HeaderTime(hdr); ts > w.highTS {
		w.highTS = ts
	}
	return nil
}

func (w *outputWriter) open() error {
	if w.cfg.OutputFile != "" {
		w.name = w.cfg.OutputFile
	} else {
		w.name = blockFileName(w.cfg.OutputDir, w.index)
	}
	log.Printf("output file %s", w.name)
	f, err := os.Create(w.name)
	if err != nil {
		return err
	}
	w.f = f
	return nil
}

// rotate closes the current file and advances to the next index.
func (w *outputWriter) rotate() error {
	if err := w.close(); err != nil {
		return err
	}
	w.index++
	w.size = 0
	return nil
}

// close closes the current output file, if any, and stamps its mtime
// when so configured. The stamp is the highest block timestamp
// written so far, which lets downstream tools sort rotated files
// chronologically by filesystem metadata alone.
func (w *outputWriter) close() error {
	if w.f == nil {
		return nil
	}
	name := w.name
	err := w.f.Close()
	w.f, w.name = nil, ""
	if err != nil {
		return err
	}
	if w.cfg.SetFileTime && w.cfg.OutputDir != "" {
		return os.Chtimes(name, time.Now(), time.Unix(int64(w.highTS), 0))
	}
	return nil
}
