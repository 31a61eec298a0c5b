// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package linearize

import (
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strconv"

	"github.com/gobwas/glob"
	"github.com/grailbio/base/log"
)

// Block files carry a fixed zero-padded index: blk00000.dat,
// blk00001.dat, ...
const blockFileFormat = "blk%05d.dat"

var blockFilePattern = glob.MustCompile("blk[0-9][0-9][0-9][0-9][0-9].dat")

// blockFileName returns the path of the block file with the given
// index under dir.
func blockFileName(dir string, n int) string {
	return filepath.Join(dir, fmt.Sprintf(blockFileFormat, n))
}

// firstBlockFileID returns the lowest block file index present in
// dir. A pruned node deletes its oldest block files, so the first
// index is not necessarily zero. If no block files are present the
// index is zero.
func firstBlockFileID(dir string) (int, error) {
	ents, err := ioutil.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	first := -1
	for _, ent := range ents {
		name := ent.Name()
		if !blockFilePattern.Match(name) {
			continue
		}
		n, err := strconv.Atoi(name[3:8])
		if err != nil {
			continue
		}
		if first < 0 || n < first {
			first = n
		}
	}
	if first < 0 {
		log.Debug.Printf("no block files in %s, starting at 0", dir)
		return 0, nil
	}
	return first, nil
}
