// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Command linearize constructs a linear, no-fork stream from the
// block files of a full node, ordered by height according to an
// authoritative hash list.
//
// Usage:
//
//	linearize [-log=level] CONFIG-FILE
//
// The config file holds key=value lines ('#' starts a comment):
//
//	netmagic              network magic, hex (default f9beb4d9)
//	genesis               genesis block hash (sanity check only)
//	hashlist              hash list path, one hash per line (default hashlist.txt)
//	rev_hash_bytes        hash list is byte-reversed: true/false (default false)
//	input                 input block file directory (default input)
//	output                output directory for rotated files
//	output_file           single fixed output path (alternative to output)
//	max_out_sz            output rotation size in bytes (default 1000000000)
//	out_of_order_cache_sz cache budget in bytes (default 100000000)
//	split_timestamp       rotate on month boundaries: 0/1 (default 0)
//	file_timestamp        stamp output file mtimes: 0/1 (default 0)
//	debug_output          log skipped unknown blocks: true/false (default false)
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/must"
	"github.com/grailbio/linearize"
	"github.com/grailbio/linearize/blockhash"
)

func main() {
	log.SetFlags(0)
	log.AddFlags()
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] CONFIG-FILE\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	settings, err := readSettings(flag.Arg(0))
	must.Nilf(err, "read config %s", flag.Arg(0))
	cfg, opts, err := configure(settings)
	if err != nil {
		// Configuration problems end the process before any I/O.
		log.Fatal(err)
	}
	if opts.debug {
		log.SetLevel(log.Debug)
	}

	index, err := loadIndex(opts.hashList, opts.revHashBytes)
	must.Nilf(err, "load hash list %s", opts.hashList)
	log.Printf("read %d hashes", index.Len())
	if _, ok := index.Height(opts.genesis); !ok {
		// Report and proceed: the index may simply start elsewhere.
		log.Error.Printf("genesis block %s not found in hash list", opts.genesis)
	}

	lin, err := linearize.New(cfg, index)
	must.Nil(err)
	stats, err := lin.Run()
	if err != nil {
		log.Fatalf("%v (%d blocks scanned, %d of %d written)", err, stats.BlocksIn, stats.BlocksOut, stats.Expected)
	}
	if stats.Incomplete() {
		log.Printf("incomplete: %d of %d blocks written (%d scanned)", stats.BlocksOut, stats.Expected, stats.BlocksIn)
	}
}

func loadIndex(path string, revHashBytes bool) (_ *blockhash.Index, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fileio.CloseAndReport(f, &err)
	return blockhash.Load(f, revHashBytes)
}
