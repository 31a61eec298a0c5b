// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/linearize"
	"github.com/grailbio/linearize/blockdata"
)

// defaults are the settings assumed for keys absent from the config
// file. These match the conventions of existing config files, so
// they are part of the tool's contract.
var defaults = map[string]string{
	"netmagic":              "f9beb4d9",
	"genesis":               "000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f",
	"hashlist":              "hashlist.txt",
	"rev_hash_bytes":        "false",
	"input":                 "input",
	"max_out_sz":            "1000000000",
	"out_of_order_cache_sz": "100000000",
	"split_timestamp":       "0",
	"file_timestamp":        "0",
	"debug_output":          "false",
}

// runOpts are the settings consumed by main itself rather than by
// the linearizer.
type runOpts struct {
	hashList     string
	genesis      string
	revHashBytes bool
	debug        bool
}

// readSettings parses a key=value config file. Comment lines start
// with '#'; lines that don't parse are ignored, as are unknown keys.
func readSettings(path string) (_ map[string]string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fileio.CloseAndReport(f, &err)

	settings := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		i := strings.Index(line, "=")
		if i <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:i])
		value := strings.TrimSpace(line[i+1:])
		if key == "" || value == "" {
			continue
		}
		settings[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return settings, nil
}

// configure interprets settings, fills in defaults, and splits the
// result into the engine Config and main's own options.
func configure(settings map[string]string) (linearize.Config, runOpts, error) {
	get := func(key string) string {
		if v, ok := settings[key]; ok {
			return v
		}
		return defaults[key]
	}

	var cfg linearize.Config
	var opts runOpts

	magic, err := hex.DecodeString(get("netmagic"))
	if err != nil || len(magic) != blockdata.MagicSize {
		return cfg, opts, errors.E(errors.Invalid, fmt.Sprintf("bad netmagic %q", get("netmagic")), err)
	}
	copy(cfg.Magic[:], magic)

	cfg.InputDir = get("input")
	cfg.OutputDir = settings["output"]
	if cfg.OutputDir == "" {
		cfg.OutputFile = settings["output_file"]
	}
	if cfg.OutputDir == "" && cfg.OutputFile == "" {
		return cfg, opts, errors.E(errors.Invalid, "missing output file / directory")
	}

	if cfg.MaxFileSize, err = strconv.ParseInt(get("max_out_sz"), 10, 64); err != nil {
		return cfg, opts, errors.E(errors.Invalid, "bad max_out_sz", err)
	}
	if cfg.CacheSize, err = strconv.ParseInt(get("out_of_order_cache_sz"), 10, 64); err != nil {
		return cfg, opts, errors.E(errors.Invalid, "bad out_of_order_cache_sz", err)
	}
	split, err := strconv.Atoi(get("split_timestamp"))
	if err != nil {
		return cfg, opts, errors.E(errors.Invalid, "bad split_timestamp", err)
	}
	cfg.SplitMonths = split != 0
	stamp, err := strconv.Atoi(get("file_timestamp"))
	if err != nil {
		return cfg, opts, errors.E(errors.Invalid, "bad file_timestamp", err)
	}
	cfg.SetFileTime = stamp != 0
	cfg.TimestampFloor = linearize.DefaultTimestampFloor

	opts.hashList = get("hashlist")
	// The index holds hashes in internal order (Load un-reverses each
	// line when rev_hash_bytes is set), so the genesis reference is
	// used as given.
	opts.genesis = strings.ToLower(get("genesis"))
	opts.revHashBytes = strings.ToLower(get("rev_hash_bytes")) == "true"
	opts.debug = strings.ToLower(get("debug_output")) == "true"
	return cfg, opts, nil
}
