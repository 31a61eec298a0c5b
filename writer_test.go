// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package linearize

import (
	"io/ioutil"
	"os"
	"testing"
	"time"

	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

// writeN writes n records with the given timestamp and payload size
// through w.
func writeN(t *testing.T, w *outputWriter, n int, ts uint32, payloadSize int) {
	t.Helper()
	hdr := testHeader(ts, 0x01)
	payload := make([]byte, payloadSize)
	framing := frame(hdr, payload)[:8]
	for i := 0; i < n; i++ {
		require.NoError(t, w.write(framing, hdr, payload))
	}
}

func fileSize(t *testing.T, name string) int64 {
	t.Helper()
	info, err := os.Stat(name)
	require.NoError(t, err)
	return info.Size()
}

func TestWriterSizeRotation(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "writer")
	defer cleanup()

	// Records are 8+80+12 = 100 bytes; a 250-byte limit fits two.
	cfg := Config{Magic: testMagic, OutputDir: dir, MaxFileSize: 250, TimestampFloor: DefaultTimestampFloor}
	w := newOutputWriter(cfg)
	writeN(t, w, 5, 1420070400, 12)
	require.NoError(t, w.close())

	expect.EQ(t, fileSize(t, blockFileName(dir, 0)), int64(200))
	expect.EQ(t, fileSize(t, blockFileName(dir, 1)), int64(200))
	expect.EQ(t, fileSize(t, blockFileName(dir, 2)), int64(100))
	_, err := os.Stat(blockFileName(dir, 3))
	expect.True(t, os.IsNotExist(err))
}

func TestWriterExactFit(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "writer")
	defer cleanup()

	// A record that lands exactly on the limit does not rotate.
	cfg := Config{Magic: testMagic, OutputDir: dir, MaxFileSize: 200, TimestampFloor: DefaultTimestampFloor}
	w := newOutputWriter(cfg)
	writeN(t, w, 2, 1420070400, 12)
	require.NoError(t, w.close())

	expect.EQ(t, fileSize(t, blockFileName(dir, 0)), int64(200))
	_, err := os.Stat(blockFileName(dir, 1))
	expect.True(t, os.IsNotExist(err))
}

func TestWriterOversizedRecord(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "writer")
	defer cleanup()

	// A record larger than the limit is never split: it overshoots
	// into a file of its own.
	cfg := Config{Magic: testMagic, OutputDir: dir, MaxFileSize: 150, TimestampFloor: DefaultTimestampFloor}
	w := newOutputWriter(cfg)
	writeN(t, w, 1, 1420070400, 12)  // 100 bytes
	writeN(t, w, 1, 1420070400, 300) // 388 bytes, oversized
	writeN(t, w, 1, 1420070400, 12)
	require.NoError(t, w.close())

	expect.EQ(t, fileSize(t, blockFileName(dir, 0)), int64(100))
	expect.EQ(t, fileSize(t, blockFileName(dir, 1)), int64(388))
	expect.EQ(t, fileSize(t, blockFileName(dir, 2)), int64(100))
}

func TestWriterMonthSplit(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "writer")
	defer cleanup()

	const (
		jan2015 = 1420070400
		feb2015 = 1422748800
	)
	cfg := Config{Magic: testMagic, OutputDir: dir, MaxFileSize: DefaultMaxFileSize,
		SplitMonths: true, TimestampFloor: DefaultTimestampFloor}
	w := newOutputWriter(cfg)
	writeN(t, w, 2, jan2015, 10)
	writeN(t, w, 1, jan2015+86400, 10)
	writeN(t, w, 2, feb2015, 10)
	require.NoError(t, w.close())

	expect.EQ(t, fileSize(t, blockFileName(dir, 0)), int64(3*98))
	expect.EQ(t, fileSize(t, blockFileName(dir, 1)), int64(2*98))
}

func TestWriterSetFileTime(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "writer")
	defer cleanup()

	const (
		jan2015 = 1420070400
		feb2015 = 1422748800
	)
	cfg := Config{Magic: testMagic, OutputDir: dir, MaxFileSize: DefaultMaxFileSize,
		SplitMonths: true, SetFileTime: true, TimestampFloor: DefaultTimestampFloor}
	w := newOutputWriter(cfg)
	writeN(t, w, 1, jan2015, 10)
	writeN(t, w, 1, jan2015+3600, 10)
	writeN(t, w, 1, feb2015, 10)
	require.NoError(t, w.close())

	// Each finished file carries the highest timestamp written to it.
	info, err := os.Stat(blockFileName(dir, 0))
	require.NoError(t, err)
	expect.True(t, info.ModTime().Equal(time.Unix(jan2015+3600, 0)))

	info, err = os.Stat(blockFileName(dir, 1))
	require.NoError(t, err)
	expect.True(t, info.ModTime().Equal(time.Unix(feb2015, 0)))
}

func TestWriterTimestampFloor(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "writer")
	defer cleanup()

	// Block timestamps below the floor never drag file mtimes into
	// the deep past.
	cfg := Config{Magic: testMagic, OutputDir: dir, MaxFileSize: DefaultMaxFileSize,
		SetFileTime: true, TimestampFloor: DefaultTimestampFloor}
	w := newOutputWriter(cfg)
	writeN(t, w, 1, 1000, 10)
	require.NoError(t, w.close())

	info, err := os.Stat(blockFileName(dir, 0))
	require.NoError(t, err)
	expect.True(t, info.ModTime().Equal(time.Unix(DefaultTimestampFloor, 0)))
}

func TestWriterFixedPathIgnoresRotation(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "writer")
	defer cleanup()

	name := dir + "/bootstrap.dat"
	cfg := Config{Magic: testMagic, OutputFile: name, SplitMonths: true, TimestampFloor: DefaultTimestampFloor}
	w := newOutputWriter(cfg)
	writeN(t, w, 1, 1420070400, 10)
	writeN(t, w, 1, 1422748800, 10) // new month: no rotation in fixed-path mode
	require.NoError(t, w.close())

	b, err := ioutil.ReadFile(name)
	require.NoError(t, err)
	expect.EQ(t, len(b), 2*98)
}

func TestWriterCloseIdempotent(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "writer")
	defer cleanup()

	cfg := Config{Magic: testMagic, OutputDir: dir, MaxFileSize: 100, TimestampFloor: DefaultTimestampFloor}
	w := newOutputWriter(cfg)
	require.NoError(t, w.close()) // nothing open yet
	writeN(t, w, 1, 1420070400, 10)
	require.NoError(t, w.close())
	require.NoError(t, w.close())
}
