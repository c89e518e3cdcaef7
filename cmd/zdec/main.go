// Copyright (C) 2026 Tadpole Labs, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// zdec decompresses zstandard streams incrementally.
//
// Usage:
//
//	zdec [-c config.yaml] [-chunk n] [-o output] [input]
//
// The input is read in -chunk-sized pieces and driven through
// a streaming decode session, so memory use is bounded by the
// session's arena regardless of stream size. With no input
// argument (or "-") it reads standard input.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	zstdcodec "github.com/tadpole-labs/zstd-codec-lib"
)

var (
	dashc     string
	dasho     string
	dashchunk int
)

func init() {
	flag.StringVar(&dashc, "c", "", "config file (yaml)")
	flag.StringVar(&dasho, "o", "-", "output file (or - for stdout)")
	flag.IntVar(&dashchunk, "chunk", 64*1024, "input chunk size in bytes")
}

func exitf(f string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, f, args...)
	os.Exit(1)
}

// run drives ses over the whole of in, writing decoded bytes
// to out. src and dst bound the per-call input chunk and
// output window. The input is truncated if it ends while a
// frame is still in progress; readers that report io.EOF on a
// separate final zero-byte read are handled without an extra
// decode call.
func run(ses *zstdcodec.Session, in io.Reader, out io.Writer, src, dst []byte) error {
	eof := false
	pending := 0 // input bytes the decoder still wants; 0 at a frame boundary
	for !eof {
		n, rerr := in.Read(src)
		if rerr != nil && rerr != io.EOF {
			return fmt.Errorf("read: %w", rerr)
		}
		eof = rerr == io.EOF
		if n == 0 {
			continue
		}
		ses.In = zstdcodec.Buffer{Data: src[:n]}
		for {
			ses.Out = zstdcodec.Buffer{Data: dst}
			hint, err := ses.Step()
			if err != nil {
				return fmt.Errorf("decode: %w", err)
			}
			if ses.Out.Pos > 0 {
				if _, err := out.Write(dst[:ses.Out.Pos]); err != nil {
					return fmt.Errorf("write: %w", err)
				}
			}
			if hint == 0 && ses.In.Pos >= len(ses.In.Data) {
				pending = 0
				break // frame boundary, take the next chunk
			}
			if ses.Out.Pos == len(dst) {
				continue // more output may be pending
			}
			if ses.In.Pos >= len(ses.In.Data) {
				pending = hint
				break // mid-frame, need the next chunk
			}
		}
	}
	if pending != 0 {
		return fmt.Errorf("decode: truncated input (want %d more bytes)", pending)
	}
	return nil
}

func main() {
	flag.Parse()
	if dashchunk <= 0 {
		exitf("bad -chunk %d\n", dashchunk)
	}
	var cfg *zstdcodec.Config
	if dashc != "" {
		c, err := zstdcodec.LoadConfig(dashc)
		if err != nil {
			exitf("loading config: %s\n", err)
		}
		cfg = c
	}

	in := io.Reader(os.Stdin)
	if name := flag.Arg(0); name != "" && name != "-" {
		f, err := os.Open(name)
		if err != nil {
			exitf("%s\n", err)
		}
		defer f.Close()
		in = f
	}
	out := io.Writer(os.Stdout)
	if dasho != "-" {
		f, err := os.Create(dasho)
		if err != nil {
			exitf("%s\n", err)
		}
		defer f.Close()
		out = f
	}

	ses, err := zstdcodec.NewSession(nil, cfg)
	if err != nil {
		exitf("creating session: %s\n", err)
	}
	// the compressed bytes land directly in arena memory,
	// the same region the session stages through
	src := ses.Arena().Alloc(dashchunk)
	dst := ses.Arena().Alloc(128 * 1024)
	if src == nil || dst == nil {
		exitf("arena too small for -chunk %d\n", dashchunk)
	}
	if err := run(ses, in, out, src, dst); err != nil {
		exitf("%s\n", err)
	}
}
