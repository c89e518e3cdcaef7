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

package zfmt

// CompressedSize walks the frame at the front of src and
// returns its total encoded size, including the header,
// all block payloads, and the trailing checksum if the
// frame declares one. For skippable frames it returns the
// skipped extent. It fails with ErrTruncated when src ends
// before the frame does, so a nil error guarantees the
// whole frame is present in src.
func CompressedSize(src []byte) (int, error) {
	hdr, need, err := Parse(src)
	if err != nil {
		return 0, err
	}
	if need != 0 {
		return 0, ErrTruncated
	}
	if hdr.Type == FrameSkippable {
		n := hdr.Size + int(hdr.SkipSize)
		if n > len(src) {
			return 0, ErrTruncated
		}
		return n, nil
	}
	pos := hdr.Size
	for {
		if pos+BlockHeaderSize > len(src) {
			return 0, ErrTruncated
		}
		blk, err := ParseBlockHeader(src[pos:])
		if err != nil {
			return 0, err
		}
		pos += BlockHeaderSize + blk.PayloadSize()
		if pos > len(src) {
			return 0, ErrTruncated
		}
		if blk.Last {
			break
		}
	}
	if hdr.HasChecksum {
		pos += 4
		if pos > len(src) {
			return 0, ErrTruncated
		}
	}
	return pos, nil
}
