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

package codec

import (
	"encoding/binary"
	"errors"

	"github.com/klauspost/compress/zstd"

	"github.com/tadpole-labs/zstd-codec-lib/zfmt"
)

// A Dict is a decoding dictionary. Structured dictionaries
// (blobs starting with the dictionary magic) carry an ID and
// embedded entropy tables; any other blob is treated as a
// raw content dictionary, i.e. a window prefix.
//
// A Dict references the caller's blob rather than copying it;
// the blob must not be modified while the Dict is in use.
type Dict struct {
	// ID is the dictionary ID frames refer to,
	// or 0 for raw content dictionaries.
	ID uint32
	// Content is the dictionary blob.
	Content []byte
	// HasEntropy indicates embedded entropy tables.
	HasEntropy bool
}

// NewDict builds a Dict from blob. Structured blobs shorter
// than the 8-byte magic+ID prefix are rejected; everything
// else is accepted (possibly as a raw content dictionary).
func NewDict(blob []byte) (*Dict, error) {
	if len(blob) == 0 {
		return nil, errors.New("codec: empty dictionary")
	}
	d := &Dict{Content: blob}
	if len(blob) >= 4 && binary.LittleEndian.Uint32(blob) == zfmt.DictMagic {
		if len(blob) < 8 {
			return nil, errors.New("codec: truncated structured dictionary")
		}
		d.ID = binary.LittleEndian.Uint32(blob[4:])
		d.HasEntropy = true
	}
	return d, nil
}

// option returns the decoder option that registers d.
func (d *Dict) option() zstd.DOption {
	if d.HasEntropy {
		return zstd.WithDecoderDicts(d.Content)
	}
	return zstd.WithDecoderDictRaw(d.ID, d.Content)
}

// DecoderOptions appends the options needed to decode
// frames referencing d to opts.
func DecoderOptions(opts []zstd.DOption, d *Dict) []zstd.DOption {
	if d != nil {
		opts = append(opts, d.option())
	}
	return opts
}
