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

package zstdcodec

import (
	"bytes"
	"sync"

	"github.com/dchest/siphash"

	"github.com/tadpole-labs/zstd-codec-lib/codec"
)

// dictionary registry keys; arbitrary but fixed so repeated
// loads of the same blob hash identically across sessions
const (
	dictKey0 = 0x7f1c_f77e_46a0_52d3
	dictKey1 = 0x94b2_0a58_8ca0_61b5
)

var (
	dictLock sync.Mutex
	dicts    = make(map[uint64]*codec.Dict)
)

// LoadDictionary parses a dictionary blob and returns a handle
// sessions can bind with SetDictionary. Results are cached by
// content, so loading the same blob again returns the handle
// already issued for it. The blob is referenced, not copied;
// it must not be modified afterwards.
func LoadDictionary(blob []byte) (*codec.Dict, error) {
	k := siphash.Hash(dictKey0, dictKey1, blob)
	dictLock.Lock()
	defer dictLock.Unlock()
	if d, ok := dicts[k]; ok && bytes.Equal(d.Content, blob) {
		return d, nil
	}
	d, err := codec.NewDict(blob)
	if err != nil {
		return nil, err
	}
	dicts[k] = d
	return d, nil
}
