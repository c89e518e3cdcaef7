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

// Package arena implements a fixed-capacity bump allocator.
//
// An Arena reserves one contiguous region up front and hands out
// slices of it by advancing a cursor. Individual allocations are
// never freed; the owner reclaims memory in bulk by calling Prune
// with a previously observed cursor position. This matches the
// session-scoped lifetime of decoder working memory: decode one
// stream, prune, decode the next.
package arena

import (
	"fmt"
)

// granularity of the allocation cursor;
// every allocation advances the cursor
// by a multiple of this
const align = 8

// An Arena is a linear memory region with a movable cursor.
// The zero value is not usable; call New.
//
// An Arena is not safe for concurrent use.
type Arena struct {
	buf    []byte
	cur    int
	mapped bool
}

// New reserves a region of the given capacity.
// On linux and darwin the region is reserved from the OS
// with an anonymous private mapping; elsewhere it is
// ordinary heap memory.
func New(capacity int) (*Arena, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("arena: bad capacity %d", capacity)
	}
	buf, mapped, err := reserve(capacity)
	if err != nil {
		return nil, fmt.Errorf("arena: reserving %d bytes: %w", capacity, err)
	}
	return &Arena{buf: buf, mapped: mapped}, nil
}

// Capacity returns the total size of the region.
func (a *Arena) Capacity() int { return len(a.buf) }

// Cursor returns the current allocation offset.
// The value can be passed to Prune later to release
// everything allocated after this point.
func (a *Arena) Cursor() int { return a.cur }

// Alloc returns a slice of n bytes from the region,
// or nil if fewer than n bytes remain. The contents
// of the returned slice are unspecified; see Calloc.
//
// The cursor advances by n rounded up to the arena
// alignment, so consecutive allocations do not share
// cache-hostile odd offsets.
func (a *Arena) Alloc(n int) []byte {
	if n < 0 {
		return nil
	}
	rounded := (n + align - 1) &^ (align - 1)
	if rounded < n || a.cur+rounded > len(a.buf) || a.cur+rounded < 0 {
		return nil
	}
	p := a.buf[a.cur : a.cur+n : a.cur+n]
	a.cur += rounded
	return p
}

// Calloc is Alloc followed by a zero fill of the result.
func (a *Arena) Calloc(n int) []byte {
	p := a.Alloc(n)
	for i := range p {
		p[i] = 0
	}
	return p
}

// Prune moves the cursor back to off, making everything
// allocated at or beyond off available for reuse. The caller
// guarantees that no allocation above off is still live;
// the arena performs no liveness tracking. Prune panics if
// off is negative, beyond the capacity, or beyond the
// current cursor.
func (a *Arena) Prune(off int) {
	if off < 0 || off > len(a.buf) || off > a.cur {
		panic(fmt.Sprintf("arena: bad prune offset %d (cursor %d, capacity %d)", off, a.cur, len(a.buf)))
	}
	a.cur = off
}

// Close releases the region back to the OS.
// The Arena must not be used afterwards.
func (a *Arena) Close() error {
	buf := a.buf
	a.buf = nil
	a.cur = 0
	if !a.mapped {
		return nil
	}
	a.mapped = false
	return release(buf)
}
