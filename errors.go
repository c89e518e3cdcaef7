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

import "errors"

var (
	// ErrSrcBuffer and ErrDstBuffer are contract errors:
	// a view arrived at Step with Pos past len(Data).
	ErrSrcBuffer = errors.New("zstdcodec: input view position past its size")
	ErrDstBuffer = errors.New("zstdcodec: output view position past its size")

	// ErrDstFull and ErrSrcEmpty report repeated calls that
	// made no forward progress with, respectively, a
	// saturated output view or an exhausted input view.
	ErrDstFull  = errors.New("zstdcodec: no forward progress: output view full")
	ErrSrcEmpty = errors.New("zstdcodec: no forward progress: input view empty")

	// ErrArenaExhausted means staged buffers could not be
	// sized for the current frame header. Fatal for the
	// session; the host must prune and start over.
	ErrArenaExhausted = errors.New("zstdcodec: arena exhausted")

	// ErrDictMismatch means a frame references a dictionary
	// ID the session does not have bound.
	ErrDictMismatch = errors.New("zstdcodec: dictionary mismatch")
)
