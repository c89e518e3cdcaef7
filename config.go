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
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

const (
	// DefaultMaxWindow is the largest frame window accepted
	// when no explicit limit is configured: 8 MiB plus one
	// byte, so frames produced at the common 8 MiB window
	// setting are accepted.
	DefaultMaxWindow = 1<<23 + 1

	// DefaultArenaCapacity is the arena reserved by
	// NewSession when the caller does not supply one.
	DefaultArenaCapacity = 64 << 20
)

// Config tunes a Session. The zero value selects the
// documented defaults for every field.
type Config struct {
	// MaxWindow is the largest frame window size the
	// session will decode.
	MaxWindow uint64 `json:"max_window,omitempty"`
	// ArenaCapacity sizes the arena NewSession reserves
	// when none is passed in.
	ArenaCapacity int `json:"arena_capacity,omitempty"`
	// ShrinkFactor and ShrinkAfter drive the staged-buffer
	// shrink policy: buffers at least ShrinkFactor times
	// larger than a frame needs are tolerated for
	// ShrinkAfter consecutive frames before being
	// reallocated at the needed size.
	ShrinkFactor int `json:"shrink_factor,omitempty"`
	ShrinkAfter  int `json:"shrink_after,omitempty"`
}

func (c *Config) fill() {
	if c.MaxWindow == 0 {
		c.MaxWindow = DefaultMaxWindow
	}
	if c.ArenaCapacity == 0 {
		c.ArenaCapacity = DefaultArenaCapacity
	}
	if c.ShrinkFactor == 0 {
		c.ShrinkFactor = 3
	}
	if c.ShrinkAfter == 0 {
		c.ShrinkAfter = 128
	}
}

// LoadConfig reads a YAML (or JSON) Config from path.
// Missing fields keep their defaults.
func LoadConfig(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := new(Config)
	if err := yaml.Unmarshal(buf, c); err != nil {
		return nil, fmt.Errorf("zstdcodec: parsing %s: %w", path, err)
	}
	c.fill()
	return c, nil
}
