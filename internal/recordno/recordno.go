/*
Copyright © 2020 A. Jensen <jensen.aaro@gmail.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package recordno hands out the unique row identifiers of the target table.
//
// A run reads the largest record_no already stored and splits the range above
// it into one fixed-size block per symbol. Each refresh of a symbol counts up
// from the start of that symbol's block, so identifiers never collide within a
// run, never reuse a stored value, and a symbol refreshed twice in the same run
// gets the same identifiers both times.
//
// Blocks are reserved whether or not they fill up, so every run advances the
// stored maximum by roughly one block per symbol. A narrow column domain
// (record_no_max) is used up after max/(blockSize*symbols) runs.
package recordno

import (
	"errors"
	"fmt"
	"math"
)

const DefaultBlockSize = 1 << 20

var (
	ErrExhausted     = errors.New("record_no range exhausted")
	ErrUnknownSymbol = errors.New("symbol has no record_no block")
)

type Namespace struct {
	base   int64
	last   int64
	block  int64
	max    int64
	blocks map[string]int64
}

// NewNamespace reserves a block of blockSize identifiers above after for each
// symbol, in order. It fails if the blocks do not all fit below max.
func NewNamespace(after, blockSize, max int64, symbols []string) (*Namespace, error) {
	if after < 0 {
		after = 0
	}
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	if max <= 0 {
		max = math.MaxInt64
	}

	n := int64(len(symbols))
	if after >= max || (n > 0 && (max-after)/blockSize < n) {
		return nil, fmt.Errorf("%w: %d blocks of %d above %d exceed %d", ErrExhausted, n, blockSize, after, max)
	}

	ns := &Namespace{base: after + 1, last: after + n*blockSize, block: blockSize, max: max, blocks: make(map[string]int64, len(symbols))}
	for i, s := range symbols {
		if _, ok := ns.blocks[s]; !ok {
			ns.blocks[s] = ns.base + int64(i)*blockSize
		}
	}
	return ns, nil
}

// RunsLeft estimates how many more runs over the same symbols fit below max,
// assuming each leaves the stored maximum at the end of this namespace.
func (ns *Namespace) RunsLeft() int64 {
	n := int64(len(ns.blocks))
	if n == 0 {
		n = 1
	}
	return (ns.max - ns.last) / (n * ns.block)
}

// Counter returns a fresh counter positioned at the start of symbol's block.
func (ns *Namespace) Counter(symbol string) (*Counter, error) {
	start, ok := ns.blocks[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSymbol, symbol)
	}
	return &Counter{symbol: symbol, start: start, next: start, end: start + ns.block}, nil
}

// InRange reports whether id lies in any block of this run. Identifiers outside
// it may already be stored.
func (ns *Namespace) InRange(id int64) bool {
	return id >= ns.base && id <= ns.last
}

// Counter issues the identifiers of one block. It is not safe for concurrent use.
type Counter struct {
	symbol string
	start  int64
	next   int64
	end    int64
}

// Contains reports whether id lies in the counter's block.
func (c *Counter) Contains(id int64) bool {
	return id >= c.start && id < c.end
}

// Reserve claims k consecutive identifiers and returns the first.
func (c *Counter) Reserve(k int) (int64, error) {
	if k < 0 {
		k = 0
	}
	if int64(k) > c.end-c.next {
		return 0, fmt.Errorf("%w: %q needs %d identifiers, %d left in its block", ErrExhausted, c.symbol, k, c.end-c.next)
	}
	first := c.next
	c.next += int64(k)
	return first, nil
}

// Assign claims k identifiers in ascending order, skipping any for which taken
// reports true.
func (c *Counter) Assign(k int, taken func(id int64) bool) ([]int64, error) {
	ret := make([]int64, 0, k)
	for len(ret) < k {
		if c.next >= c.end {
			return nil, fmt.Errorf("%w: %q needs %d identifiers, block ends at %d", ErrExhausted, c.symbol, k, c.end)
		}
		id := c.next
		c.next++
		if taken != nil && taken(id) {
			continue
		}
		ret = append(ret, id)
	}
	return ret, nil
}
