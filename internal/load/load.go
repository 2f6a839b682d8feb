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

package load

import (
	"cloud.google.com/go/logging"
	"context"
	"fmt"

	"github.com/ajjensen13/ivsrefresh/internal/model"
	"github.com/ajjensen13/ivsrefresh/internal/util"
)

const DefaultChunkSize = 5000

// ChunkWriter commits rows as one atomic unit: either all of them are visible
// afterwards or none are.
type ChunkWriter interface {
	WriteChunk(ctx context.Context, rows []model.TargetRow) error
}

type ChunkWriterFunc func(ctx context.Context, rows []model.TargetRow) error

func (f ChunkWriterFunc) WriteChunk(ctx context.Context, rows []model.TargetRow) error {
	return f(ctx, rows)
}

// Span is the half-open index range [Start, End) of one chunk.
type Span struct {
	Start, End int
}

func (s Span) Len() int {
	return s.End - s.Start
}

// Chunks splits n rows into ordered spans of at most size rows.
func Chunks(n, size int) []Span {
	if n <= 0 {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}

	ret := make([]Span, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		ret = append(ret, Span{Start: start, End: end})
	}
	return ret
}

type Loader struct {
	Writer    ChunkWriter
	ChunkSize int
}

// Load writes rows one chunk at a time and stops at the first failed chunk. The
// returned count covers only chunks that were committed. A panicking writer
// fails its chunk like an error does.
func (l *Loader) Load(ctx context.Context, rows []model.TargetRow) (written int, err error) {
	ctx = util.WithLoggerValue(ctx, "action", "load")

	spans := Chunks(len(rows), l.ChunkSize)
	for ndx, span := range spans {
		err = l.write(ctx, rows[span.Start:span.End])
		if err != nil {
			return written, fmt.Errorf("failed to write chunk %d of %d (rows %d-%d), %d rows committed before it: %w", ndx+1, len(spans), span.Start, span.End-1, written, err)
		}
		written += span.Len()
		util.Logf(ctx, logging.Debug, "committed chunk %d of %d (%d rows)", ndx+1, len(spans), span.Len())
	}

	return written, nil
}

func (l *Loader) write(ctx context.Context, rows []model.TargetRow) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while writing chunk: %v", r)
		}
	}()
	return l.Writer.WriteChunk(ctx, rows)
}
