package chunk

import (
	"fmt"

	"github.com/tz301/kaldi-onnx-tf/internal/ir"
)

// Chunk is one piece of the plan. Output frames [OutBegin, OutEnd) are
// computed from input frames [InBegin, InEnd); both ranges index the
// utterance, zero-based. LeftPad and RightPad count the edge frames to
// replicate before InBegin and after InEnd where the context window ran
// off the utterance.
type Chunk struct {
	OutBegin int `json:"out_begin"`
	OutEnd   int `json:"out_end"`
	InBegin  int `json:"in_begin"`
	InEnd    int `json:"in_end"`
	LeftPad  int `json:"left_pad"`
	RightPad int `json:"right_pad"`
}

// OutFrames is the number of output frames the chunk produces.
func (c Chunk) OutFrames() int { return c.OutEnd - c.OutBegin }

// InFrames is the number of input frames fed to the network, padding
// included.
func (c Chunk) InFrames() int { return c.LeftPad + (c.InEnd - c.InBegin) + c.RightPad }

// Plan is the complete chunking of one utterance.
type Plan struct {
	Length  int        `json:"length"`
	Size    int        `json:"chunk_size"`
	Context ir.Context `json:"context"`
	Chunks  []Chunk    `json:"chunks"`
}

// ChunkRangeError reports plan parameters that cannot describe a valid
// chunking.
type ChunkRangeError struct {
	Field string
	Value int
}

func (e *ChunkRangeError) Error() string {
	return fmt.Sprintf("invalid chunk plan: %s = %d", e.Field, e.Value)
}

// Build cuts an utterance of length frames into chunks of size output
// frames each (the final chunk may be shorter) and attaches the input
// range each chunk needs under the given context pair.
func Build(length, size int, ctx ir.Context) (*Plan, error) {
	switch {
	case length <= 0:
		return nil, &ChunkRangeError{Field: "length", Value: length}
	case size <= 0:
		return nil, &ChunkRangeError{Field: "chunk_size", Value: size}
	case ctx.Left < 0:
		return nil, &ChunkRangeError{Field: "left_context", Value: ctx.Left}
	case ctx.Right < 0:
		return nil, &ChunkRangeError{Field: "right_context", Value: ctx.Right}
	}

	p := &Plan{Length: length, Size: size, Context: ctx}
	for begin := 0; begin < length; begin += size {
		end := begin + size
		if end > length {
			end = length
		}

		c := Chunk{OutBegin: begin, OutEnd: end}

		// The first output frame needs Left frames before it, the last
		// needs Right frames after; clamp to the utterance and replicate
		// the edge frame for whatever was cut off.
		c.InBegin = begin - ctx.Left
		if c.InBegin < 0 {
			c.LeftPad = -c.InBegin
			c.InBegin = 0
		}
		c.InEnd = end + ctx.Right
		if c.InEnd > length {
			c.RightPad = c.InEnd - length
			c.InEnd = length
		}

		p.Chunks = append(p.Chunks, c)
	}
	return p, nil
}
