package filter

import (
	"fmt"

	"github.com/robert-malhotra/h5export/internal/message"
)

type stage struct {
	f        Filter
	index    int // position in the pipeline message, for mask bits
	optional bool
}

// Pipeline is the ordered filter chain of one dataset.
type Pipeline struct {
	stages []stage
}

// NewPipeline builds the chain described by fp. A nil message yields an
// empty pipeline.
func NewPipeline(fp *message.FilterPipeline) (*Pipeline, error) {
	p := &Pipeline{}
	if fp == nil {
		return p, nil
	}
	for i, info := range fp.Filters {
		f, err := New(info)
		if err != nil {
			return nil, err
		}
		if f != nil {
			p.stages = append(p.stages, stage{f: f, index: i, optional: info.IsOptional()})
		}
	}
	return p, nil
}

// Empty reports whether the pipeline has no filters.
func (p *Pipeline) Empty() bool { return len(p.stages) == 0 }

// Len returns the number of filters.
func (p *Pipeline) Len() int { return len(p.stages) }

// Encode runs the filters in order. An optional filter that fails is
// skipped and its bit set in the returned mask.
func (p *Pipeline) Encode(data []byte) ([]byte, uint32, error) {
	var mask uint32
	for _, s := range p.stages {
		out, err := s.f.Encode(data)
		if err != nil {
			if s.optional {
				mask |= 1 << uint(s.index)
				continue
			}
			return nil, 0, fmt.Errorf("%s encode: %w", Name(s.f.ID()), err)
		}
		data = out
	}
	return data, mask, nil
}

// Decode undoes the filters in reverse order, skipping those whose bit is
// set in mask.
func (p *Pipeline) Decode(data []byte, mask uint32) ([]byte, error) {
	for i := len(p.stages) - 1; i >= 0; i-- {
		s := p.stages[i]
		if mask&(1<<uint(s.index)) != 0 {
			continue
		}
		out, err := s.f.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("%s decode: %w", Name(s.f.ID()), err)
		}
		data = out
	}
	return data, nil
}
