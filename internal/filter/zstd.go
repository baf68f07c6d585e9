package filter

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/robert-malhotra/h5export/internal/message"
)

var decoders = sync.Pool{
	New: func() any {
		d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			panic(fmt.Sprintf("zstd: %v", err))
		}
		return d
	},
}

// Zstd is the registered Zstandard plugin filter (ID 32015): one frame per
// chunk. Client data holds the compression level.
type Zstd struct {
	level zstd.EncoderLevel
}

// NewZstd reads the level from client data.
func NewZstd(clientData []uint32) *Zstd {
	level := zstd.SpeedDefault
	if len(clientData) > 0 && clientData[0] > 0 {
		level = zstd.EncoderLevelFromZstd(int(clientData[0]))
	}
	return &Zstd{level: level}
}

func (*Zstd) ID() uint16 { return message.FilterZstd }

// Encode compresses one chunk as a single zstd frame.
func (f *Zstd) Encode(input []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(f.level), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(input, nil), nil
}

func (*Zstd) Decode(input []byte) ([]byte, error) {
	d := decoders.Get().(*zstd.Decoder)
	defer decoders.Put(d)
	out, err := d.DecodeAll(input, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	return out, nil
}
