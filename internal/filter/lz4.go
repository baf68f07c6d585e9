package filter

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/robert-malhotra/h5export/internal/message"
)

const (
	lz4HeaderSize = 12
	// lz4DefaultBlock is the plugin's block size when client data has none.
	lz4DefaultBlock = 1 << 30
)

// LZ4 is the registered LZ4 plugin filter (ID 32004). A chunk is a
// big-endian header holding the decoded size and block size, then blocks
// each prefixed by their compressed length. A block whose compressed
// length equals its decoded length is stored raw.
type LZ4 struct {
	block int
}

// NewLZ4 reads the block size from client data.
func NewLZ4(clientData []uint32) *LZ4 {
	block := lz4DefaultBlock
	if len(clientData) > 0 && clientData[0] > 0 {
		block = int(clientData[0])
	}
	return &LZ4{block: block}
}

func (*LZ4) ID() uint16 { return message.FilterLZ4 }

// Encode writes the HDF5 LZ4 framing: total size, block size, then
// size-prefixed blocks.
func (f *LZ4) Encode(input []byte) ([]byte, error) {
	block := min(f.block, max(len(input), 1))
	out := binary.BigEndian.AppendUint64(nil, uint64(len(input)))
	out = binary.BigEndian.AppendUint32(out, uint32(block))

	var c lz4.Compressor
	dst := make([]byte, lz4.CompressBlockBound(block))
	for off := 0; off < len(input); off += block {
		src := input[off:min(off+block, len(input))]
		n, err := c.CompressBlock(src, dst)
		if err != nil {
			return nil, fmt.Errorf("lz4: %w", err)
		}
		packed := dst[:n]
		if n == 0 || n >= len(src) {
			packed = src
		}
		out = binary.BigEndian.AppendUint32(out, uint32(len(packed)))
		out = append(out, packed...)
	}
	return out, nil
}

// Decode reverses Encode.
func (*LZ4) Decode(input []byte) ([]byte, error) {
	if len(input) < lz4HeaderSize {
		return nil, fmt.Errorf("lz4: %d bytes is shorter than the header", len(input))
	}
	total := binary.BigEndian.Uint64(input[0:8])
	block := uint64(binary.BigEndian.Uint32(input[8:12]))
	if block == 0 && total > 0 {
		return nil, fmt.Errorf("lz4: zero block size")
	}

	out := make([]byte, total)
	rest := input[lz4HeaderSize:]
	for done := uint64(0); done < total; {
		want := min(block, total-done)
		if len(rest) < 4 {
			return nil, fmt.Errorf("lz4: truncated block header after %d bytes", done)
		}
		n := uint64(binary.BigEndian.Uint32(rest))
		rest = rest[4:]
		if n > uint64(len(rest)) {
			return nil, fmt.Errorf("lz4: block of %d bytes overruns chunk", n)
		}
		dst := out[done : done+want]
		if n == want {
			copy(dst, rest[:n])
		} else {
			got, err := lz4.UncompressBlock(rest[:n], dst)
			if err != nil {
				return nil, fmt.Errorf("lz4: %w", err)
			}
			if uint64(got) != want {
				return nil, fmt.Errorf("lz4: block decoded to %d bytes, want %d", got, want)
			}
		}
		rest = rest[n:]
		done += want
	}
	return out, nil
}
