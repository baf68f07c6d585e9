package filter

import "github.com/robert-malhotra/h5export/internal/message"

// Shuffle groups the i-th byte of every element together, which helps the
// compressors that follow it. Client data holds the element size.
type Shuffle struct {
	size int
}

// NewShuffle reads the element size from client data.
func NewShuffle(clientData []uint32) *Shuffle {
	size := 1
	if len(clientData) > 0 && clientData[0] > 0 {
		size = int(clientData[0])
	}
	return &Shuffle{size: size}
}

func (*Shuffle) ID() uint16 { return message.FilterShuffle }

// transpose moves bytes between element order and byte-plane order. A
// trailing partial element is copied unchanged.
func (f *Shuffle) transpose(input []byte, toPlanes bool) []byte {
	n := len(input) / f.size
	if f.size == 1 || n <= 1 {
		return append([]byte(nil), input...)
	}
	out := make([]byte, len(input))
	for e := 0; e < n; e++ {
		for b := 0; b < f.size; b++ {
			elem, plane := e*f.size+b, b*n+e
			if toPlanes {
				out[plane] = input[elem]
			} else {
				out[elem] = input[plane]
			}
		}
	}
	copy(out[n*f.size:], input[n*f.size:])
	return out
}

func (f *Shuffle) Encode(input []byte) ([]byte, error) { return f.transpose(input, true), nil }

func (f *Shuffle) Decode(input []byte) ([]byte, error) { return f.transpose(input, false), nil }
