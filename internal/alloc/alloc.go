// Package alloc hands out file addresses while an HDF5 file is built in
// memory. Space is only ever appended; freed space is not reused.
package alloc

// Alignment of every allocation.
const Alignment = 8

// Space is a growing file image.
type Space struct {
	buf []byte
}

// New returns a Space whose first reserved bytes are left for the
// superblock.
func New(reserved int) *Space {
	s := &Space{buf: make([]byte, reserved)}
	s.align()
	return s
}

func (s *Space) align() {
	for len(s.buf)%Alignment != 0 {
		s.buf = append(s.buf, 0)
	}
}

// Alloc reserves n zeroed bytes and returns their address.
func (s *Space) Alloc(n int) uint64 {
	addr := uint64(len(s.buf))
	s.buf = append(s.buf, make([]byte, n)...)
	s.align()
	return addr
}

// Place stores b in newly allocated space and returns its address.
func (s *Space) Place(b []byte) uint64 {
	addr := s.Alloc(len(b))
	copy(s.buf[addr:], b)
	return addr
}

// WriteAt overwrites previously allocated bytes at addr.
func (s *Space) WriteAt(b []byte, addr uint64) {
	if int(addr)+len(b) > len(s.buf) {
		panic("alloc: write beyond allocated space")
	}
	copy(s.buf[addr:], b)
}

// EOF is the address one past the last allocated byte.
func (s *Space) EOF() uint64 { return uint64(len(s.buf)) }

// Bytes returns the file image.
func (s *Space) Bytes() []byte { return s.buf }
