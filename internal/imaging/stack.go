package imaging

import (
	"errors"
	"fmt"
)

// ErrNotThreeDimensional is returned when an image cannot be interpreted as a
// (channel, row, column) array.
var ErrNotThreeDimensional = errors.New("image must be 3-dimensional (channel, row, column)")

// Stack is a multi-channel intensity array with axes (channel, row, column).
//
// Intensities are stored at the source bit depth: 0-255 for 8-bit images and
// 0-65535 for 16-bit images. Pix is laid out channel-major, then row-major,
// so the value at (c, r, col) is Pix[c*Rows*Cols + r*Cols + col].
type Stack struct {
	Channels int
	Rows     int
	Cols     int
	BitDepth int
	Pix      []float64
}

// NewStack allocates a zeroed stack of the given shape.
func NewStack(channels, rows, cols, bitDepth int) *Stack {
	return &Stack{
		Channels: channels,
		Rows:     rows,
		Cols:     cols,
		BitDepth: bitDepth,
		Pix:      make([]float64, channels*rows*cols),
	}
}

// Shape returns the (channel, row, column) dimensions.
func (s *Stack) Shape() [3]int {
	return [3]int{s.Channels, s.Rows, s.Cols}
}

// At returns the intensity at (c, r, col).
func (s *Stack) At(c, r, col int) float64 {
	return s.Pix[s.offset(c, r, col)]
}

// Set stores an intensity at (c, r, col).
func (s *Stack) Set(c, r, col int, v float64) {
	s.Pix[s.offset(c, r, col)] = v
}

// Plane returns the row-major pixels of channel c. The slice aliases the
// stack storage.
func (s *Stack) Plane(c int) []float64 {
	n := s.Rows * s.Cols
	return s.Pix[c*n : (c+1)*n]
}

// CheckChannel reports whether c is a valid channel index.
func (s *Stack) CheckChannel(c int) error {
	if c < 0 || c >= s.Channels {
		return fmt.Errorf("channel %d out of range [0,%d)", c, s.Channels)
	}
	return nil
}

func (s *Stack) offset(c, r, col int) int {
	return c*s.Rows*s.Cols + r*s.Cols + col
}

// MaxProject collapses z-planes into a single stack by taking the per-pixel
// maximum of every channel. All planes must share the same shape.
func MaxProject(planes []*Stack) (*Stack, error) {
	if len(planes) == 0 {
		return nil, errors.New("no planes to project")
	}

	first := planes[0]
	out := NewStack(first.Channels, first.Rows, first.Cols, first.BitDepth)
	copy(out.Pix, first.Pix)

	for i, p := range planes[1:] {
		if p.Shape() != first.Shape() {
			return nil, fmt.Errorf("plane %d has shape %v, want %v", i+1, p.Shape(), first.Shape())
		}
		if p.BitDepth > out.BitDepth {
			out.BitDepth = p.BitDepth
		}
		for j, v := range p.Pix {
			if v > out.Pix[j] {
				out.Pix[j] = v
			}
		}
	}

	return out, nil
}
