package imaging

import (
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// Cutout extracts one channel of a stack inside a bounding box, blanks every
// pixel outside the mask, and rescales the result to 8-bit.
//
// Parameters:
//   - s: Source stack.
//   - channel: Channel index to extract.
//   - mask: Row-major mask over the full plane (len = Rows*Cols). A nil mask
//     keeps every pixel.
//   - box: Bounding box in image coordinates (X = column, Y = row). It is
//     clipped to the plane.
//
// Intensities are rescaled linearly from the [min, max] of the masked crop to
// [0, 255]. Pixels outside the mask are 0 before rescaling. A flat crop maps
// to all zeros.
func Cutout(s *Stack, channel int, mask []bool, box image.Rectangle) (*image.Gray, error) {
	if err := s.CheckChannel(channel); err != nil {
		return nil, err
	}
	if mask != nil && len(mask) != s.Rows*s.Cols {
		return nil, fmt.Errorf("mask has %d pixels, plane has %d", len(mask), s.Rows*s.Cols)
	}

	box = box.Intersect(image.Rect(0, 0, s.Cols, s.Rows))
	if box.Empty() {
		return nil, fmt.Errorf("cutout region %v is empty", box)
	}

	w, h := box.Dx(), box.Dy()
	vals := make([]float64, w*h)
	plane := s.Plane(channel)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y+box.Min.Y)*s.Cols + x + box.Min.X
			if mask != nil && !mask[i] {
				continue
			}
			vals[y*w+x] = plane[i]
		}
	}

	return rescaleToGray(vals, w, h), nil
}

// rescaleToGray maps values linearly from their own [min, max] onto [0, 255].
func rescaleToGray(vals []float64, w, h int) *image.Gray {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	out := image.NewGray(image.Rect(0, 0, w, h))
	if hi <= lo {
		return out
	}

	span := hi - lo
	for i, v := range vals {
		out.Pix[i] = uint8(math.Round((v - lo) / span * 255))
	}
	return out
}

// Enlarge scales an image by an integer factor with nearest-neighbour
// sampling so single-pixel spots stay crisp. Factors below 2 return img.
func Enlarge(img image.Image, factor int) image.Image {
	if factor < 2 {
		return img
	}
	b := img.Bounds()
	return imaging.Resize(img, b.Dx()*factor, b.Dy()*factor, imaging.NearestNeighbor)
}

// SavePNG writes img to path as PNG, creating the parent directory if needed.
func SavePNG(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
