package detection

import (
	"errors"
	"fmt"
	"sort"
)

// Peak is a detected local intensity maximum.
type Peak struct {
	Row       int     `json:"row"`
	Col       int     `json:"col"`
	Intensity float64 `json:"intensity"`
}

// PeakOptions configures PeakLocalMax.
type PeakOptions struct {
	// Threshold is the absolute intensity a peak must strictly exceed.
	Threshold float64

	// MinDistance is the minimum separation between peaks in pixels. It is
	// also the half-width of the maximum filter window. Must be >= 1.
	MinDistance int

	// ExcludeBorder drops peaks closer than MinDistance to the image edge.
	ExcludeBorder bool
}

// DefaultPeakOptions returns the options used by the counter UI.
func DefaultPeakOptions() PeakOptions {
	return PeakOptions{
		Threshold:     100.0,
		MinDistance:   5,
		ExcludeBorder: true,
	}
}

// PeakLocalMax finds local maxima of a single-channel plane, restricted to a
// mask.
//
// Parameters:
//   - plane: Row-major intensities, len = rows*cols.
//   - rows, cols: Plane dimensions.
//   - mask: Row-major region mask, or nil for the whole plane.
//   - opts: Threshold, minimum separation and border handling.
//
// Returns peaks sorted by intensity, brightest first. Ties keep row-major
// order. An empty mask yields no peaks and no error.
//
// # Algorithm
//
// Without a mask the maximum filter runs over the whole plane and candidates
// in the border strip are dropped afterwards, so a bright border pixel still
// suppresses its inner neighbours.
//
// With a mask:
//
//  1. Border exclusion: when enabled, mask pixels within MinDistance of the
//     plane edge are removed.
//  2. The search is confined to the bounding box of the remaining mask.
//     Box pixels outside the mask are set to the box minimum so they cannot
//     form maxima or raise the filter response of their neighbours.
//  3. A one-pixel box is a peak when it is above Threshold.
//  4. Otherwise a pixel is a candidate when it equals the maximum of its
//     (2*MinDistance+1)² window (edges replicated), lies inside the mask and
//     is strictly above Threshold.
//  5. A box whose mask pixels all equal their window maxima is flat. Its only
//     candidates are the mask pixels a 4-connected binary opening removes
//     (thin lines, corners and isolated pixels), still subject to Threshold.
//
// Candidates are then sorted by intensity and thinned so that no two kept
// peaks are closer than MinDistance under the Chebyshev metric.
func PeakLocalMax(plane []float64, rows, cols int, mask []bool, opts PeakOptions) ([]Peak, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid plane size %dx%d", rows, cols)
	}
	if len(plane) != rows*cols {
		return nil, fmt.Errorf("plane has %d pixels, want %d", len(plane), rows*cols)
	}
	if mask != nil && len(mask) != rows*cols {
		return nil, fmt.Errorf("mask has %d pixels, want %d", len(mask), rows*cols)
	}
	if opts.MinDistance < 1 {
		return nil, errors.New("min distance must be at least 1")
	}

	border := 0
	if opts.ExcludeBorder {
		border = opts.MinDistance
	}
	inBorder := func(r, c int) bool {
		return r < border || r >= rows-border || c < border || c >= cols-border
	}

	if mask == nil {
		found := peakMask(plane, rows, cols, opts.MinDistance, opts.Threshold, nil)
		var candidates []Peak
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				if found[r*cols+c] && !inBorder(r, c) {
					candidates = append(candidates, Peak{Row: r, Col: c, Intensity: plane[r*cols+c]})
				}
			}
		}
		return sortAndThin(candidates, opts.MinDistance), nil
	}

	inside := func(r, c int) bool {
		return !inBorder(r, c) && mask[r*cols+c]
	}

	// Bounding box of the effective mask.
	r0, c0, r1, c1 := rows, cols, -1, -1
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if !inside(r, c) {
				continue
			}
			r0, r1 = min(r0, r), max(r1, r)
			c0, c1 = min(c0, c), max(c1, c)
		}
	}
	if r1 < 0 {
		return nil, nil
	}

	h, w := r1-r0+1, c1-c0+1
	boxMin := plane[r0*cols+c0]
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			boxMin = min(boxMin, plane[r*cols+c])
		}
	}

	box := make([]float64, h*w)
	boxMask := make([]bool, h*w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if inside(y+r0, x+c0) {
				box[i] = plane[(y+r0)*cols+x+c0]
				boxMask[i] = true
			} else {
				box[i] = boxMin
			}
		}
	}

	found := peakMask(box, h, w, opts.MinDistance, opts.Threshold, boxMask)
	var candidates []Peak
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if i := y*w + x; found[i] {
				candidates = append(candidates, Peak{Row: y + r0, Col: x + c0, Intensity: box[i]})
			}
		}
	}
	return sortAndThin(candidates, opts.MinDistance), nil
}

func sortAndThin(candidates []Peak, minDistance int) []Peak {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Intensity > candidates[j].Intensity
	})
	return ensureSpacing(candidates, minDistance)
}

// peakMask marks the pixels of img that are window maxima above threshold
// and, when mask is non-nil, inside mask.
func peakMask(img []float64, h, w, k int, threshold float64, mask []bool) []bool {
	out := make([]bool, len(img))
	if len(img) == 1 {
		out[0] = img[0] > threshold
		return out
	}

	filtered := maximumFilter(img, h, w, k)
	trivial := true
	for i := range img {
		out[i] = img[i] == filtered[i]
		if !out[i] && (mask == nil || mask[i]) {
			trivial = false
		}
	}
	if trivial {
		clear(out)
		if mask != nil {
			opened := binaryOpening(mask, h, w)
			for i := range out {
				out[i] = mask[i] && !opened[i]
			}
		}
	}

	for i := range out {
		out[i] = out[i] && (mask == nil || mask[i]) && img[i] > threshold
	}
	return out
}

// binaryOpening erodes then dilates m with a 4-connected cross. Pixels
// beyond the edge count as unset.
func binaryOpening(m []bool, h, w int) []bool {
	at := func(src []bool, y, x int) bool {
		return y >= 0 && y < h && x >= 0 && x < w && src[y*w+x]
	}

	eroded := make([]bool, len(m))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			eroded[y*w+x] = at(m, y, x) && at(m, y-1, x) && at(m, y+1, x) && at(m, y, x-1) && at(m, y, x+1)
		}
	}

	opened := make([]bool, len(m))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			opened[y*w+x] = at(eroded, y, x) || at(eroded, y-1, x) || at(eroded, y+1, x) || at(eroded, y, x-1) || at(eroded, y, x+1)
		}
	}
	return opened
}

// maximumFilter computes a square running maximum of half-width k with
// replicated edges. The square window is separable, so rows and columns are
// filtered in two passes.
func maximumFilter(src []float64, h, w, k int) []float64 {
	tmp := make([]float64, len(src))
	for y := 0; y < h; y++ {
		row := src[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			m := row[x]
			for dx := max(0, x-k); dx <= min(w-1, x+k); dx++ {
				m = max(m, row[dx])
			}
			tmp[y*w+x] = m
		}
	}

	out := make([]float64, len(src))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			m := tmp[y*w+x]
			for dy := max(0, y-k); dy <= min(h-1, y+k); dy++ {
				m = max(m, tmp[dy*w+x])
			}
			out[y*w+x] = m
		}
	}
	return out
}
